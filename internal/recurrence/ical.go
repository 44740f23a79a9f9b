package recurrence

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	dateLayout        = "20060102"
	dateTimeLayout    = "20060102T150405"
	dateTimeUTCLayout = "20060102T150405Z"
)

// SeriesFromComponent extracts recurrence information from an iCal component
func SeriesFromComponent(comp *ical.Component) Series {
	info := Series{}

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil && rruleProp.Value != "" {
		info.Rule = strings.TrimPrefix(rruleProp.Value, "RRULE:")
	}

	// RDATE and EXDATE may repeat, each line carrying its own TZID.
	for _, prop := range comp.Props[ical.PropRecurrenceDates] {
		info.Dates = append(info.Dates, parseDateList(prop)...)
	}
	for _, prop := range comp.Props[ical.PropExceptionDates] {
		info.Exceptions = append(info.Exceptions, parseDateList(prop)...)
	}

	if recurrenceIDProp := comp.Props.Get("RECURRENCE-ID"); recurrenceIDProp != nil && recurrenceIDProp.Value != "" {
		if recID, err := parseDateTime(strings.TrimSpace(recurrenceIDProp.Value), recurrenceIDProp.Params); err == nil {
			info.RecurrenceID = &recID
		}
	}

	return info
}

// ExtractBasicTimeInfoFromComponent extracts start and end times from an iCal component
func ExtractBasicTimeInfoFromComponent(comp *ical.Component) (start, end time.Time, hasTime bool) {
	dtstart, err := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		return start, end, false
	}
	start = dtstart
	hasTime = true

	if dtend, err := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC); err == nil {
		end = dtend

		// A DATE event ending on its own start date lasts the whole day.
		if isDateValue(comp.Props.Get(ical.PropDateTimeStart)) && !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	} else if durationProp := comp.Props.Get(ical.PropDuration); durationProp != nil {
		duration, err := durationProp.Duration()
		if err != nil {
			return start, end, false
		}
		end = start.Add(duration)
	} else if isDateValue(comp.Props.Get(ical.PropDateTimeStart)) {
		end = start.AddDate(0, 0, 1)
	} else {
		end = start
	}

	return start, end, hasTime
}

// IsAllDay reports whether DTSTART carries a DATE value.
func IsAllDay(comp *ical.Component) bool {
	return isDateValue(comp.Props.Get(ical.PropDateTimeStart))
}

func isDateValue(prop *ical.Prop) bool {
	if prop == nil {
		return false
	}
	if strings.EqualFold(prop.Params.Get("VALUE"), "DATE") {
		return true
	}
	return len(strings.TrimSpace(prop.Value)) == len(dateLayout)
}

// parseDateList parses a comma separated RDATE or EXDATE value. Entries
// that do not parse are skipped.
func parseDateList(prop ical.Prop) []time.Time {
	var dates []time.Time
	for _, value := range strings.Split(prop.Value, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if t, err := parseDateTime(value, prop.Params); err == nil {
			dates = append(dates, t)
		}
	}
	return dates
}

// parseDateTime parses an iCalendar DATE or DATE-TIME. Floating and TZID
// values are read in the named zone, DATE values become midnight UTC.
func parseDateTime(value string, params ical.Params) (time.Time, error) {
	if strings.EqualFold(params.Get("VALUE"), "DATE") || len(value) == len(dateLayout) {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	if strings.HasSuffix(value, "Z") {
		return time.Parse(dateTimeUTCLayout, value)
	}

	loc := time.UTC
	if tzid := params.Get(ical.PropTimezoneID); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(dateTimeLayout, value, loc)
}
