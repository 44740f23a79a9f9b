package caldav

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"
)

// ObjectFilter narrows a calendar-query REPORT on the VEVENTs of one
// calendar. The server evaluates every condition; conditions are ANDed.
type ObjectFilter interface {
	// TimeRange keeps events with an occurrence overlapping [start, end).
	TimeRange(start, end time.Time) ObjectFilter
	// Categories requires every given category. Repeated calls add to the set.
	Categories(categories ...string) ObjectFilter
	// ExcludeStatus drops events with the given STATUS, e.g. CANCELLED.
	ExcludeStatus(status string) ObjectFilter
	// UID keeps the objects holding an event with exactly this UID.
	UID(uid string) ObjectFilter
	// Limit truncates the result to at most n objects.
	Limit(n int) ObjectFilter
	Do(ctx context.Context) ([]CalendarObject, error)
}

// calendarQuerier runs a prepared calendar-query document.
type calendarQuerier interface {
	executeCalendarQuery(ctx context.Context, calendarURL string, query *etree.Document) ([]CalendarObject, error)
}

type objectFilter struct {
	client      calendarQuerier
	calendarURL string

	start, end time.Time
	categories []string
	excluded   []string
	uid        string
	limit      int
}

const icalUTC = "20060102T150405Z"

func (f *objectFilter) TimeRange(start, end time.Time) ObjectFilter {
	f.start, f.end = start, end
	return f
}

func (f *objectFilter) Categories(categories ...string) ObjectFilter {
	f.categories = append(f.categories, categories...)
	return f
}

func (f *objectFilter) ExcludeStatus(status string) ObjectFilter {
	f.excluded = append(f.excluded, status)
	return f
}

func (f *objectFilter) UID(uid string) ObjectFilter {
	f.uid = uid
	return f
}

func (f *objectFilter) Limit(n int) ObjectFilter {
	f.limit = n
	return f
}

func (f *objectFilter) hasTimeRange() bool {
	return !f.start.IsZero() || !f.end.IsZero()
}

// buildQuery renders the filter as a calendar-query body.
func (f *objectFilter) buildQuery() (*etree.Document, error) {
	if f.hasTimeRange() && !f.end.After(f.start) {
		return nil, fmt.Errorf("time range end %s is not after start %s",
			f.end.Format(time.RFC3339), f.start.Format(time.RFC3339))
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("C:calendar-query")
	root.CreateAttr("xmlns:D", nsDAV)
	root.CreateAttr("xmlns:C", nsCalDAV)

	prop := root.CreateElement("D:prop")
	prop.CreateElement("D:getetag")
	prop.CreateElement("C:calendar-data")

	calendar := root.CreateElement("C:filter").CreateElement("C:comp-filter")
	calendar.CreateAttr("name", ical.CompCalendar)
	event := calendar.CreateElement("C:comp-filter")
	event.CreateAttr("name", ical.CompEvent)

	if f.hasTimeRange() {
		tr := event.CreateElement("C:time-range")
		tr.CreateAttr("start", f.start.UTC().Format(icalUTC))
		tr.CreateAttr("end", f.end.UTC().Format(icalUTC))
	}
	for _, category := range f.categories {
		textMatch(event, ical.PropCategories, category, false)
	}
	for _, status := range f.excluded {
		textMatch(event, ical.PropStatus, status, true)
	}
	if f.uid != "" {
		textMatch(event, ical.PropUID, f.uid, false).CreateAttr("collation", "i;octet")
	}
	return doc, nil
}

func textMatch(parent *etree.Element, property, text string, negate bool) *etree.Element {
	pf := parent.CreateElement("C:prop-filter")
	pf.CreateAttr("name", property)
	tm := pf.CreateElement("C:text-match")
	if negate {
		tm.CreateAttr("negate-condition", "yes")
	}
	tm.SetText(text)
	return tm
}

func (f *objectFilter) Do(ctx context.Context) ([]CalendarObject, error) {
	query, err := f.buildQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar query: %w", err)
	}

	objects, err := f.client.executeCalendarQuery(ctx, f.calendarURL, query)
	if err != nil {
		return nil, err
	}
	if f.uid != "" {
		// text-match is a substring test.
		var matched []CalendarObject
		for _, obj := range objects {
			if obj.hasUID(f.uid) {
				matched = append(matched, obj)
			}
		}
		objects = matched
	}
	if f.limit > 0 && len(objects) > f.limit {
		objects = objects[:f.limit]
	}
	return objects, nil
}
