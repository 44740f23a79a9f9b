package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// Engine expands event series into occurrences
type Engine struct {
	cache          *Cache
	maxOccurrences int
	maxSpan        time.Duration
	lookupLimit    int
}

// HasOccurrenceInRange checks if a recurring event has any occurrence in the time range
func (e *Engine) HasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence Series,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	if overlaps(masterStart, masterEnd, rangeStart, rangeEnd) && !isExcluded(masterStart, recurrence.Exceptions) {
		return true, nil
	}

	occurrences, err := e.expand(masterStart, masterEnd, recurrence, rangeStart, rangeEnd, e.lookupLimit)
	if err != nil {
		return false, fmt.Errorf("failed to check occurrences: %w", err)
	}
	return len(occurrences) > 0, nil
}

// Expand lists the occurrences of a series overlapping [rangeStart, rangeEnd),
// ordered by start. The master instance always counts as the first
// occurrence of the series, EXDATEs remove instances.
func (e *Engine) Expand(
	masterStart, masterEnd time.Time,
	recurrence Series,
	rangeStart, rangeEnd time.Time,
) ([]Occurrence, error) {
	if e.maxSpan > 0 && rangeEnd.Sub(rangeStart) > e.maxSpan {
		rangeEnd = rangeStart.Add(e.maxSpan)
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(masterStart, masterEnd, recurrence, rangeStart, rangeEnd); ok {
			return cached, nil
		}
	}

	occurrences, err := e.expand(masterStart, masterEnd, recurrence, rangeStart, rangeEnd, e.maxOccurrences)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(masterStart, masterEnd, recurrence, rangeStart, rangeEnd, occurrences)
	}
	return occurrences, nil
}

// Close releases the cache.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

func (e *Engine) expand(
	masterStart, masterEnd time.Time,
	recurrence Series,
	rangeStart, rangeEnd time.Time,
	limit int,
) ([]Occurrence, error) {
	duration := masterEnd.Sub(masterStart)
	starts := []time.Time{masterStart}

	if recurrence.Rule != "" {
		ruleStarts, err := expandRRule(masterStart, recurrence.Rule, rangeStart.Add(-duration), rangeEnd)
		if err != nil {
			return nil, err
		}
		starts = append(starts, ruleStarts...)
	}
	starts = append(starts, recurrence.Dates...)

	seen := make(map[int64]bool, len(starts))
	var occurrences []Occurrence
	for _, start := range starts {
		key := start.UnixNano()
		if seen[key] {
			continue
		}
		seen[key] = true

		end := start.Add(duration)
		if !overlaps(start, end, rangeStart, rangeEnd) || isExcluded(start, recurrence.Exceptions) {
			continue
		}
		occurrences = append(occurrences, Occurrence{Start: start, End: end, RecurrenceID: start})
	}

	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	if limit > 0 && len(occurrences) > limit {
		occurrences = occurrences[:limit]
	}
	return occurrences, nil
}

// expandRRule expands an RRULE within the given time range. The rule keeps
// the location of masterStart so wall-clock times survive DST changes.
func expandRRule(masterStart time.Time, rruleStr string, rangeStart, rangeEnd time.Time) ([]time.Time, error) {
	opts, err := rrule.StrToROption(rruleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE '%s': %w", rruleStr, err)
	}
	opts.Dtstart = masterStart

	rule, err := rrule.NewRRule(*opts)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE '%s': %w", rruleStr, err)
	}

	return rule.Between(rangeStart, rangeEnd, true), nil
}

// overlaps reports whether [start, end) intersects [rangeStart, rangeEnd).
// Instantaneous events count when they sit inside the range.
func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	if !start.Before(rangeEnd) {
		return false
	}
	return end.After(rangeStart) || !start.Before(rangeStart)
}

// isExcluded checks if a given time is in the EXDATE list
func isExcluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}

		// Date-only exceptions are stored as midnight UTC and match the
		// whole day of the occurrence.
		if exdate.Hour() == 0 && exdate.Minute() == 0 && exdate.Second() == 0 && exdate.Location() == time.UTC {
			y, m, d := t.Date()
			if time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Equal(exdate) {
				return true
			}
		}
	}
	return false
}
