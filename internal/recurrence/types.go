package recurrence

import (
	"time"
)

// Series describes how a calendar event repeats.
type Series struct {
	// Rule is the RRULE value without its property name.
	Rule string
	// Dates are extra RDATE instances outside the rule.
	Dates []time.Time
	// Exceptions are EXDATE instances removed from the series. A midnight
	// UTC entry removes every instance on that day.
	Exceptions []time.Time
	// RecurrenceID is set on override components and names the instance
	// they replace.
	RecurrenceID *time.Time
}

// IsRecurring reports whether the series has more than its master instance.
func (s Series) IsRecurring() bool {
	return s.Rule != "" || len(s.Dates) > 0
}

// Occurrence is one concrete instance of a series.
type Occurrence struct {
	Start time.Time
	End   time.Time
	// RecurrenceID identifies the instance inside its series. It equals
	// Start unless an override moved the instance.
	RecurrenceID time.Time
}
