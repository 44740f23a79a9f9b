// Package events lists the calendar events linked to a project.
package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/cafevdb/cafevdbmembers/caldav"
	"github.com/cafevdb/cafevdbmembers/entity"
	"github.com/cafevdb/cafevdbmembers/internal/recurrence"
	"github.com/emersion/go-ical"
	"gorm.io/gorm"
)

// ErrInvalidRange is returned when the requested window is empty.
var ErrInvalidRange = errors.New("invalid time range")

const productID = "-//CAFEV//cafevdbmembers//EN"

// Event is one occurrence of a project event.
type Event struct {
	UID          string           `json:"uid"`
	URI          string           `json:"uri"`
	Calendar     string           `json:"calendar"`
	Summary      string           `json:"summary"`
	Location     string           `json:"location,omitempty"`
	Description  string           `json:"description,omitempty"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	AllDay       bool             `json:"allDay"`
	RecurrenceID *time.Time       `json:"recurrenceId,omitempty"`
	Type         entity.EventType `json:"type"`
}

// Service joins the project event links of the database with the calendar
// objects of the cloud.
type Service struct {
	client caldav.Client
	engine *recurrence.Engine
	owner  string
	logger *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEngine replaces the default recurrence engine
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Service) { s.engine = engine }
}

// NewService creates an events service reading the calendars of owner
func NewService(client caldav.Client, owner string, opts ...Option) *Service {
	s := &Service{
		client: client,
		engine: recurrence.NewEngine(),
		owner:  owner,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) links(ctx context.Context, db *gorm.DB, projectID int) (map[string][]entity.ProjectEvent, error) {
	var links []entity.ProjectEvent
	if err := db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load events of project %d: %w", projectID, err)
	}
	byCalendar := make(map[string][]entity.ProjectEvent)
	for _, link := range links {
		byCalendar[link.CalendarURI] = append(byCalendar[link.CalendarURI], link)
	}
	return byCalendar, nil
}

func sortedKeys(m map[string][]entity.ProjectEvent) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// match finds the link an object belongs to, by object name or UID.
func match(links []entity.ProjectEvent, obj caldav.CalendarObject) (entity.ProjectEvent, bool) {
	name := path.Base(obj.URL)
	for _, link := range links {
		if link.EventURI != "" && path.Base(link.EventURI) == name {
			return link, true
		}
	}
	for _, event := range obj.Events() {
		uid, _ := event.Props.Text(ical.PropUID)
		for _, link := range links {
			if link.EventUID != "" && link.EventUID == uid {
				return link, true
			}
		}
	}
	return entity.ProjectEvent{}, false
}

// ProjectEvents lists the occurrences of the project's events overlapping
// [from, to), ordered by start.
func (s *Service) ProjectEvents(ctx context.Context, db *gorm.DB, projectID int, from, to time.Time) ([]Event, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: %s - %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	byCalendar, err := s.links(ctx, db, projectID)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, calendarURI := range sortedKeys(byCalendar) {
		links := byCalendar[calendarURI]
		calendarURL := caldav.CalendarURL(s.owner, calendarURI)
		objects, err := s.client.Events(calendarURL).TimeRange(from, to).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query calendar %s: %w", calendarURI, err)
		}
		s.logger.Debug("queried project calendar",
			"project", projectID,
			"calendar", calendarURI,
			"objects", len(objects),
			"links", len(links))

		for _, obj := range objects {
			link, ok := match(links, obj)
			if !ok {
				continue
			}
			expanded, err := s.expandObject(obj, link, from, to)
			if err != nil {
				s.logger.Warn("skipping unreadable event", "object", obj.URL, "error", err)
				continue
			}
			events = append(events, expanded...)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].UID < events[j].UID
	})
	return events, nil
}

// expandObject turns the VEVENTs of one calendar object into occurrences.
// Components carrying a RECURRENCE-ID replace the matching instances of the
// master series.
func (s *Service) expandObject(obj caldav.CalendarObject, link entity.ProjectEvent, from, to time.Time) ([]Event, error) {
	var master *ical.Component
	overrides := make(map[int64]*ical.Component)
	for _, event := range obj.Events() {
		comp := event.Component
		info := recurrence.SeriesFromComponent(comp)
		if info.RecurrenceID != nil {
			overrides[info.RecurrenceID.Unix()] = comp
			continue
		}
		if master == nil {
			master = comp
		}
	}
	if master != nil && cancelled(master) {
		return nil, nil
	}

	base := Event{
		URI:      path.Base(obj.URL),
		Calendar: link.CalendarURI,
		Type:     link.Type,
	}
	if base.Type == "" {
		base.Type = entity.EventTypeEvent
	}

	var events []Event
	used := make(map[int64]bool)
	if master != nil {
		start, end, ok := recurrence.ExtractBasicTimeInfoFromComponent(master)
		if !ok {
			return nil, fmt.Errorf("event without DTSTART")
		}
		info := recurrence.SeriesFromComponent(master)

		occurrences := []recurrence.Occurrence{{Start: start, End: end, RecurrenceID: start}}
		if info.IsRecurring() {
			var err error
			occurrences, err = s.engine.Expand(start, end, info, from, to)
			if err != nil {
				return nil, err
			}
		} else if !overlapsRange(start, end, from, to) {
			occurrences = nil
		}

		for _, occ := range occurrences {
			key := occ.RecurrenceID.Unix()
			if override, ok := overrides[key]; ok {
				used[key] = true
				if ev, ok := s.instance(base, override, from, to); ok {
					events = append(events, ev)
				}
				continue
			}
			ev := fill(base, master)
			ev.Start, ev.End = occ.Start, occ.End
			if info.IsRecurring() {
				recurrenceID := occ.RecurrenceID
				ev.RecurrenceID = &recurrenceID
			}
			events = append(events, ev)
		}
	}

	// Overrides moved into the window from an instance outside of it.
	keys := make([]int64, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		if used[key] {
			continue
		}
		if ev, ok := s.instance(base, overrides[key], from, to); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (s *Service) instance(base Event, comp *ical.Component, from, to time.Time) (Event, bool) {
	if cancelled(comp) {
		return Event{}, false
	}
	start, end, ok := recurrence.ExtractBasicTimeInfoFromComponent(comp)
	if !ok || !overlapsRange(start, end, from, to) {
		return Event{}, false
	}
	ev := fill(base, comp)
	ev.Start, ev.End = start, end
	ev.RecurrenceID = recurrence.SeriesFromComponent(comp).RecurrenceID
	return ev, true
}

func cancelled(comp *ical.Component) bool {
	status, _ := comp.Props.Text(ical.PropStatus)
	return strings.EqualFold(status, "CANCELLED")
}

func fill(base Event, comp *ical.Component) Event {
	ev := base
	ev.UID, _ = comp.Props.Text(ical.PropUID)
	ev.Summary, _ = comp.Props.Text(ical.PropSummary)
	ev.Location, _ = comp.Props.Text(ical.PropLocation)
	ev.Description, _ = comp.Props.Text(ical.PropDescription)
	ev.AllDay = recurrence.IsAllDay(comp)
	return ev
}

func overlapsRange(start, end, from, to time.Time) bool {
	if end.Equal(start) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}

// Export renders every event linked to the project as one iCalendar file.
// Time zone definitions travel along with the events using them.
func (s *Service) Export(ctx context.Context, db *gorm.DB, projectID int) ([]byte, error) {
	byCalendar, err := s.links(ctx, db, projectID)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	timezones := make(map[string]bool)
	for _, calendarURI := range sortedKeys(byCalendar) {
		calendarURL := caldav.CalendarURL(s.owner, calendarURI)
		var hrefs, uids []string
		for _, link := range byCalendar[calendarURI] {
			switch {
			case link.EventURI != "":
				hrefs = append(hrefs, caldav.ObjectURL(calendarURL, link.EventURI))
			case link.EventUID != "":
				uids = append(uids, link.EventUID)
			}
		}
		objects, err := s.client.Multiget(ctx, calendarURL, hrefs)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events of calendar %s: %w", calendarURI, err)
		}

		// Links known by UID only need a query each.
		seen := make(map[string]bool, len(objects))
		for _, obj := range objects {
			seen[obj.URL] = true
		}
		for _, uid := range uids {
			found, err := s.client.Events(calendarURL).UID(uid).Do(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to look up event %s in calendar %s: %w", uid, calendarURI, err)
			}
			if len(found) == 0 {
				s.logger.Warn("linked event not found", "project", projectID, "calendar", calendarURI, "uid", uid)
			}
			for _, obj := range found {
				if !seen[obj.URL] {
					seen[obj.URL] = true
					objects = append(objects, obj)
				}
			}
		}

		for _, obj := range objects {
			for _, child := range obj.Calendar.Children {
				switch child.Name {
				case ical.CompTimezone:
					tzid, _ := child.Props.Text(ical.PropTimezoneID)
					if timezones[tzid] {
						continue
					}
					timezones[tzid] = true
				case ical.CompEvent:
					if child.Props.Get(ical.PropDateTimeStamp) == nil {
						child.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
					}
				default:
					continue
				}
				cal.Children = append(cal.Children, child)
			}
		}
	}

	// Time zones first, as most clients expect.
	sort.SliceStable(cal.Children, func(i, j int) bool {
		return cal.Children[i].Name == ical.CompTimezone && cal.Children[j].Name != ical.CompTimezone
	})

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFileName is the download name of a project's calendar export.
func ExportFileName(projectName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, projectName)
	if name == "" {
		name = "events"
	}
	return name + ".ics"
}
