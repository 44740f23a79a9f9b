package caldav

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
	"github.com/emersion/go-ical"
)

// CalendarObject represents a calendar object resource with its metadata
type CalendarObject struct {
	URL      string
	ETag     string
	Calendar *ical.Calendar
}

// Events lists the VEVENT components of the object, master and overrides.
func (o CalendarObject) Events() []ical.Event {
	if o.Calendar == nil {
		return nil
	}
	return o.Calendar.Events()
}

func (o CalendarObject) hasUID(uid string) bool {
	for _, event := range o.Events() {
		if v, _ := event.Props.Text(ical.PropUID); v == uid {
			return true
		}
	}
	return false
}

// Events returns a filter for querying all events of a calendar
func (c *davClient) Events(calendarURL string) ObjectFilter {
	return &objectFilter{client: c, calendarURL: calendarURL}
}

// executeCalendarQuery sends a CalDAV REPORT request and returns calendar objects with metadata
func (c *davClient) executeCalendarQuery(ctx context.Context, calendarURL string, query *etree.Document) ([]CalendarObject, error) {
	c.logger.Debug("starting calendar-query", "calendar", calendarURL)
	resp, err := c.httpClient.DoREPORT(ctx, calendarURL, 1, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute calendar query: %w", err)
	}
	return c.decodeObjects(resp)
}

func (c *davClient) decodeObjects(resp *httpclient.ReportResponse) ([]CalendarObject, error) {
	var objects []CalendarObject
	for _, response := range resp.Responses {
		if !response.PropStat.OK() {
			c.logger.Debug("skipping calendar object",
				"href", response.Href,
				"status", response.PropStat.Status)
			continue
		}

		object := CalendarObject{
			URL:  response.Href,
			ETag: strings.Trim(response.PropStat.Prop.ETag, `"`),
		}
		if data := response.PropStat.Prop.CalendarData; strings.TrimSpace(data) != "" {
			calendar, err := ical.NewDecoder(strings.NewReader(data)).Decode()
			if err != nil {
				return nil, fmt.Errorf("failed to parse iCalendar data of %s: %w", response.Href, err)
			}
			object.Calendar = calendar
		}
		objects = append(objects, object)
	}

	return objects, nil
}
