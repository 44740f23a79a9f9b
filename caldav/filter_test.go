package caldav

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockQuerier records the query document it is asked to run
type mockQuerier struct {
	query   *etree.Document
	url     string
	objects []CalendarObject
	err     error
}

func (m *mockQuerier) executeCalendarQuery(_ context.Context, calendarURL string, query *etree.Document) ([]CalendarObject, error) {
	m.url = calendarURL
	m.query = query
	return m.objects, m.err
}

// eventFilter returns the VEVENT comp-filter of a calendar-query document.
func eventFilter(t *testing.T, doc *etree.Document) *etree.Element {
	t.Helper()
	el := doc.Root().FindElement("./filter/comp-filter[@name='VCALENDAR']/comp-filter[@name='VEVENT']")
	require.NotNil(t, el)
	return el
}

type propMatch struct {
	name, text string
	negate     bool
}

func propMatches(el *etree.Element) []propMatch {
	var got []propMatch
	for _, pf := range el.SelectElements("prop-filter") {
		tm := pf.SelectElement("text-match")
		got = append(got, propMatch{
			name:   pf.SelectAttrValue("name", ""),
			text:   tm.Text(),
			negate: tm.SelectAttrValue("negate-condition", "") == "yes",
		})
	}
	return got
}

func TestObjectFilter_BuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(ObjectFilter)
		validate func(*testing.T, *etree.Element)
	}{
		{
			name:  "all events",
			setup: func(ObjectFilter) {},
			validate: func(t *testing.T, ev *etree.Element) {
				assert.Nil(t, ev.SelectElement("time-range"))
				assert.Empty(t, propMatches(ev))
			},
		},
		{
			name: "time range in UTC",
			setup: func(f ObjectFilter) {
				berlin := time.FixedZone("CET", 3600)
				f.TimeRange(
					time.Date(2024, 1, 1, 1, 0, 0, 0, berlin),
					time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
				)
			},
			validate: func(t *testing.T, ev *etree.Element) {
				tr := ev.SelectElement("time-range")
				require.NotNil(t, tr)
				assert.Equal(t, "20240101T000000Z", tr.SelectAttrValue("start", ""))
				assert.Equal(t, "20241231T235959Z", tr.SelectAttrValue("end", ""))
			},
		},
		{
			name: "all categories are required",
			setup: func(f ObjectFilter) {
				f.Categories("concert").Categories("cafevdb-project-7")
			},
			validate: func(t *testing.T, ev *etree.Element) {
				assert.Equal(t, []propMatch{
					{name: "CATEGORIES", text: "concert"},
					{name: "CATEGORIES", text: "cafevdb-project-7"},
				}, propMatches(ev))
			},
		},
		{
			name: "excluded status",
			setup: func(f ObjectFilter) {
				f.ExcludeStatus("CANCELLED")
			},
			validate: func(t *testing.T, ev *etree.Element) {
				assert.Equal(t, []propMatch{{name: "STATUS", text: "CANCELLED", negate: true}}, propMatches(ev))
			},
		},
		{
			name: "uid with exact collation",
			setup: func(f ObjectFilter) {
				f.UID("concert@cafev.de")
			},
			validate: func(t *testing.T, ev *etree.Element) {
				assert.Equal(t, []propMatch{{name: "UID", text: "concert@cafev.de"}}, propMatches(ev))
				tm := ev.FindElement("./prop-filter/text-match")
				require.NotNil(t, tm)
				assert.Equal(t, "i;octet", tm.SelectAttrValue("collation", ""))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &davClient{}
			f := client.Events("/cal/")
			tt.setup(f)

			doc, err := f.(*objectFilter).buildQuery()
			require.NoError(t, err)
			assert.Equal(t, "calendar-query", doc.Root().Tag)
			assert.Equal(t, nsCalDAV, doc.Root().NamespaceURI())
			assert.NotNil(t, doc.Root().FindElement("./prop/getetag"))
			tt.validate(t, eventFilter(t, doc))
		})
	}
}

func TestObjectFilter_InvalidTimeRange(t *testing.T) {
	mock := &mockQuerier{}
	f := &objectFilter{client: mock}

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := f.TimeRange(start, start.Add(-time.Hour)).Do(context.Background())
	assert.ErrorContains(t, err, "not after")
	assert.Nil(t, mock.query)
}

func TestObjectFilter_Do(t *testing.T) {
	objects := []CalendarObject{{URL: "/a.ics"}, {URL: "/b.ics"}, {URL: "/c.ics"}}

	t.Run("limit", func(t *testing.T) {
		mock := &mockQuerier{objects: objects}
		f := &objectFilter{client: mock, calendarURL: "/cal/"}

		got, err := f.Limit(2).Do(context.Background())
		require.NoError(t, err)
		assert.Equal(t, objects[:2], got)
		assert.Equal(t, "/cal/", mock.url)
	})

	t.Run("uid must match exactly", func(t *testing.T) {
		withUID := func(url, uid string) CalendarObject {
			cal := ical.NewCalendar()
			event := ical.NewEvent()
			event.Props.SetText(ical.PropUID, uid)
			cal.Children = append(cal.Children, event.Component)
			return CalendarObject{URL: url, Calendar: cal}
		}
		mock := &mockQuerier{objects: []CalendarObject{
			withUID("/a.ics", "concert"),
			withUID("/b.ics", "concert-encore"),
			withUID("/c.ics", "CONCERT"),
		}}
		f := &objectFilter{client: mock, calendarURL: "/cal/"}

		got, err := f.UID("concert").Do(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "/a.ics", got[0].URL)
	})

	t.Run("error", func(t *testing.T) {
		mock := &mockQuerier{err: errors.New("boom")}
		f := &objectFilter{client: mock}

		_, err := f.Do(context.Background())
		assert.ErrorContains(t, err, "boom")
	})
}

func TestCalendarQuery_Serialized(t *testing.T) {
	f := &objectFilter{}
	f.TimeRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	f.Categories("concert")

	doc, err := f.buildQuery()
	require.NoError(t, err)
	body, err := doc.WriteToString()
	require.NoError(t, err)

	assert.Contains(t, body, `<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">`)
	assert.Contains(t, body, `start="20240101T000000Z"`)
	assert.Contains(t, body, `<C:prop-filter name="CATEGORIES">`)
	assert.Contains(t, body, `>concert<`)
	assert.NotContains(t, body, "negate-condition")
}
