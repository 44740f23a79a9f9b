// Package caldav queries calendar objects from the cloud's CalDAV server.
package caldav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
)

// Client defines the CalDAV read operations used by the portal
type Client interface {
	// Events returns a calendar-query builder for VEVENT objects.
	Events(calendarURL string) ObjectFilter
	// Multiget fetches the named objects of one calendar.
	Multiget(ctx context.Context, calendarURL string, hrefs []string) ([]CalendarObject, error)
}

type davClient struct {
	httpClient httpclient.HttpClientWrapper
	logger     *slog.Logger
}

// NewClient creates a new CalDAV client
func NewClient(httpClient httpclient.HttpClientWrapper, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &davClient{
		httpClient: httpClient,
		logger:     logger,
	}
}

// CalendarURL names a calendar collection of the given owner.
func CalendarURL(owner, calendarURI string) string {
	return fmt.Sprintf("/remote.php/dav/calendars/%s/%s/", owner, strings.Trim(calendarURI, "/"))
}

// ObjectURL resolves an object name against its calendar collection.
func ObjectURL(calendarURL, objectURI string) string {
	if strings.HasPrefix(objectURI, "/") {
		return objectURI
	}
	return path.Join(calendarURL, objectURI)
}
