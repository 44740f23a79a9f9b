package caldav

import (
	"context"
	"net/url"

	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
)

// ReportFunc is a function type for mocking REPORT
type ReportFunc func(url string, depth int, query any) (*httpclient.ReportResponse, error)

// Mock types for testing
type mockHTTPClient struct {
	reportResponse *httpclient.ReportResponse
	reportErr      error
	doReport       ReportFunc

	lastURL   string
	lastQuery any
}

func (m *mockHTTPClient) DoREPORT(_ context.Context, url string, depth int, query any) (*httpclient.ReportResponse, error) {
	m.lastURL = url
	m.lastQuery = query
	if m.doReport != nil {
		return m.doReport(url, depth, query)
	}
	return m.reportResponse, m.reportErr
}

func (m *mockHTTPClient) DoOCS(context.Context, string, string, url.Values, any) error {
	return nil
}

func reportResource(href, etag, data string) httpclient.ReportResource {
	var r httpclient.ReportResource
	r.Href = href
	r.PropStat.Status = "HTTP/1.1 200 OK"
	r.PropStat.Prop.ETag = etag
	r.PropStat.Prop.CalendarData = data
	return r
}
