package httpclient

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockQuery struct {
	XMLName xml.Name `xml:"query"`
	Value   string   `xml:"value"`
}

func newTestWrapper(t *testing.T, server *httptest.Server) *httpClientWrapper {
	t.Helper()
	base, err := url.Parse(server.URL)
	require.NoError(t, err)
	return &httpClientWrapper{
		client:  server.Client(),
		baseURL: *base,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const multistatusBody = `<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:">
	<D:response>
		<D:href>/calendar/event1.ics</D:href>
		<D:propstat>
			<D:prop>
<C:calendar-data xmlns:C="urn:ietf:params:xml:ns:caldav">BEGIN:VCALENDAR...</C:calendar-data>
<D:getetag>"123"</D:getetag>
</D:prop>
<D:status>HTTP/1.1 200 OK</D:status>
</D:propstat>
</D:response>
</D:multistatus>`

func TestDoREPORT(t *testing.T) {
	etreeQuery := etree.NewDocument()
	etreeQuery.CreateElement("query").SetText("doc")

	tests := []struct {
		name          string
		query         any
		serverHandler func(w http.ResponseWriter, r *http.Request)
		wantErr       bool
	}{
		{
			name:  "successful request",
			query: &mockQuery{Value: "test"},
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "REPORT", r.Method)
				assert.Equal(t, "application/xml; charset=utf-8", r.Header.Get("Content-Type"))
				assert.Equal(t, "1", r.Header.Get("Depth"))
				w.WriteHeader(http.StatusMultiStatus)
				w.Write([]byte(multistatusBody))
			},
		},
		{
			name:  "etree document query",
			query: etreeQuery,
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Contains(t, string(body), "<query>doc</query>")
				w.WriteHeader(http.StatusMultiStatus)
				w.Write([]byte(multistatusBody))
			},
		},
		{
			name:  "invalid query",
			query: make(chan int),
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("server should not be called")
			},
			wantErr: true,
		},
		{
			name:  "server error",
			query: &mockQuery{Value: "test"},
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
		{
			name:  "invalid response XML",
			query: &mockQuery{Value: "test"},
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusMultiStatus)
				w.Write([]byte(`invalid XML`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverHandler))
			defer server.Close()

			resp, err := newTestWrapper(t, server).DoREPORT(context.Background(), server.URL, 1, tt.query)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, resp.Responses, 1)
			assert.Equal(t, "/calendar/event1.ics", resp.Responses[0].Href)
			assert.Equal(t, "HTTP/1.1 200 OK", resp.Responses[0].PropStat.Status)
			assert.Equal(t, "BEGIN:VCALENDAR...", resp.Responses[0].PropStat.Prop.CalendarData)
			assert.Equal(t, `"123"`, resp.Responses[0].PropStat.Prop.ETag)
		})
	}
}
