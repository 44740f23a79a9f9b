package nextcloud

import (
	"context"
	"net/url"

	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
)

// ocsCall records one request seen by mockOCSClient.
type ocsCall struct {
	method string
	route  string
	params url.Values
}

// mockOCSClient answers DoOCS with a canned handler result.
type mockOCSClient struct {
	calls  []ocsCall
	handle func(method, route string, params url.Values, out any) error
}

func (m *mockOCSClient) DoOCS(ctx context.Context, method, route string, params url.Values, out any) error {
	m.calls = append(m.calls, ocsCall{method: method, route: route, params: params})
	if m.handle == nil {
		return nil
	}
	return m.handle(method, route, params, out)
}

func (m *mockOCSClient) DoREPORT(ctx context.Context, url string, depth int, query any) (*httpclient.ReportResponse, error) {
	return nil, nil
}
