// Package httpclient talks to the cloud instance: OCS API calls with their
// JSON envelope and CalDAV REPORT queries with multistatus replies.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cafevdb/cafevdbmembers/internal/metrics"
)

// maxResponseSize bounds the bytes read from a single cloud reply.
const maxResponseSize = 32 << 20

// ErrResponseTooLarge is returned for replies exceeding the size limit.
var ErrResponseTooLarge = errors.New("response too large")

// HttpClientWrapper wraps http.Client with the cloud's OCS and CalDAV request styles
type HttpClientWrapper interface {
	DoOCS(ctx context.Context, method string, url string, params url.Values, out any) error
	DoREPORT(ctx context.Context, url string, depth int, query any) (*ReportResponse, error)
}

type httpClientWrapper struct {
	client  *http.Client
	baseURL url.URL
	logger  *slog.Logger

	// maxResponse overrides maxResponseSize when positive.
	maxResponse int64
}

// NewHttpClientWrapper creates a new client wrapper rooted at the cloud's base URL
func NewHttpClientWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger) (HttpClientWrapper, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL.String())
	}
	if client == nil {
		client = &http.Client{}
	}
	return &httpClientWrapper{client: client, baseURL: baseURL, logger: logger}, nil
}

// outgoing describes one request before it is resolved against the base URL.
type outgoing struct {
	method string
	path   string
	query  url.Values
	body   io.Reader
	header http.Header
}

// reply is a fully read response.
type reply struct {
	status     int
	statusLine string
	header     http.Header
	body       []byte
	url        *url.URL
}

func (c *httpClientWrapper) resolve(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", path, err)
	}
	// Absolute routes live below the base path of an instance installed
	// in a subdirectory. Hrefs from the server already carry it.
	base := c.baseURL
	prefix := strings.TrimSuffix(base.Path, "/")
	base.Path, base.RawPath = prefix+"/", ""
	if !ref.IsAbs() && ref.Host == "" && prefix != "" && strings.HasPrefix(ref.Path, "/") &&
		ref.Path != prefix && !strings.HasPrefix(ref.Path, prefix+"/") {
		ref.Path, ref.RawPath = prefix+ref.Path, ""
	}
	target := base.ResolveReference(ref)
	if len(query) > 0 {
		q := target.Query()
		for key, values := range query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target, nil
}

// send executes req and reads the whole reply. Only transport failures are
// returned as errors; status handling is left to the caller.
func (c *httpClientWrapper) send(ctx context.Context, req outgoing) (*reply, error) {
	target, err := c.resolve(req.path, req.query)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), req.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", req.method, err)
	}
	for key, values := range req.header {
		httpReq.Header[key] = values
	}

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.RecordCloudRequest(req.method, 0, time.Since(started))
		c.logger.Debug("request failed", "method", req.method, "url", target.String(), "error", err)
		return nil, fmt.Errorf("failed to send %s request: %w", req.method, err)
	}
	defer resp.Body.Close()

	limit := c.maxResponse
	if limit <= 0 {
		limit = maxResponseSize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	metrics.RecordCloudRequest(req.method, resp.StatusCode, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", req.method, target.Path, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s %s: %w: more than %d bytes", req.method, target.Path, ErrResponseTooLarge, limit)
	}
	c.logger.Debug("cloud request done",
		"method", req.method,
		"url", target.String(),
		"status", resp.StatusCode,
		"length", len(body),
		"duration", time.Since(started))

	return &reply{
		status:     resp.StatusCode,
		statusLine: resp.Status,
		header:     resp.Header,
		body:       body,
		url:        target,
	}, nil
}
