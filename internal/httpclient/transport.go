package httpclient

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
)

const userAgent = "cafevdbmembers"

// BasicAuthTransport authenticates outgoing requests with HTTP Basic
// credentials. The app uses one for the service account and a short-lived
// one for each member login check.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport wraps transport, or http.DefaultTransport when nil.
func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip sends a copy of req carrying the credentials; req itself is not
// modified. Bodies are never logged since form posts may hold passwords.
func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username == "" || t.Password == "" {
		return nil, errors.New("basic auth credentials are incomplete")
	}
	next := t.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	out := req.Clone(req.Context())
	out.SetBasicAuth(t.Username, t.Password)
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", userAgent)
	}

	resp, err := next.RoundTrip(out)
	if err != nil {
		t.Logger.Debug("round trip failed", "method", req.Method, "host", req.URL.Host, "user", t.Username, "error", err)
		return nil, err
	}
	t.Logger.Debug("round trip",
		"method", req.Method,
		"path", req.URL.Path,
		"user", t.Username,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"))
	return resp, nil
}
