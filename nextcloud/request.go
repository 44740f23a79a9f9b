package nextcloud

import (
	"context"
	"io"
	"log/slog"
	"net/url"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
)

// RequestService issues OCS calls against the cloud with the service
// account. Calls made while serving a member request need that request's
// session released first, otherwise the member's parallel requests would
// queue behind a slow cloud round trip.
type RequestService struct {
	http   httpclient.HttpClientWrapper
	logger *slog.Logger
}

// NewRequestService creates a request service
func NewRequestService(http httpclient.HttpClientWrapper, logger *slog.Logger) *RequestService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RequestService{http: http, logger: logger}
}

// Call sends one OCS request. If the context carries an open session it is
// closed when closeSession is set; otherwise the call fails with
// ErrSessionOpen.
func (s *RequestService) Call(ctx context.Context, method, route string, params url.Values, out any, closeSession bool) error {
	if session := auth.SessionFromContext(ctx); session != nil && !session.Closed() {
		if !closeSession {
			s.logger.Error("refusing cloud call with open session",
				"method", method,
				"route", route,
				"user", session.UserID())
			return ErrSessionOpen
		}
		s.logger.Debug("closing request session before cloud call", "user", session.UserID())
		session.Close()
	}
	return s.http.DoOCS(ctx, method, route, params, out)
}
