package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/events"
	"github.com/cafevdb/cafevdbmembers/internal/database"
	"github.com/cafevdb/cafevdbmembers/memberdata"
	"github.com/cafevdb/cafevdbmembers/nextcloud"
	"github.com/cafevdb/cafevdbmembers/projectgroups"
	"github.com/cafevdb/cafevdbmembers/registration"
	"github.com/cafevdb/cafevdbmembers/settings"
	"golang.org/x/text/message"
)

// Message keys of the translation catalogs
const (
	msgNotImplemented     = "not implemented: %s"
	msgUnknownSetting     = "unknown setting: %s"
	msgOperationFailed    = "operation failed: %s"
	msgNotFound           = "not found: %s"
	msgAlreadyExists      = "already exists: %s"
	msgForbidden          = "forbidden"
	msgInvalidRequest     = "invalid request: %s"
	msgTooManyRequests    = "too many requests"
	msgRegistrationClosed = "registration is closed for project %d"
)

// requestError is a failure with a fixed status and catalog message.
type requestError struct {
	status int
	key    string
	args   []any
	err    error
}

func (e *requestError) Error() string {
	msg := fmt.Sprintf(e.key, e.args...)
	if e.err != nil {
		return msg + ": " + e.err.Error()
	}
	return msg
}

func (e *requestError) Unwrap() error { return e.err }

func notImplemented(path string) error {
	return &requestError{status: http.StatusNotImplemented, key: msgNotImplemented, args: []any{path}}
}

func unknownSetting(key string, err error) error {
	return &requestError{status: http.StatusBadRequest, key: msgUnknownSetting, args: []any{key}, err: err}
}

func badRequest(err error) error {
	return &requestError{status: http.StatusBadRequest, key: msgInvalidRequest, args: []any{err.Error()}, err: err}
}

func forbidden() error {
	return &requestError{status: http.StatusForbidden, key: msgForbidden}
}

type errorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// translate maps err onto a status and a localized response body.
func translate(p *message.Printer, err error) (int, errorResponse) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status, errorResponse{Message: p.Sprintf(reqErr.key, reqErr.args...)}
	}

	var validation *registration.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, errorResponse{
			Message: p.Sprintf(msgInvalidRequest, validation.Error()),
			Fields:  validation.Fields,
		}
	}

	switch {
	case errors.Is(err, memberdata.ErrNotFound),
		errors.Is(err, registration.ErrNotFound),
		errors.Is(err, nextcloud.ErrFolderNotFound),
		errors.Is(err, nextcloud.ErrGroupNotFound):
		return http.StatusNotFound, errorResponse{Message: p.Sprintf(msgNotFound, err.Error())}
	case errors.Is(err, registration.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{Message: p.Sprintf(msgAlreadyExists, err.Error())}
	case errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, events.ErrInvalidRange),
		errors.Is(err, projectgroups.ErrNotProjectGroup):
		return http.StatusBadRequest, errorResponse{Message: p.Sprintf(msgInvalidRequest, err.Error())}
	case errors.Is(err, database.ErrNoRowAccess),
		auth.IsErrorType(err, auth.ErrForbidden),
		auth.IsErrorType(err, auth.ErrNoRowAccessToken),
		auth.IsErrorType(err, auth.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{Message: p.Sprintf(msgForbidden)}
	}
	return http.StatusInternalServerError, errorResponse{Message: p.Sprintf(msgOperationFailed, err.Error())}
}

// apiHandler is a handler whose failures are rendered as JSON errors.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

func (s *Server) api(h apiHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := translate(s.printer(r), err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// printer picks the message language from the member's setting, the
// cloud profile or the Accept-Language header, in that order.
func (s *Server) printer(r *http.Request) *message.Printer {
	principal := auth.GetPrincipalFromContext(r.Context())
	if principal == nil {
		return s.catalog.RequestPrinter(r, "")
	}
	lang, err := s.settings.User(r.Context(), principal.ID, settings.Language, false)
	if err != nil || lang == "" {
		lang = principal.Language
	}
	return s.catalog.RequestPrinter(r, lang)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleNotImplemented(w http.ResponseWriter, r *http.Request) error {
	return notImplemented(r.URL.Path)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) error {
	return &requestError{status: http.StatusNotFound, key: msgNotFound, args: []any{r.URL.Path}}
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) error {
	return &requestError{status: http.StatusMethodNotAllowed, key: msgInvalidRequest, args: []any{r.Method}}
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) error {
	return &requestError{status: http.StatusTooManyRequests, key: msgTooManyRequests}
}
