// Package server exposes the member portal over HTTP: the member data API,
// the settings endpoints, the group folder administration and the public
// project registration.
package server

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/events"
	"github.com/cafevdb/cafevdbmembers/internal/l10n"
	"github.com/cafevdb/cafevdbmembers/memberdata"
	"github.com/cafevdb/cafevdbmembers/projectgroups"
	"github.com/cafevdb/cafevdbmembers/registration"
	"github.com/cafevdb/cafevdbmembers/settings"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	// HTTP headers
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"

	// MIME types
	mimeTypeJSON     = "application/json; charset=utf-8"
	mimeTypeHTML     = "text/html; charset=utf-8"
	mimeTypeCalendar = "text/calendar; charset=utf-8"
)

// RowAccess runs queries on a session scoped to one member.
type RowAccess interface {
	WithRowAccess(ctx context.Context, userID, token string, fn func(tx *gorm.DB) error) error
}

// TokenSource resolves the row-access token of an authenticated member.
type TokenSource interface {
	RowAccessToken(ctx context.Context, creds auth.Credentials) (string, error)
}

// EventSource lists and exports the calendar events of a project.
type EventSource interface {
	ProjectEvents(ctx context.Context, db *gorm.DB, projectID int, from, to time.Time) ([]events.Event, error)
	Export(ctx context.Context, db *gorm.DB, projectID int) ([]byte, error)
}

// Registrations backs the public registration form.
type Registrations interface {
	OpenProjects(ctx context.Context, now time.Time) ([]registration.ProjectInfo, error)
	Form(ctx context.Context, projectID int) (registration.Form, error)
	Submit(ctx context.Context, projectID int, sub registration.Submission) (uuid.UUID, error)
}

// ProjectGroups reconciles the group folders of project groups.
type ProjectGroups interface {
	SyncProjectGroup(ctx context.Context, groupID string) (projectgroups.SyncResult, error)
	SyncAll(ctx context.Context, progress projectgroups.Progress) ([]projectgroups.SyncResult, error)
}

// Config wires the server to its services.
type Config struct {
	Authenticator auth.Authenticator
	Sessions      *auth.SessionManager
	Tokens        TokenSource
	Database      RowAccess
	Settings      *settings.Settings
	Members       *memberdata.Service
	Events        EventSource
	Registrations Registrations
	ProjectGroups ProjectGroups
	Catalog       *l10n.Catalog

	// AdminGroup members may change app settings and run synchronizations.
	AdminGroup        string
	RegistrationRate  rate.Limit
	RegistrationBurst int
	Logger            *slog.Logger
}

// Server is the portal's HTTP handler.
type Server struct {
	authn         auth.Authenticator
	sessions      *auth.SessionManager
	tokens        TokenSource
	db            RowAccess
	settings      *settings.Settings
	members       *memberdata.Service
	events        EventSource
	registrations Registrations
	projectGroups ProjectGroups
	catalog       *l10n.Catalog
	adminGroup    string

	router  *mux.Router
	handler http.Handler
	limiter *rateLimiter
	pages   *template.Template
	logger  *slog.Logger
	now     func() time.Time
}

// New creates the portal server
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Authenticator == nil:
		return nil, fmt.Errorf("authenticator is required")
	case cfg.Tokens == nil:
		return nil, fmt.Errorf("token source is required")
	case cfg.Database == nil:
		return nil, fmt.Errorf("database is required")
	case cfg.Settings == nil:
		return nil, fmt.Errorf("settings are required")
	case cfg.Events == nil:
		return nil, fmt.Errorf("event source is required")
	case cfg.Registrations == nil:
		return nil, fmt.Errorf("registrations are required")
	case cfg.ProjectGroups == nil:
		return nil, fmt.Errorf("project groups are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	catalog := cfg.Catalog
	if catalog == nil {
		var err error
		if catalog, err = l10n.LoadEmbedded(); err != nil {
			return nil, err
		}
	}
	members := cfg.Members
	if members == nil {
		members = memberdata.NewService(logger)
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = auth.NewSessionManager()
	}
	adminGroup := cfg.AdminGroup
	if adminGroup == "" {
		adminGroup = "admin"
	}
	limit, burst := cfg.RegistrationRate, cfg.RegistrationBurst
	if limit <= 0 {
		limit = 0.5
	}
	if burst <= 0 {
		burst = 5
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		authn:         cfg.Authenticator,
		sessions:      sessions,
		tokens:        cfg.Tokens,
		db:            cfg.Database,
		settings:      cfg.Settings,
		members:       members,
		events:        cfg.Events,
		registrations: cfg.Registrations,
		projectGroups: cfg.ProjectGroups,
		catalog:       catalog,
		adminGroup:    adminGroup,
		limiter:       newRateLimiter(limit, burst),
		pages:         pages,
		logger:        logger,
		now:           time.Now,
	}
	s.router = s.routes()
	s.handler = auth.Middleware(auth.MiddlewareConfig{
		Authenticator:  s.authn,
		Sessions:       s.sessions,
		Realm:          "cafevdbmembers",
		PublicPrefixes: publicPrefixes,
		Logger:         logger,
	})(s.router)
	return s, nil
}

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

// Start runs the background upkeep of the server until ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.limiter.StartCleanup(ctx, limiterCleanupInterval, limiterMaxIdle)
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
