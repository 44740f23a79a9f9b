package auth

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// MiddlewareConfig configures the authentication middleware
type MiddlewareConfig struct {
	Authenticator Authenticator
	Sessions      *SessionManager
	Realm         string
	// PublicPrefixes are path prefixes served without authentication. A
	// prefix matches whole path segments only.
	PublicPrefixes []string
	Logger         *slog.Logger
}

// gate is the state shared by all requests through one middleware.
type gate struct {
	config MiddlewareConfig
	logger *slog.Logger
}

// Middleware creates HTTP middleware that enforces authentication and holds
// the user's session while the request runs
func Middleware(config MiddlewareConfig) func(http.Handler) http.Handler {
	if config.Realm == "" {
		config.Realm = "cafevdbmembers"
	}
	if config.Sessions == nil {
		config.Sessions = NewSessionManager()
	}
	g := &gate{
		config: config,
		logger: config.Logger,
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g.wrap
}

func (g *gate) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			if r.Header.Get("Authorization") != "" {
				g.logger.Debug("malformed authorization header", "path", r.URL.Path)
			}
			g.challenge(w)
			return
		}
		creds := Credentials{Username: username, Password: password}

		principal, err := g.config.Authenticator.Authenticate(r.Context(), creds)
		switch {
		case IsErrorType(err, ErrInvalidCredentials):
			g.challenge(w)
			return
		case err != nil:
			g.logger.Error("authentication backend failed", "username", username, "error", err)
			http.Error(w, "Authentication Unavailable", http.StatusBadGateway)
			return
		}

		session, err := g.config.Sessions.Begin(r.Context(), principal.ID)
		if err != nil {
			g.logger.Debug("request cancelled while waiting for session", "username", principal.ID, "error", err)
			http.Error(w, "Request Timeout", http.StatusRequestTimeout)
			return
		}
		defer session.Close()

		ctx := WithPrincipal(r.Context(), principal)
		ctx = WithCredentials(ctx, creds)
		ctx = WithSession(ctx, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *gate) public(path string) bool {
	for _, prefix := range g.config.PublicPrefixes {
		if path == prefix {
			return true
		}
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *gate) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+g.config.Realm+`", charset="UTF-8"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
