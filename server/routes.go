package server

import (
	"net/http"

	"github.com/cafevdb/cafevdbmembers/internal/metrics"
	"github.com/gorilla/mux"
)

// publicPrefixes are served without authentication.
var publicPrefixes = []string{
	"/registration",
	"/api/v1/registration/",
	"/metrics",
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.Handle("/", s.api(s.handleIndex)).Methods(http.MethodGet)

	member := r.PathPrefix("/api/v1/member").Subrouter()
	member.Handle("/profile", s.api(s.handleProfile)).Methods(http.MethodGet)
	member.Handle("/bank-accounts", s.api(s.handleBankAccounts)).Methods(http.MethodGet)
	member.Handle("/insurances", s.api(s.handleInsurances)).Methods(http.MethodGet)
	member.Handle("/projects", s.api(s.handleProjects)).Methods(http.MethodGet)
	member.Handle("/projects/{projectId:[0-9]+}", s.api(s.handleProject)).Methods(http.MethodGet)
	member.Handle("/projects/{projectId:[0-9]+}/events", s.api(s.handleProjectEvents)).Methods(http.MethodGet)
	member.Handle("/projects/{projectId:[0-9]+}/events.ics", s.api(s.handleProjectEventsExport)).Methods(http.MethodGet)

	r.Handle("/settings/personal/{setting}", s.api(s.handlePersonalSetting)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/settings/admin/{setting}", s.admin(s.handleAdminSetting)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/api/v1/admin/groupfolders/sync", s.admin(s.handleGroupFoldersSync)).Methods(http.MethodPost)

	r.Handle("/registration", s.api(s.handleRegistrationPage)).Methods(http.MethodGet)
	r.Handle("/api/v1/registration/projects", s.api(s.handleOpenProjects)).Methods(http.MethodGet)
	r.Handle("/api/v1/registration/projects/{projectId:[0-9]+}", s.api(s.handleRegistrationForm)).Methods(http.MethodGet)
	r.Handle("/api/v1/registration/projects/{projectId:[0-9]+}",
		s.limiter.Handler(s.api(s.handleRegistrationSubmit), s.api(tooManyRequests))).Methods(http.MethodPost)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Everything else the frontend may ask for has no backend yet.
	r.Handle("/{a}", s.api(s.handleNotImplemented)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/{a}/{b}", s.api(s.handleNotImplemented)).Methods(http.MethodGet, http.MethodPost)

	r.NotFoundHandler = s.api(handleNotFound)
	r.MethodNotAllowedHandler = s.api(handleMethodNotAllowed)
	return r
}
