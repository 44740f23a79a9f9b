package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/registration"
	"github.com/cafevdb/cafevdbmembers/settings"
)

//go:embed templates/*.html
var templateFS embed.FS

func parsePages() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

type pageData struct {
	Lang      string
	Title     string
	Projects  []registration.ProjectInfo
	Bootstrap any
}

type memberBootstrap struct {
	User        string `json:"user"`
	DisplayName string `json:"displayName"`
	Language    string `json:"language"`
	Admin       bool   `json:"admin"`
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) error {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set(headerContentType, mimeTypeHTML)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to write page", "page", name, "error", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	principal := auth.GetPrincipalFromContext(r.Context())
	if principal == nil {
		return forbidden()
	}
	lang, err := s.settings.User(r.Context(), principal.ID, settings.Language, false)
	if err != nil {
		return err
	}
	if lang == "" {
		lang = principal.Language
	}
	tag := s.catalog.Match(lang, r.Header.Get("Accept-Language"))
	p := s.catalog.Printer(tag.String())

	return s.render(w, "index.html", pageData{
		Lang:  tag.String(),
		Title: p.Sprintf("member portal"),
		Bootstrap: memberBootstrap{
			User:        principal.ID,
			DisplayName: principal.DisplayName,
			Language:    tag.String(),
			Admin:       principal.IsMember(s.adminGroup),
		},
	})
}

func (s *Server) handleRegistrationPage(w http.ResponseWriter, r *http.Request) error {
	projects, err := s.registrations.OpenProjects(r.Context(), s.now())
	if err != nil {
		return err
	}
	tag := s.catalog.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	p := s.catalog.Printer(tag.String())

	return s.render(w, "registration.html", pageData{
		Lang:      tag.String(),
		Title:     p.Sprintf("project registration"),
		Projects:  projects,
		Bootstrap: map[string]any{"language": tag.String(), "projects": projects},
	})
}
