package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/events"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// withMember runs fn on a database session carrying the row-access token
// of the authenticated member.
func (s *Server) withMember(r *http.Request, fn func(ctx context.Context, principal *auth.Principal, tx *gorm.DB) error) error {
	ctx := r.Context()
	principal := auth.GetPrincipalFromContext(ctx)
	creds, ok := auth.CredentialsFromContext(ctx)
	if principal == nil || !ok {
		return forbidden()
	}
	token, err := s.tokens.RowAccessToken(ctx, creds)
	if err != nil {
		return err
	}
	return s.db.WithRowAccess(ctx, principal.ID, token, func(tx *gorm.DB) error {
		return fn(ctx, principal, tx)
	})
}

func projectID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Errorf("invalid project id %q", mux.Vars(r)["projectId"]))
	}
	return id, nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) error {
	return s.withMember(r, func(ctx context.Context, _ *auth.Principal, tx *gorm.DB) error {
		profile, err := s.members.Profile(ctx, tx)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, profile)
		return nil
	})
}

func (s *Server) handleBankAccounts(w http.ResponseWriter, r *http.Request) error {
	return s.withMember(r, func(ctx context.Context, _ *auth.Principal, tx *gorm.DB) error {
		accounts, err := s.members.BankAccounts(ctx, tx)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, accounts)
		return nil
	})
}

func (s *Server) handleInsurances(w http.ResponseWriter, r *http.Request) error {
	return s.withMember(r, func(ctx context.Context, _ *auth.Principal, tx *gorm.DB) error {
		insurances, err := s.members.InstrumentInsurances(ctx, tx)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, insurances)
		return nil
	})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) error {
	return s.withMember(r, func(ctx context.Context, principal *auth.Principal, tx *gorm.DB) error {
		includePast, err := s.settings.ShowPastProjects(ctx, principal.ID)
		if err != nil {
			return err
		}
		if v := r.URL.Query().Get("past"); v != "" {
			if includePast, err = strconv.ParseBool(v); err != nil {
				return badRequest(fmt.Errorf("past: %w", err))
			}
		}
		projects, err := s.members.Projects(ctx, tx, includePast)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, projects)
		return nil
	})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) error {
	id, err := projectID(r)
	if err != nil {
		return err
	}
	return s.withMember(r, func(ctx context.Context, _ *auth.Principal, tx *gorm.DB) error {
		project, err := s.members.Project(ctx, tx, id)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, project)
		return nil
	})
}

// eventRange reads the from and to query parameters. Both take RFC 3339
// timestamps or plain dates; the window defaults to one year from today.
func (s *Server) eventRange(r *http.Request) (time.Time, time.Time, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(1, 0, 0)

	parse := func(name string, fallback time.Time) (time.Time, error) {
		v := r.URL.Query().Get(name)
		if v == "" {
			return fallback, nil
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		t, err := time.ParseInLocation(time.DateOnly, v, now.Location())
		if err != nil {
			return time.Time{}, badRequest(fmt.Errorf("%s: %q is neither a date nor a timestamp", name, v))
		}
		return t, nil
	}

	from, err := parse("from", from)
	if err != nil {
		return from, to, err
	}
	if to, err = parse("to", from.AddDate(1, 0, 0)); err != nil {
		return from, to, err
	}
	if !to.After(from) {
		return from, to, badRequest(fmt.Errorf("%w: %s is not after %s", events.ErrInvalidRange, to.Format(time.RFC3339), from.Format(time.RFC3339)))
	}
	return from, to, nil
}

func (s *Server) handleProjectEvents(w http.ResponseWriter, r *http.Request) error {
	id, err := projectID(r)
	if err != nil {
		return err
	}
	from, to, err := s.eventRange(r)
	if err != nil {
		return err
	}
	return s.withMember(r, func(ctx context.Context, _ *auth.Principal, tx *gorm.DB) error {
		// Only participants see the events.
		if _, err := s.members.Project(ctx, tx, id); err != nil {
			return err
		}
		list, err := s.events.ProjectEvents(ctx, tx, id, from, to)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, list)
		return nil
	})
}

func (s *Server) handleProjectEventsExport(w http.ResponseWriter, r *http.Request) error {
	id, err := projectID(r)
	if err != nil {
		return err
	}
	return s.withMember(r, func(ctx context.Context, _ *auth.Principal, tx *gorm.DB) error {
		project, err := s.members.Project(ctx, tx, id)
		if err != nil {
			return err
		}
		data, err := s.events.Export(ctx, tx, id)
		if err != nil {
			return err
		}
		w.Header().Set(headerContentType, mimeTypeCalendar)
		w.Header().Set(headerContentDisposition, fmt.Sprintf("attachment; filename=%q", events.ExportFileName(project.Name)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			s.logger.Warn("failed to write calendar export", "project", id, "error", err)
		}
		return nil
	})
}
