package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/projectgroups"
	"github.com/cafevdb/cafevdbmembers/settings"
	"github.com/gorilla/mux"
)

type settingValue struct {
	Value string `json:"value"`
}

type adminSettingResponse struct {
	Value    string                     `json:"value"`
	Previous string                     `json:"previous,omitempty"`
	Synced   []projectgroups.SyncResult `json:"synced,omitempty"`
	Failures []string                   `json:"failures,omitempty"`
}

// readValue takes the new value from a JSON body or the "value" form field.
func readValue(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(headerContentType))
	if mediaType == "application/json" {
		var body settingValue
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", badRequest(fmt.Errorf("malformed body: %w", err))
		}
		return body.Value, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", badRequest(err)
	}
	return r.PostForm.Get("value"), nil
}

func settingError(key string, err error) error {
	if errors.Is(err, settings.ErrUnknownSetting) {
		return unknownSetting(key, err)
	}
	return err
}

func (s *Server) handlePersonalSetting(w http.ResponseWriter, r *http.Request) error {
	principal := auth.GetPrincipalFromContext(r.Context())
	if principal == nil {
		return forbidden()
	}
	key := mux.Vars(r)["setting"]

	if r.Method == http.MethodPost {
		value, err := readValue(r)
		if err != nil {
			return err
		}
		if err := s.settings.SetUser(r.Context(), principal.ID, key, value, false); err != nil {
			return settingError(key, err)
		}
		s.logger.Info("personal setting changed", "user", principal.ID, "setting", key)
	}

	value, err := s.settings.User(r.Context(), principal.ID, key, false)
	if err != nil {
		return settingError(key, err)
	}
	writeJSON(w, http.StatusOK, settingValue{Value: value})
	return nil
}

// admin restricts h to members of the admin group.
func (s *Server) admin(h apiHandler) http.Handler {
	return s.api(func(w http.ResponseWriter, r *http.Request) error {
		principal := auth.GetPrincipalFromContext(r.Context())
		if !principal.IsMember(s.adminGroup) {
			user := ""
			if principal != nil {
				user = principal.ID
			}
			s.logger.Warn("admin endpoint refused", "user", user, "path", r.URL.Path)
			return forbidden()
		}
		return h(w, r)
	})
}

func (s *Server) handleAdminSetting(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	key := mux.Vars(r)["setting"]

	if r.Method == http.MethodGet {
		value, err := s.settings.App(ctx, key)
		if err != nil {
			return settingError(key, err)
		}
		writeJSON(w, http.StatusOK, settingValue{Value: value})
		return nil
	}

	value, err := readValue(r)
	if err != nil {
		return err
	}
	previous, err := s.settings.SetApp(ctx, key, value)
	if err != nil {
		return settingError(key, err)
	}
	current, err := s.settings.App(ctx, key)
	if err != nil {
		return err
	}
	principal := auth.GetPrincipalFromContext(ctx)
	s.logger.Info("app setting changed", "user", principal.ID, "setting", key, "previous", previous, "value", current)

	resp := adminSettingResponse{Value: current, Previous: previous}
	if key == settings.RootFolder && current != previous {
		// Every project folder moves below the new root.
		results, err := s.projectGroups.SyncAll(ctx, nil)
		resp.Synced = results
		if err != nil {
			s.logger.Error("resynchronization after root folder change failed", "error", err)
			resp.Failures = failures(err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// failures flattens the joined errors of a SyncAll run.
func failures(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var list []string
		for _, e := range joined.Unwrap() {
			list = append(list, e.Error())
		}
		return list
	}
	return []string{err.Error()}
}

type syncRequest struct {
	Group string `json:"group"`
}

type syncResponse struct {
	Results  []projectgroups.SyncResult `json:"results"`
	Failures []string                   `json:"failures,omitempty"`
}

func (s *Server) handleGroupFoldersSync(w http.ResponseWriter, r *http.Request) error {
	group := r.URL.Query().Get("group")
	if group == "" && r.ContentLength != 0 {
		var body syncRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return badRequest(fmt.Errorf("malformed body: %w", err))
		}
		group = body.Group
	}

	if group != "" {
		if !projectgroups.IsProjectGroup(group) {
			return badRequest(fmt.Errorf("%s: %w", group, projectgroups.ErrNotProjectGroup))
		}
		result, err := s.projectGroups.SyncProjectGroup(r.Context(), group)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, syncResponse{Results: []projectgroups.SyncResult{result}})
		return nil
	}

	results, err := s.projectGroups.SyncAll(r.Context(), func(index, total int, result projectgroups.SyncResult, err error) {
		s.logger.Debug("project group synchronized", "index", index, "total", total, "group", result.GroupID, "changed", result.Changed(), "error", err)
	})
	resp := syncResponse{Results: results}
	if err != nil {
		if len(results) == 0 {
			return err
		}
		resp.Failures = failures(err)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
