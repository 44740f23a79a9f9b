package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cafevdb/cafevdbmembers/registration"
	"github.com/google/uuid"
)

const maxRegistrationBody = 64 << 10

func (s *Server) handleOpenProjects(w http.ResponseWriter, r *http.Request) error {
	projects, err := s.registrations.OpenProjects(r.Context(), s.now())
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []registration.ProjectInfo{}
	}
	writeJSON(w, http.StatusOK, projects)
	return nil
}

func (s *Server) handleRegistrationForm(w http.ResponseWriter, r *http.Request) error {
	id, err := projectID(r)
	if err != nil {
		return err
	}
	form, err := s.registrations.Form(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, form)
	return nil
}

type submitResponse struct {
	ID uuid.UUID `json:"id"`
}

func (s *Server) handleRegistrationSubmit(w http.ResponseWriter, r *http.Request) error {
	id, err := projectID(r)
	if err != nil {
		return err
	}

	var sub registration.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		return badRequest(fmt.Errorf("malformed registration: %w", err))
	}
	if sub.Language == "" {
		sub.Language = s.catalog.Match(r.Header.Get("Accept-Language")).String()
	}

	regID, err := s.registrations.Submit(r.Context(), id, sub)
	if errors.Is(err, registration.ErrClosed) {
		return &requestError{status: http.StatusForbidden, key: msgRegistrationClosed, args: []any{id}, err: err}
	}
	if err != nil {
		return err
	}
	s.logger.Info("registration received", "project", id, "registration", regID)
	writeJSON(w, http.StatusCreated, submitResponse{ID: regID})
	return nil
}
