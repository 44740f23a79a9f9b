// Package registration serves the public project registration form.
package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/cafevdb/cafevdbmembers/entity"
	"github.com/cafevdb/cafevdbmembers/internal/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for unknown projects.
	ErrNotFound = errors.New("project not found")
	// ErrClosed is returned when the project does not accept registrations.
	ErrClosed = errors.New("registration closed")
	// ErrAlreadyExists is returned when the email address is already
	// registered for the project.
	ErrAlreadyExists = errors.New("already registered")
)

// ValidationError lists the rejected fields of a submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid registration: " + strings.Join(parts, ", ")
}

// DBProvider hands out database sessions.
type DBProvider interface {
	DB(ctx context.Context) *gorm.DB
}

// ProjectInfo is a project open for registration.
type ProjectInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Year     int    `json:"year"`
	Deadline string `json:"deadline,omitempty"`
}

// Option is a selectable choice of a form field.
type Option struct {
	Key     uuid.UUID `json:"key"`
	Label   string    `json:"label"`
	Data    string    `json:"data,omitempty"`
	Tooltip string    `json:"tooltip,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
}

// FormField is a participant field asked for on the form.
type FormField struct {
	ID           int                      `json:"id"`
	Name         string                   `json:"name"`
	Tooltip      string                   `json:"tooltip,omitempty"`
	Multiplicity entity.FieldMultiplicity `json:"multiplicity"`
	DataType     entity.FieldDataType     `json:"dataType"`
	Options      []Option                 `json:"options"`
}

// Form is everything the registration page needs for one project.
type Form struct {
	Project ProjectInfo `json:"project"`
	Fields  []FormField `json:"fields"`
}

// Submission is a filled-in registration form.
type Submission struct {
	FirstName   string                      `json:"firstName"`
	SurName     string                      `json:"surName"`
	Email       string                      `json:"email"`
	Phone       string                      `json:"phone"`
	Instruments []string                    `json:"instruments"`
	Options     []entity.RegistrationOption `json:"options"`
	Remarks     string                      `json:"remarks"`
	Language    string                      `json:"language"`
}

// Service reads open projects and stores registrations.
type Service struct {
	db     DBProvider
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a registration service
func NewService(db DBProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{db: db, logger: logger, now: time.Now}
}

func toProjectInfo(p entity.Project) ProjectInfo {
	info := ProjectInfo{ID: p.ID, Name: p.Name, Year: p.Year}
	if p.RegistrationDeadline != nil {
		info.Deadline = p.RegistrationDeadline.Format("2006-01-02")
	}
	return info
}

// OpenProjects lists the projects whose registration window contains now.
func (s *Service) OpenProjects(ctx context.Context, now time.Time) ([]ProjectInfo, error) {
	var projects []entity.Project
	err := s.db.DB(ctx).
		Where("type <> ? AND registration_start_date IS NOT NULL", entity.ProjectTypeTemplate).
		Order("year DESC, name").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	open := make([]ProjectInfo, 0, len(projects))
	for _, p := range projects {
		if p.RegistrationOpen(now) {
			open = append(open, toProjectInfo(p))
		}
	}
	return open, nil
}

func (s *Service) project(ctx context.Context, projectID int) (entity.Project, error) {
	var p entity.Project
	err := s.db.DB(ctx).
		Preload("ParticipantFields", "participant_access = ?", true).
		Preload("ParticipantFields.DataOptions").
		Take(&p, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	return p, nil
}

// Form returns the registration form of an open project.
func (s *Service) Form(ctx context.Context, projectID int) (Form, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return Form{}, err
	}
	if !p.RegistrationOpen(s.now()) {
		return Form{}, fmt.Errorf("project %d: %w", projectID, ErrClosed)
	}

	fields := append([]entity.ProjectParticipantField(nil), p.ParticipantFields...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].DisplayOrder < fields[j].DisplayOrder })

	form := Form{Project: toProjectInfo(p), Fields: make([]FormField, 0, len(fields))}
	for _, f := range fields {
		field := FormField{
			ID:           f.ID,
			Name:         f.Name,
			Tooltip:      f.Tooltip,
			Multiplicity: f.Multiplicity,
			DataType:     f.DataType,
			Options:      []Option{},
		}
		if f.Multiplicity.Selectable() {
			for _, o := range f.DataOptions {
				if o.Key == uuid.Nil {
					continue
				}
				field.Options = append(field.Options, Option{
					Key:     o.Key,
					Label:   o.Label,
					Data:    o.Data,
					Tooltip: o.Tooltip,
					Limit:   o.Limit,
				})
			}
		}
		form.Fields = append(form.Fields, field)
	}
	return form, nil
}

// validate normalizes the submission and checks it against the form.
func validate(sub *Submission, fields []entity.ProjectParticipantField) error {
	problems := make(map[string]string)

	sub.FirstName = strings.TrimSpace(sub.FirstName)
	sub.SurName = strings.TrimSpace(sub.SurName)
	sub.Email = strings.TrimSpace(sub.Email)
	if sub.FirstName == "" {
		problems["firstName"] = "required"
	}
	if sub.SurName == "" {
		problems["surName"] = "required"
	}
	if sub.Email == "" {
		problems["email"] = "required"
	} else if addr, err := mail.ParseAddress(sub.Email); err != nil || addr.Address != sub.Email {
		problems["email"] = "not a valid address"
	}

	byID := make(map[int]entity.ProjectParticipantField, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	chosen := make(map[int]int)
	for i, opt := range sub.Options {
		name := fmt.Sprintf("options[%d]", i)
		field, ok := byID[opt.FieldID]
		if !ok {
			problems[name] = fmt.Sprintf("unknown field %d", opt.FieldID)
			continue
		}
		chosen[field.ID]++
		if !field.Multiplicity.Selectable() {
			if opt.Key != uuid.Nil {
				problems[name] = "field takes a value, not an option"
			}
			continue
		}
		found := false
		for _, o := range field.DataOptions {
			if o.Key == opt.Key && o.Key != uuid.Nil {
				found = true
				break
			}
		}
		if !found {
			problems[name] = fmt.Sprintf("unknown option %s for field %d", opt.Key, field.ID)
		}
	}
	for fieldID, n := range chosen {
		if f := byID[fieldID]; n > 1 && f.Multiplicity != entity.FieldMultiplicityMultiple && f.Multiplicity != entity.FieldMultiplicityParallel {
			problems[fmt.Sprintf("field %d", fieldID)] = "only one choice allowed"
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// Submit stores a registration for an open project and returns its id.
func (s *Service) Submit(ctx context.Context, projectID int, sub Submission) (uuid.UUID, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}
	if !p.RegistrationOpen(s.now()) {
		return uuid.Nil, fmt.Errorf("project %d: %w", projectID, ErrClosed)
	}
	if err := validate(&sub, p.ParticipantFields); err != nil {
		return uuid.Nil, err
	}

	var existing int64
	err = s.db.DB(ctx).Model(&entity.Registration{}).
		Where("project_id = ? AND lower(email) = lower(?)", projectID, sub.Email).
		Count(&existing).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to check registrations: %w", err)
	}
	if existing > 0 {
		return uuid.Nil, fmt.Errorf("%s for project %d: %w", sub.Email, projectID, ErrAlreadyExists)
	}

	reg := entity.Registration{
		UUID:        uuid.New(),
		ProjectID:   projectID,
		FirstName:   sub.FirstName,
		SurName:     sub.SurName,
		Email:       sub.Email,
		Phone:       strings.TrimSpace(sub.Phone),
		Instruments: sub.Instruments,
		Options:     sub.Options,
		Remarks:     sub.Remarks,
		Language:    sub.Language,
		CreatedAt:   s.now(),
	}
	if err := s.db.DB(ctx).Create(&reg).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to store registration: %w", err)
	}
	metrics.RecordRegistration()
	s.logger.Info("stored registration", "project", projectID, "registration", reg.UUID)
	return reg.UUID, nil
}
