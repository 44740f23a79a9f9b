// Package memberdata reads the data of the signed-in member. Every
// operation runs on a database session carrying the member's row-access
// token, so the personalized views only ever return the member's own rows.
package memberdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/cafevdb/cafevdbmembers/entity"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the member or the requested record is not
// visible.
var ErrNotFound = errors.New("not found")

// Service converts member entities into their API representation.
type Service struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a member data service
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{logger: logger, now: time.Now}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func (s *Service) musician(ctx context.Context, tx *gorm.DB, preload ...string) (entity.Musician, error) {
	var m entity.Musician
	q := tx.WithContext(ctx)
	for _, p := range preload {
		q = q.Preload(p)
	}
	if err := q.Take(&m).Error; err != nil {
		return m, notFound(err, "musician")
	}
	return m, nil
}

// Profile returns the member's personal record.
func (s *Service) Profile(ctx context.Context, tx *gorm.DB) (Profile, error) {
	m, err := s.musician(ctx, tx, "Instruments.Instrument")
	if err != nil {
		return Profile{}, err
	}
	return toProfile(m), nil
}

// BankAccounts lists the member's bank accounts.
func (s *Service) BankAccounts(ctx context.Context, tx *gorm.DB) ([]BankAccount, error) {
	var accounts []entity.SepaBankAccount
	if err := tx.WithContext(ctx).Order("sequence").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to load bank accounts: %w", err)
	}
	result := make([]BankAccount, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, toBankAccount(a))
	}
	return result, nil
}

// InstrumentInsurances lists the insurances the member holds or pays for.
func (s *Service) InstrumentInsurances(ctx context.Context, tx *gorm.DB) ([]Insurance, error) {
	m, err := s.musician(ctx, tx)
	if err != nil {
		return nil, err
	}
	var insurances []entity.InstrumentInsurance
	if err := tx.WithContext(ctx).Order("start_of_insurance").Find(&insurances).Error; err != nil {
		return nil, fmt.Errorf("failed to load insurances: %w", err)
	}
	result := make([]Insurance, 0, len(insurances))
	for _, i := range insurances {
		result = append(result, toInsurance(m.ID, i))
	}
	return result, nil
}

// Projects lists the member's project participations, newest first. Past
// temporary projects are left out unless includePast is set.
func (s *Service) Projects(ctx context.Context, tx *gorm.DB, includePast bool) ([]ProjectSummary, error) {
	var participants []entity.ProjectParticipant
	err := tx.WithContext(ctx).
		Preload("Project").
		Preload("Instruments.Instrument").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	year := s.now().Year()
	result := make([]ProjectSummary, 0, len(participants))
	for _, p := range participants {
		if !includePast && p.Project.Type == entity.ProjectTypeTemporary && p.Project.Year < year {
			continue
		}
		result = append(result, toProjectSummary(p))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Year != result[j].Year {
			return result[i].Year > result[j].Year
		}
		return result[i].Name < result[j].Name
	})
	s.logger.Debug("loaded projects", "count", len(result), "include_past", includePast)
	return result, nil
}

// Project returns the member's participation in one project.
func (s *Service) Project(ctx context.Context, tx *gorm.DB, projectID int) (ProjectDetail, error) {
	var p entity.ProjectParticipant
	err := tx.WithContext(ctx).
		Preload("Project").
		Preload("Instruments.Instrument").
		Preload("FieldsData.Field").
		Preload("FieldsData.DataOption").
		Preload("Payments.CompositePayment").
		Where("project_id = ?", projectID).
		Take(&p).Error
	if err != nil {
		return ProjectDetail{}, notFound(err, fmt.Sprintf("project %d", projectID))
	}
	return toProjectDetail(p), nil
}
