package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/cafevdb/cafevdbmembers/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBProvider hands out context-bound gorm sessions.
type DBProvider interface {
	DB(ctx context.Context) *gorm.DB
}

// GormStore keeps settings in the service's own config tables.
type GormStore struct {
	db DBProvider
}

// NewGormStore creates a store backed by the database
func NewGormStore(db DBProvider) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AppValue(ctx context.Context, key string) (string, bool, error) {
	var row entity.AppConfig
	err := s.db.DB(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read app setting %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *GormStore) SetAppValue(ctx context.Context, key, value string) error {
	err := s.db.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entity.AppConfig{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to store app setting %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) UserValue(ctx context.Context, userID, key string) (string, bool, error) {
	var row entity.UserConfig
	err := s.db.DB(ctx).Where("user_id = ? AND key = ?", userID, key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read user setting %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *GormStore) SetUserValue(ctx context.Context, userID, key, value string) error {
	err := s.db.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entity.UserConfig{UserID: userID, Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to store user setting %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) DeleteUserValue(ctx context.Context, userID, key string) error {
	err := s.db.DB(ctx).Where("user_id = ? AND key = ?", userID, key).Delete(&entity.UserConfig{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete user setting %s: %w", key, err)
	}
	return nil
}
