package entity

import (
	"time"

	"github.com/google/uuid"
)

// Registration is a submission of the public project registration form.
type Registration struct {
	UUID        uuid.UUID `gorm:"column:uuid;type:uuid;primaryKey"`
	ProjectID   int       `gorm:"index;not null"`
	FirstName   string    `gorm:"not null"`
	SurName     string    `gorm:"not null"`
	Email       string    `gorm:"not null"`
	Phone       string
	Instruments []string             `gorm:"serializer:json"`
	Options     []RegistrationOption `gorm:"serializer:json"`
	Remarks     string
	Language    string
	CreatedAt   time.Time
}

func (Registration) TableName() string { return "cafevdbmembers_registrations" }

// RegistrationOption is a chosen participant field option.
type RegistrationOption struct {
	FieldID int       `json:"fieldId"`
	Key     uuid.UUID `json:"key"`
	Value   string    `json:"value,omitempty"`
}

// AppConfig is an application-wide setting.
type AppConfig struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string
}

func (AppConfig) TableName() string { return "cafevdbmembers_app_config" }

// UserConfig is a per-user setting.
type UserConfig struct {
	UserID string `gorm:"primaryKey;size:64"`
	Key    string `gorm:"primaryKey;size:64"`
	Value  string
}

func (UserConfig) TableName() string { return "cafevdbmembers_user_config" }

// OwnTables lists the models whose tables this service manages.
func OwnTables() []any {
	return []any{&AppConfig{}, &UserConfig{}, &Registration{}}
}
