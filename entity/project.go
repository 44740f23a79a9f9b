package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is a time-boxed orchestra activity.
type Project struct {
	ID   int `gorm:"primaryKey"`
	Year int
	Name string
	Type ProjectType

	RegistrationStartDate *time.Time `gorm:"type:date"`
	RegistrationDeadline  *time.Time `gorm:"type:date"`

	ParticipantFields []ProjectParticipantField `gorm:"foreignKey:ProjectID"`
	Events            []ProjectEvent            `gorm:"foreignKey:ProjectID"`

	Updated time.Time      `gorm:"autoUpdateTime"`
	Deleted gorm.DeletedAt `gorm:"index"`
}

func (Project) TableName() string { return "PersonalizedProjectsView" }

// RegistrationOpen reports whether the public registration accepts
// submissions at now. Both bounds are whole days, the deadline inclusive.
func (p Project) RegistrationOpen(now time.Time) bool {
	if p.Type == ProjectTypeTemplate || p.RegistrationStartDate == nil {
		return false
	}
	if now.Before(*p.RegistrationStartDate) {
		return false
	}
	if p.RegistrationDeadline != nil && !now.Before(p.RegistrationDeadline.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// ProjectParticipant links a musician to a project.
type ProjectParticipant struct {
	ProjectID  int `gorm:"primaryKey"`
	MusicianID int `gorm:"primaryKey"`
	// Registration is set once the musician has confirmed participation.
	Registration bool

	Project     Project                        `gorm:"foreignKey:ProjectID"`
	Musician    Musician                       `gorm:"foreignKey:MusicianID"`
	Instruments []ProjectInstrument            `gorm:"foreignKey:ProjectID,MusicianID;references:ProjectID,MusicianID"`
	FieldsData  []ProjectParticipantFieldDatum `gorm:"foreignKey:ProjectID,MusicianID;references:ProjectID,MusicianID"`
	Payments    []ProjectPayment               `gorm:"foreignKey:ProjectID,MusicianID;references:ProjectID,MusicianID"`

	Deleted gorm.DeletedAt
}

func (ProjectParticipant) TableName() string { return "PersonalizedProjectParticipantsView" }

// ProjectInstrument is the instrument and voice a participant plays in a project.
type ProjectInstrument struct {
	ProjectID     int `gorm:"primaryKey"`
	MusicianID    int `gorm:"primaryKey"`
	InstrumentID  int `gorm:"primaryKey"`
	Voice         int `gorm:"primaryKey"`
	SectionLeader bool

	Instrument Instrument `gorm:"foreignKey:InstrumentID"`

	Deleted gorm.DeletedAt
}

func (ProjectInstrument) TableName() string { return "PersonalizedProjectInstrumentsView" }

// ProjectParticipantField is an extra data column a project asks its
// participants for.
type ProjectParticipantField struct {
	ID                int `gorm:"primaryKey"`
	ProjectID         int
	DisplayOrder      int
	Name              string
	Tooltip           string
	Multiplicity      FieldMultiplicity
	DataType          FieldDataType
	ParticipantAccess bool
	DefaultValue      *uuid.UUID `gorm:"type:uuid"`

	DataOptions []ProjectParticipantFieldDataOption `gorm:"foreignKey:FieldID"`

	Deleted gorm.DeletedAt
}

func (ProjectParticipantField) TableName() string { return "PersonalizedProjectParticipantFieldsView" }

// ProjectParticipantFieldDataOption is one choice of a participant field.
// The generator option of recurring fields uses the nil UUID.
type ProjectParticipantFieldDataOption struct {
	FieldID int       `gorm:"primaryKey"`
	Key     uuid.UUID `gorm:"primaryKey;type:uuid"`
	Label   string
	Data    string
	Tooltip string
	Limit   *int

	Deleted gorm.DeletedAt
}

func (ProjectParticipantFieldDataOption) TableName() string {
	return "PersonalizedProjectParticipantFieldsDataOptionsView"
}

// ProjectParticipantFieldDatum is the value a participant holds for a field.
type ProjectParticipantFieldDatum struct {
	FieldID     int       `gorm:"primaryKey"`
	ProjectID   int       `gorm:"primaryKey"`
	MusicianID  int       `gorm:"primaryKey"`
	OptionKey   uuid.UUID `gorm:"primaryKey;type:uuid"`
	OptionValue string

	Field      ProjectParticipantField           `gorm:"foreignKey:FieldID"`
	DataOption ProjectParticipantFieldDataOption `gorm:"foreignKey:FieldID,OptionKey;references:FieldID,Key"`

	Deleted gorm.DeletedAt
}

func (ProjectParticipantFieldDatum) TableName() string {
	return "PersonalizedProjectParticipantFieldsDataView"
}

// ProjectEvent links a calendar object to a project.
type ProjectEvent struct {
	ID          int `gorm:"primaryKey"`
	ProjectID   int
	CalendarURI string
	EventURI    string
	EventUID    string
	Type        EventType

	Deleted gorm.DeletedAt
}

func (ProjectEvent) TableName() string { return "PersonalizedProjectEventsView" }
