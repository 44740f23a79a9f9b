// Package entity maps the personalized CAFEVDB views onto gorm models.
//
// The views filter rows by the row-access token of the current database
// session, so the models carry no ownership conditions of their own.
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Musician is one person known to the orchestra.
type Musician struct {
	ID                int       `gorm:"primaryKey"`
	UUID              uuid.UUID `gorm:"column:uuid;type:uuid"`
	UserIDSlug        string    `gorm:"column:user_id_slug"`
	SurName           string
	FirstName         string
	NickName          string
	DisplayName       string
	Street            string
	StreetNumber      string
	AddressSupplement string
	PostalCode        string
	City              string
	Country           string
	Language          string
	MobilePhone       string
	FixedLinePhone    string
	Email             string
	Birthday          *time.Time `gorm:"type:date"`
	MemberStatus      MemberStatus
	Remarks           string

	Instruments          []MusicianInstrument  `gorm:"foreignKey:MusicianID"`
	SepaBankAccounts     []SepaBankAccount     `gorm:"foreignKey:MusicianID"`
	InstrumentInsurances []InstrumentInsurance `gorm:"foreignKey:InstrumentHolderID"`
	ProjectParticipation []ProjectParticipant  `gorm:"foreignKey:MusicianID"`

	Created time.Time      `gorm:"autoCreateTime"`
	Updated time.Time      `gorm:"autoUpdateTime"`
	Deleted gorm.DeletedAt `gorm:"index"`
}

func (Musician) TableName() string { return "PersonalizedMusiciansView" }

// PublicName is the name shown to other members.
func (m Musician) PublicName() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	first := m.FirstName
	if m.NickName != "" {
		first = m.NickName
	}
	if first == "" {
		return m.SurName
	}
	return first + " " + m.SurName
}

// Instrument is an entry of the orchestra's instrument list.
type Instrument struct {
	ID        int `gorm:"primaryKey"`
	Name      string
	SortOrder int
	Deleted   gorm.DeletedAt
}

func (Instrument) TableName() string { return "Instruments" }

// MusicianInstrument records which instruments a musician plays.
type MusicianInstrument struct {
	MusicianID   int `gorm:"primaryKey"`
	InstrumentID int `gorm:"primaryKey"`
	Ranking      int

	Instrument Instrument `gorm:"foreignKey:InstrumentID"`

	Deleted gorm.DeletedAt
}

func (MusicianInstrument) TableName() string { return "PersonalizedMusicianInstrumentsView" }
