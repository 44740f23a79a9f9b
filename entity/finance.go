package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SepaBankAccount is a bank account of a musician. Account data is stored
// sealed.
type SepaBankAccount struct {
	MusicianID       int `gorm:"primaryKey"`
	Sequence         int `gorm:"primaryKey"`
	IBAN             string `gorm:"column:iban;serializer:encrypted"`
	BIC              string `gorm:"column:bic"`
	BLZ              string `gorm:"column:blz;serializer:encrypted"`
	BankAccountOwner string `gorm:"serializer:encrypted"`

	Created time.Time      `gorm:"autoCreateTime"`
	Deleted gorm.DeletedAt `gorm:"index"`
}

func (SepaBankAccount) TableName() string { return "PersonalizedSepaBankAccountsView" }

// MaskedIBAN shows the country code and the last four digits only.
func (a SepaBankAccount) MaskedIBAN() string {
	if len(a.IBAN) <= 6 {
		return a.IBAN
	}
	masked := []byte(a.IBAN)
	for i := 2; i < len(masked)-4; i++ {
		masked[i] = '*'
	}
	return string(masked)
}

// InstrumentInsurance is an insured instrument or accessory.
type InstrumentInsurance struct {
	ID                 int `gorm:"primaryKey"`
	InstrumentHolderID int
	BillToPartyID      int
	Broker             string
	GeographicalScope  GeographicalScope
	Object             string
	Accessory          bool
	Manufacturer       string
	YearOfConstruction string
	InsuranceAmount    float64    `gorm:"type:numeric(12,2)"`
	StartOfInsurance   time.Time  `gorm:"type:date"`
	EndOfInsurance     *time.Time `gorm:"type:date"`

	Deleted gorm.DeletedAt `gorm:"index"`
}

func (InstrumentInsurance) TableName() string { return "PersonalizedInstrumentInsurancesView" }

// CompositePayment is one money transfer, possibly covering several
// project receivables.
type CompositePayment struct {
	ID            int `gorm:"primaryKey"`
	MusicianID    int
	Amount        float64 `gorm:"type:numeric(12,2)"`
	DateOfReceipt *time.Time
	Subject       string
	Notification  string

	ProjectPayments []ProjectPayment `gorm:"foreignKey:CompositePaymentID"`
}

func (CompositePayment) TableName() string { return "PersonalizedCompositePaymentsView" }

// ProjectPayment is the share of a composite payment settling one
// receivable of a project participant.
type ProjectPayment struct {
	ID                 int `gorm:"primaryKey"`
	CompositePaymentID int
	ProjectID          int
	MusicianID         int
	FieldID            int
	ReceivableKey      uuid.UUID `gorm:"type:uuid"`
	Amount             float64   `gorm:"type:numeric(12,2)"`
	Subject            string

	CompositePayment CompositePayment `gorm:"foreignKey:CompositePaymentID"`
}

func (ProjectPayment) TableName() string { return "PersonalizedProjectPaymentsView" }
