package memberdata

import (
	"sort"
	"time"

	"github.com/cafevdb/cafevdbmembers/entity"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Address is the postal address of a member.
type Address struct {
	Street       string `json:"street"`
	StreetNumber string `json:"streetNumber"`
	Supplement   string `json:"supplement,omitempty"`
	PostalCode   string `json:"postalCode"`
	City         string `json:"city"`
	Country      string `json:"country"`
}

// InstrumentRef names an instrument a member plays.
type InstrumentRef struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Ranking int    `json:"ranking,omitempty"`
}

// Profile is the member's personal record.
type Profile struct {
	ID             int                 `json:"id"`
	UUID           uuid.UUID           `json:"uuid"`
	UserID         string              `json:"userId"`
	FirstName      string              `json:"firstName"`
	SurName        string              `json:"surName"`
	NickName       string              `json:"nickName,omitempty"`
	PublicName     string              `json:"publicName"`
	Address        Address             `json:"address"`
	Email          string              `json:"email"`
	MobilePhone    string              `json:"mobilePhone,omitempty"`
	FixedLinePhone string              `json:"fixedLinePhone,omitempty"`
	Birthday       string              `json:"birthday,omitempty"`
	Language       string              `json:"language,omitempty"`
	MemberStatus   entity.MemberStatus `json:"memberStatus"`
	Instruments    []InstrumentRef     `json:"instruments"`
}

// BankAccount is a bank account with the IBAN masked.
type BankAccount struct {
	Sequence         int       `json:"sequence"`
	IBAN             string    `json:"iban"`
	BIC              string    `json:"bic"`
	BankAccountOwner string    `json:"bankAccountOwner"`
	Created          time.Time `json:"created"`
}

// Insurance is an insured instrument.
type Insurance struct {
	ID                 int                      `json:"id"`
	Broker             string                   `json:"broker"`
	GeographicalScope  entity.GeographicalScope `json:"geographicalScope"`
	Object             string                   `json:"object"`
	Accessory          bool                     `json:"accessory"`
	Manufacturer       string                   `json:"manufacturer,omitempty"`
	YearOfConstruction string                   `json:"yearOfConstruction,omitempty"`
	Amount             float64                  `json:"amount"`
	Start              string                   `json:"start"`
	End                string                   `json:"end,omitempty"`
	BilledToSelf       bool                     `json:"billedToSelf"`
}

// ProjectInstrumentRef is an instrument played in a project.
type ProjectInstrumentRef struct {
	InstrumentRef
	Voice         int  `json:"voice,omitempty"`
	SectionLeader bool `json:"sectionLeader,omitempty"`
}

// ProjectSummary is one entry of the member's project list.
type ProjectSummary struct {
	ID          int                    `json:"id"`
	Name        string                 `json:"name"`
	Year        int                    `json:"year"`
	Type        entity.ProjectType     `json:"type"`
	Registered  bool                   `json:"registered"`
	Instruments []ProjectInstrumentRef `json:"instruments"`
}

// FieldValue is one option a participant holds for a project field.
type FieldValue struct {
	Key   uuid.UUID `json:"key"`
	Label string    `json:"label,omitempty"`
	Value string    `json:"value"`
}

// Field is a participant field visible to the member with its values.
type Field struct {
	ID           int                      `json:"id"`
	Name         string                   `json:"name"`
	Tooltip      string                   `json:"tooltip,omitempty"`
	Multiplicity entity.FieldMultiplicity `json:"multiplicity"`
	DataType     entity.FieldDataType     `json:"dataType"`
	Values       []FieldValue             `json:"values"`
}

// Payment is a received payment toward a project.
type Payment struct {
	ID            int     `json:"id"`
	Amount        float64 `json:"amount"`
	Subject       string  `json:"subject"`
	DateOfReceipt string  `json:"dateOfReceipt,omitempty"`
}

// ProjectDetail is the member's participation in one project.
type ProjectDetail struct {
	ProjectSummary
	Fields   []Field   `json:"fields"`
	Payments []Payment `json:"payments"`
	Paid     float64   `json:"paid"`
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func toProfile(m entity.Musician) Profile {
	p := Profile{
		ID:         m.ID,
		UUID:       m.UUID,
		UserID:     m.UserIDSlug,
		FirstName:  m.FirstName,
		SurName:    m.SurName,
		NickName:   m.NickName,
		PublicName: m.PublicName(),
		Address: Address{
			Street:       m.Street,
			StreetNumber: m.StreetNumber,
			Supplement:   m.AddressSupplement,
			PostalCode:   m.PostalCode,
			City:         m.City,
			Country:      m.Country,
		},
		Email:          m.Email,
		MobilePhone:    m.MobilePhone,
		FixedLinePhone: m.FixedLinePhone,
		Birthday:       formatDate(m.Birthday),
		Language:       m.Language,
		MemberStatus:   m.MemberStatus,
		Instruments:    []InstrumentRef{},
	}
	instruments := append([]entity.MusicianInstrument(nil), m.Instruments...)
	sort.SliceStable(instruments, func(i, j int) bool { return instruments[i].Ranking < instruments[j].Ranking })
	for _, mi := range instruments {
		p.Instruments = append(p.Instruments, InstrumentRef{
			ID:      mi.InstrumentID,
			Name:    mi.Instrument.Name,
			Ranking: mi.Ranking,
		})
	}
	return p
}

func toBankAccount(a entity.SepaBankAccount) BankAccount {
	return BankAccount{
		Sequence:         a.Sequence,
		IBAN:             a.MaskedIBAN(),
		BIC:              a.BIC,
		BankAccountOwner: a.BankAccountOwner,
		Created:          a.Created,
	}
}

func toInsurance(musicianID int, i entity.InstrumentInsurance) Insurance {
	return Insurance{
		ID:                 i.ID,
		Broker:             i.Broker,
		GeographicalScope:  i.GeographicalScope,
		Object:             i.Object,
		Accessory:          i.Accessory,
		Manufacturer:       i.Manufacturer,
		YearOfConstruction: i.YearOfConstruction,
		Amount:             i.InsuranceAmount,
		Start:              formatDate(&i.StartOfInsurance),
		End:                formatDate(i.EndOfInsurance),
		BilledToSelf:       i.BillToPartyID == 0 || i.BillToPartyID == musicianID,
	}
}

func toProjectSummary(p entity.ProjectParticipant) ProjectSummary {
	s := ProjectSummary{
		ID:          p.ProjectID,
		Name:        p.Project.Name,
		Year:        p.Project.Year,
		Type:        p.Project.Type,
		Registered:  p.Registration,
		Instruments: []ProjectInstrumentRef{},
	}
	for _, pi := range p.Instruments {
		s.Instruments = append(s.Instruments, ProjectInstrumentRef{
			InstrumentRef: InstrumentRef{ID: pi.InstrumentID, Name: pi.Instrument.Name},
			Voice:         pi.Voice,
			SectionLeader: pi.SectionLeader,
		})
	}
	return s
}

// toProjectDetail collects the field data of the fields the participant may
// see, in display order.
func toProjectDetail(p entity.ProjectParticipant) ProjectDetail {
	d := ProjectDetail{
		ProjectSummary: toProjectSummary(p),
		Fields:         []Field{},
		Payments:       []Payment{},
	}

	byField := make(map[int]*Field)
	var order []int
	orderOf := make(map[int]int)
	for _, datum := range p.FieldsData {
		if !datum.Field.ParticipantAccess {
			continue
		}
		f, ok := byField[datum.FieldID]
		if !ok {
			f = &Field{
				ID:           datum.FieldID,
				Name:         datum.Field.Name,
				Tooltip:      datum.Field.Tooltip,
				Multiplicity: datum.Field.Multiplicity,
				DataType:     datum.Field.DataType,
				Values:       []FieldValue{},
			}
			byField[datum.FieldID] = f
			order = append(order, datum.FieldID)
			orderOf[datum.FieldID] = datum.Field.DisplayOrder
		}
		value := datum.OptionValue
		if value == "" && datum.Field.Multiplicity != entity.FieldMultiplicitySimple {
			value = datum.DataOption.Data
		}
		f.Values = append(f.Values, FieldValue{
			Key:   datum.OptionKey,
			Label: datum.DataOption.Label,
			Value: value,
		})
	}
	sort.SliceStable(order, func(i, j int) bool { return orderOf[order[i]] < orderOf[order[j]] })
	for _, id := range order {
		d.Fields = append(d.Fields, *byField[id])
	}

	for _, payment := range p.Payments {
		d.Payments = append(d.Payments, Payment{
			ID:            payment.ID,
			Amount:        payment.Amount,
			Subject:       payment.Subject,
			DateOfReceipt: formatDate(payment.CompositePayment.DateOfReceipt),
		})
		d.Paid += payment.Amount
	}
	return d
}
