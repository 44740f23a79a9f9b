package memberdata

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cafevdb/cafevdbmembers/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return db, mock
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestToProfile(t *testing.T) {
	id := uuid.MustParse("7b4a3a4e-0d1b-4c55-9f44-8f3cbe7c1a01")
	m := entity.Musician{
		ID:           7,
		UUID:         id,
		UserIDSlug:   "clara",
		FirstName:    "Clara",
		SurName:      "Schumann",
		Street:       "Hauptstraße",
		StreetNumber: "1",
		PostalCode:   "04109",
		City:         "Leipzig",
		Country:      "DE",
		Email:        "clara@example.org",
		Birthday:     date(1819, time.September, 13),
		MemberStatus: entity.MemberStatusRegular,
		Instruments: []entity.MusicianInstrument{
			{MusicianID: 7, InstrumentID: 3, Ranking: 2, Instrument: entity.Instrument{ID: 3, Name: "Viola"}},
			{MusicianID: 7, InstrumentID: 1, Ranking: 1, Instrument: entity.Instrument{ID: 1, Name: "Piano"}},
		},
	}

	p := toProfile(m)
	assert.Equal(t, "Clara Schumann", p.PublicName)
	assert.Equal(t, "1819-09-13", p.Birthday)
	assert.Equal(t, "Leipzig", p.Address.City)
	assert.Equal(t, id, p.UUID)
	assert.Equal(t, []InstrumentRef{{ID: 1, Name: "Piano", Ranking: 1}, {ID: 3, Name: "Viola", Ranking: 2}}, p.Instruments)

	empty := toProfile(entity.Musician{SurName: "Doe"})
	assert.Empty(t, empty.Birthday)
	assert.NotNil(t, empty.Instruments)
}

func TestToBankAccountAndInsurance(t *testing.T) {
	a := toBankAccount(entity.SepaBankAccount{Sequence: 1, IBAN: "DE89370400440532013000", BIC: "COBADEFFXXX", BankAccountOwner: "Clara Schumann"})
	assert.Equal(t, "DE****************3000", a.IBAN)
	assert.Equal(t, "Clara Schumann", a.BankAccountOwner)

	i := toInsurance(7, entity.InstrumentInsurance{
		ID:               2,
		BillToPartyID:    9,
		Object:           "Viola",
		InsuranceAmount:  12000,
		StartOfInsurance: *date(2020, time.January, 1),
	})
	assert.Equal(t, "2020-01-01", i.Start)
	assert.Empty(t, i.End)
	assert.False(t, i.BilledToSelf)
	assert.True(t, toInsurance(7, entity.InstrumentInsurance{BillToPartyID: 7}).BilledToSelf)
}

func TestToProjectDetail(t *testing.T) {
	optA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	optB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	visible := entity.ProjectParticipantField{ID: 11, Name: "Accommodation", DisplayOrder: 2, Multiplicity: entity.FieldMultiplicityMultiple, ParticipantAccess: true}
	first := entity.ProjectParticipantField{ID: 12, Name: "Diet", DisplayOrder: 1, Multiplicity: entity.FieldMultiplicitySimple, ParticipantAccess: true}
	hidden := entity.ProjectParticipantField{ID: 13, Name: "Fee", ParticipantAccess: false}

	p := entity.ProjectParticipant{
		ProjectID:    5,
		MusicianID:   7,
		Registration: true,
		Project:      entity.Project{ID: 5, Name: "Tour2024", Year: 2024, Type: entity.ProjectTypeTemporary},
		FieldsData: []entity.ProjectParticipantFieldDatum{
			{FieldID: 11, OptionKey: optA, Field: visible, DataOption: entity.ProjectParticipantFieldDataOption{Label: "Single room", Data: "40"}},
			{FieldID: 13, OptionKey: optA, OptionValue: "200", Field: hidden},
			{FieldID: 12, OptionKey: uuid.Nil, OptionValue: "vegetarian", Field: first},
			{FieldID: 11, OptionKey: optB, OptionValue: "2", Field: visible, DataOption: entity.ProjectParticipantFieldDataOption{Label: "Extra night"}},
		},
		Payments: []entity.ProjectPayment{
			{ID: 1, Amount: 100, Subject: "Deposit", CompositePayment: entity.CompositePayment{DateOfReceipt: date(2024, time.March, 1)}},
			{ID: 2, Amount: 50.5, Subject: "Rest"},
		},
	}

	d := toProjectDetail(p)
	assert.True(t, d.Registered)
	assert.Equal(t, "Tour2024", d.Name)
	require.Len(t, d.Fields, 2)
	assert.Equal(t, "Diet", d.Fields[0].Name)
	assert.Equal(t, []FieldValue{{Key: uuid.Nil, Value: "vegetarian"}}, d.Fields[0].Values)
	assert.Equal(t, []FieldValue{
		{Key: optA, Label: "Single room", Value: "40"},
		{Key: optB, Label: "Extra night", Value: "2"},
	}, d.Fields[1].Values)
	assert.Equal(t, 150.5, d.Paid)
	assert.Equal(t, "2024-03-01", d.Payments[0].DateOfReceipt)
}

func TestProfile_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "PersonalizedMusiciansView"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewService(nil).Profile(context.Background(), db)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProject_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "PersonalizedProjectParticipantsView" WHERE project_id = \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "musician_id"}))

	_, err := NewService(nil).Project(context.Background(), db, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "project 5")
}

func TestProjects_HidesPast(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "PersonalizedProjectParticipantsView"`).
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "musician_id", "registration"}).
			AddRow(1, 7, true).
			AddRow(2, 7, false).
			AddRow(3, 7, true))
	mock.ExpectQuery(`SELECT \* FROM "PersonalizedProjectsView"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "name", "type"}).
			AddRow(1, 2023, "Tour2023", "temporary").
			AddRow(2, 2025, "Gala2025", "temporary").
			AddRow(3, 2019, "Chamber Ensemble", "permanent"))
	mock.ExpectQuery(`SELECT \* FROM "PersonalizedProjectInstrumentsView"`).
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "musician_id", "instrument_id", "voice"}))

	s := NewService(nil)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	projects, err := s.Projects(context.Background(), db, false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	var names []string
	for _, p := range projects {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Gala2025", "Chamber Ensemble"}, names)
}
