package entity

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// MemberStatus classifies a musician's relation to the orchestra.
type MemberStatus string

const (
	MemberStatusRegular   MemberStatus = "regular"
	MemberStatusPassive   MemberStatus = "passive"
	MemberStatusSoloist   MemberStatus = "soloist"
	MemberStatusConductor MemberStatus = "conductor"
	MemberStatusTemporary MemberStatus = "temporary"
)

var memberStatuses = []MemberStatus{
	MemberStatusRegular, MemberStatusPassive, MemberStatusSoloist,
	MemberStatusConductor, MemberStatusTemporary,
}

func (s *MemberStatus) Scan(src any) error { return scanEnum(s, src, memberStatuses) }
func (s MemberStatus) Value() (driver.Value, error) { return valueEnum(s, memberStatuses) }

// ProjectType tells permanent ensembles from one-off projects.
type ProjectType string

const (
	ProjectTypePermanent ProjectType = "permanent"
	ProjectTypeTemporary ProjectType = "temporary"
	ProjectTypeTemplate  ProjectType = "template"
)

var projectTypes = []ProjectType{ProjectTypePermanent, ProjectTypeTemporary, ProjectTypeTemplate}

func (t *ProjectType) Scan(src any) error { return scanEnum(t, src, projectTypes) }
func (t ProjectType) Value() (driver.Value, error) { return valueEnum(t, projectTypes) }

// FieldMultiplicity describes how many options of a participant field a
// musician may hold.
type FieldMultiplicity string

const (
	FieldMultiplicitySimple         FieldMultiplicity = "simple"
	FieldMultiplicitySingle         FieldMultiplicity = "single"
	FieldMultiplicityMultiple       FieldMultiplicity = "multiple"
	FieldMultiplicityParallel       FieldMultiplicity = "parallel"
	FieldMultiplicityRecurring      FieldMultiplicity = "recurring"
	FieldMultiplicityGroupOfPeople  FieldMultiplicity = "groupofpeople"
	FieldMultiplicityGroupsOfPeople FieldMultiplicity = "groupsofpeople"
)

var fieldMultiplicities = []FieldMultiplicity{
	FieldMultiplicitySimple, FieldMultiplicitySingle, FieldMultiplicityMultiple,
	FieldMultiplicityParallel, FieldMultiplicityRecurring,
	FieldMultiplicityGroupOfPeople, FieldMultiplicityGroupsOfPeople,
}

func (m *FieldMultiplicity) Scan(src any) error { return scanEnum(m, src, fieldMultiplicities) }
func (m FieldMultiplicity) Value() (driver.Value, error) {
	return valueEnum(m, fieldMultiplicities)
}

// Selectable reports whether a registrant chooses among data options.
func (m FieldMultiplicity) Selectable() bool {
	switch m {
	case FieldMultiplicitySingle, FieldMultiplicityMultiple, FieldMultiplicityParallel:
		return true
	}
	return false
}

// FieldDataType is the value type of a participant field.
type FieldDataType string

const (
	FieldDataTypeText        FieldDataType = "text"
	FieldDataTypeHTML        FieldDataType = "html"
	FieldDataTypeBoolean     FieldDataType = "boolean"
	FieldDataTypeInteger     FieldDataType = "integer"
	FieldDataTypeFloat       FieldDataType = "float"
	FieldDataTypeDate        FieldDataType = "date"
	FieldDataTypeDateTime    FieldDataType = "datetime"
	FieldDataTypeServiceFee  FieldDataType = "service-fee"
	FieldDataTypeCloudFile   FieldDataType = "cloud-file"
	FieldDataTypeCloudFolder FieldDataType = "cloud-folder"
	FieldDataTypeDBFile      FieldDataType = "db-file"
)

var fieldDataTypes = []FieldDataType{
	FieldDataTypeText, FieldDataTypeHTML, FieldDataTypeBoolean, FieldDataTypeInteger,
	FieldDataTypeFloat, FieldDataTypeDate, FieldDataTypeDateTime, FieldDataTypeServiceFee,
	FieldDataTypeCloudFile, FieldDataTypeCloudFolder, FieldDataTypeDBFile,
}

func (d *FieldDataType) Scan(src any) error { return scanEnum(d, src, fieldDataTypes) }
func (d FieldDataType) Value() (driver.Value, error) { return valueEnum(d, fieldDataTypes) }

// GeographicalScope is the coverage area of an instrument insurance.
type GeographicalScope string

const (
	GeographicalScopeDomestic  GeographicalScope = "domestic"
	GeographicalScopeContinent GeographicalScope = "continent"
	GeographicalScopeGermany   GeographicalScope = "germany"
	GeographicalScopeEurope    GeographicalScope = "europe"
	GeographicalScopeWorld     GeographicalScope = "world"
)

var geographicalScopes = []GeographicalScope{
	GeographicalScopeDomestic, GeographicalScopeContinent, GeographicalScopeGermany,
	GeographicalScopeEurope, GeographicalScopeWorld,
}

func (g *GeographicalScope) Scan(src any) error { return scanEnum(g, src, geographicalScopes) }
func (g GeographicalScope) Value() (driver.Value, error) {
	return valueEnum(g, geographicalScopes)
}

// EventType is the iCalendar component kind of a project event.
type EventType string

const (
	EventTypeEvent   EventType = "VEVENT"
	EventTypeTodo    EventType = "VTODO"
	EventTypeJournal EventType = "VJOURNAL"
)

var eventTypes = []EventType{EventTypeEvent, EventTypeTodo, EventTypeJournal}

func (e *EventType) Scan(src any) error { return scanEnum(e, src, eventTypes) }
func (e EventType) Value() (driver.Value, error) { return valueEnum(e, eventTypes) }

func scanEnum[T ~string](dst *T, src any, valid []T) error {
	var s string
	switch v := src.(type) {
	case nil:
		*dst = ""
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
	if s != "" && !slices.Contains(valid, T(s)) {
		return fmt.Errorf("invalid %T value %q", *dst, s)
	}
	*dst = T(s)
	return nil
}

func valueEnum[T ~string](v T, valid []T) (driver.Value, error) {
	if v == "" {
		return nil, nil
	}
	if !slices.Contains(valid, v) {
		return nil, fmt.Errorf("invalid %T value %q", v, string(v))
	}
	return string(v), nil
}
