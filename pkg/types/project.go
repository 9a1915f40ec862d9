package types

import (
	"time"
)

// Project types. The type selects which settings variant applies.
const (
	TypeCrawling ProjectType = "crawling"
	TypeData     ProjectType = "data"
	TypeStorage  ProjectType = "storage"
)

// ProjectType is the polymorphic discriminator for a project record.
type ProjectType string

// validProjectTypes is the set of recognized project type values.
var validProjectTypes = map[ProjectType]bool{
	TypeCrawling: true,
	TypeData:     true,
	TypeStorage:  true,
}

// ParseProjectType parses an external string into a ProjectType.
// Returns ErrInvalidType for unrecognized values. All external input is
// parsed at the boundary; internal code only sees the strict type.
func ParseProjectType(s string) (ProjectType, error) {
	t := ProjectType(s)
	if !validProjectTypes[t] {
		return "", ErrInvalidType
	}
	return t, nil
}

// Project lifecycle states, independent of schema compatibility.
const (
	StatusActive     ProjectStatus = "active"
	StatusProcessing ProjectStatus = "processing"
	StatusReady      ProjectStatus = "ready"
	StatusFailed     ProjectStatus = "failed"
	StatusArchived   ProjectStatus = "archived"
)

// ProjectStatus is the operational lifecycle state of a project.
type ProjectStatus string

// validProjectStatuses is the set of recognized status values.
var validProjectStatuses = map[ProjectStatus]bool{
	StatusActive:     true,
	StatusProcessing: true,
	StatusReady:      true,
	StatusFailed:     true,
	StatusArchived:   true,
}

// ParseProjectStatus parses an external string into a ProjectStatus.
// Returns ErrInvalidStatus for unrecognized values.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	st := ProjectStatus(s)
	if !validProjectStatuses[st] {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// Project represents one named documentation source under management.
// One project is one row in the shared registry file; high-volume
// operational data lives in the project's own shard file.
type Project struct {
	// ProjectID is a UUID v7, generated once and never reissued,
	// including across recreation.
	ProjectID string

	// GroupID references the grouping container this project belongs to.
	GroupID string

	// Name is the unique, human-chosen identity key alongside ProjectID.
	Name string

	// Type selects which settings variant applies.
	Type ProjectType

	// Status is the operational lifecycle state.
	Status ProjectStatus

	// SchemaVersion is the generation stamp set by the generation that
	// last wrote the record.
	SchemaVersion int

	// Compatibility is derived from SchemaVersion vs. the current
	// generation; "migrating" only while a recreation is in flight.
	Compatibility CompatibilityStatus

	// SourceURL is required for crawling-type projects, optional otherwise.
	SourceURL string

	// Settings is the type-specific configuration, preserved verbatim
	// across recreation.
	Settings Settings

	// Statistics holds operational counters, reset on recreation.
	Statistics Statistics

	// Metadata holds free-form user annotations, preserved verbatim
	// across recreation.
	Metadata map[string]any

	// Protected marks seeded default records that cannot be deleted.
	Protected bool

	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastOperationAt *time.Time
}

// nameRune reports whether r is allowed in a project name.
func nameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}

// MaxNameLength bounds project names; names also double as shard file names.
const MaxNameLength = 128

// ValidateName checks that a project name is non-empty, within length
// bounds, and uses only letters, digits, '-', '_' and '.'.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Reason: "exceeds maximum length"}
	}
	for _, r := range name {
		if !nameRune(r) {
			return &ValidationError{Field: "name", Reason: "contains invalid characters"}
		}
	}
	return nil
}

// Validate checks the record-level contract: name charset, recognized type
// and status, timestamp ordering, statistics consistency, type-specific
// settings, and the crawling source URL requirement.
func (p *Project) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if !validProjectTypes[p.Type] {
		return ErrInvalidType
	}
	if !validProjectStatuses[p.Status] {
		return ErrInvalidStatus
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		return &ValidationError{Field: "updated_at", Reason: "precedes created_at"}
	}
	if p.LastOperationAt != nil && p.LastOperationAt.Before(p.CreatedAt) {
		return &ValidationError{Field: "last_operation_at", Reason: "precedes created_at"}
	}
	if err := p.Statistics.Validate(); err != nil {
		return err
	}
	if p.Type == TypeCrawling && p.SourceURL == "" {
		return &ValidationError{Field: "source_url", Reason: "required for crawling projects"}
	}
	if p.Settings != nil {
		if p.Settings.Type() != p.Type {
			return &ValidationError{Field: "settings", Reason: "settings variant does not match project type"}
		}
		if err := p.Settings.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Touch updates UpdatedAt and LastOperationAt to now.
func (p *Project) Touch(now time.Time) {
	p.UpdatedAt = now
	t := now
	p.LastOperationAt = &t
}
