package types

import (
	"encoding/json"
	"time"
)

// Migration operations recorded in the audit trail.
const (
	OpRecreation MigrationOperation = "recreation"
	OpUpgrade    MigrationOperation = "upgrade"
	OpValidation MigrationOperation = "validation"
)

// MigrationOperation is the kind of attempt an audit record describes.
type MigrationOperation string

// validMigrationOperations is the set of recognized operation values.
var validMigrationOperations = map[MigrationOperation]bool{
	OpRecreation: true,
	OpUpgrade:    true,
	OpValidation: true,
}

// ParseMigrationOperation parses an external string into a MigrationOperation.
func ParseMigrationOperation(s string) (MigrationOperation, error) {
	op := MigrationOperation(s)
	if !validMigrationOperations[op] {
		return "", ErrInvalidOperation
	}
	return op, nil
}

// MigrationRecord is one append-only audit entry describing a recreation,
// upgrade, or validation attempt. A record is created open (CompletedAt
// nil) and sealed exactly once; it is never mutated after sealing.
type MigrationRecord struct {
	// MigrationID is a UUID v7, generated when the record is opened.
	MigrationID string

	// ProjectID and ProjectName identify the subject. The name is
	// denormalized so history stays readable after deletion.
	ProjectID   string
	ProjectName string

	Operation         MigrationOperation
	FromSchemaVersion int
	ToSchemaVersion   int

	StartedAt   time.Time
	CompletedAt *time.Time

	Success      bool
	ErrorMessage string

	// PreservedSettings and PreservedMetadata are snapshots taken at the
	// start of the operation, not references into the live record.
	PreservedSettings json.RawMessage
	PreservedMetadata json.RawMessage

	DataSizeBytes      int64
	InitiatedByCommand string
}

// Validate checks the record-level contract. Validation records describe an
// in-place check, so their source and target generations must match.
func (r *MigrationRecord) Validate() error {
	if !validMigrationOperations[r.Operation] {
		return ErrInvalidOperation
	}
	if r.FromSchemaVersion < 0 || r.ToSchemaVersion < 0 {
		return &ValidationError{Field: "schema_version", Reason: "must not be negative"}
	}
	if r.Operation == OpValidation && r.FromSchemaVersion != r.ToSchemaVersion {
		return &ValidationError{Field: "operation", Reason: "validation records must have matching source and target versions"}
	}
	return nil
}

// Sealed reports whether the record has been completed.
func (r *MigrationRecord) Sealed() bool {
	return r.CompletedAt != nil
}

// Seal completes the record with the outcome. Sealing is exactly-once:
// calling Seal on an already-sealed record is a no-op and returns false,
// protecting against duplicate completion calls.
func (r *MigrationRecord) Seal(success bool, errMsg string, now time.Time) bool {
	if r.Sealed() {
		return false
	}
	t := now
	r.CompletedAt = &t
	r.Success = success
	r.ErrorMessage = errMsg
	return true
}

// Duration returns the elapsed time of a sealed record, or zero while the
// record is still open.
func (r *MigrationRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
