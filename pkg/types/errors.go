package types

import (
	"errors"
	"fmt"
)

// Lookup and uniqueness errors.
var (
	ErrNotFound      = errors.New("project not found")
	ErrAlreadyExists = errors.New("project name already exists")
	ErrGroupNotFound = errors.New("project group not found")
)

// Compatibility and recreation errors.
var (
	ErrIncompatible          = errors.New("project schema is incompatible")
	ErrRecreationNotRequired = errors.New("project is already at the current schema version")
	ErrRecreationInFlight    = errors.New("a recreation is already in progress for this project")
	ErrConfirmationRequired  = errors.New("recreation requires explicit confirmation")
)

// Validation errors for boundary parsing.
var (
	ErrInvalidType      = errors.New("invalid project type")
	ErrInvalidStatus    = errors.New("invalid project status")
	ErrInvalidOperation = errors.New("invalid migration operation")
	ErrValidation       = errors.New("validation failed")
)

// Store lifecycle and protection errors.
var (
	ErrStoreClosed = errors.New("store is closed")
	ErrProtected   = errors.New("project is protected and cannot be deleted")
	ErrMigration   = errors.New("migration failed")
)

// ValidationError describes a field-level contract violation: bad name
// characters, an out-of-range type-specific setting, inconsistent
// statistics. It unwraps to ErrValidation so callers can match the kind.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IncompatibleProjectError is returned when modification is attempted on a
// non-compatible record. The message names the recreation command and the
// version delta so the error is directly actionable.
type IncompatibleProjectError struct {
	Name           string
	ProjectVersion int
	CurrentVersion int
	// Detail summarizes the validation issues for records that are
	// version-current but failed an integrity or settings check, where
	// the version delta alone explains nothing.
	Detail string
}

func (e *IncompatibleProjectError) Error() string {
	if e.ProjectVersion == e.CurrentVersion {
		msg := fmt.Sprintf("project %q matches schema v%d but failed validation", e.Name, e.CurrentVersion)
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		return msg + fmt.Sprintf("; run \"docshelf recreate %s\" to rebuild it", e.Name)
	}
	return fmt.Sprintf(
		"project %q uses schema v%d but the current schema is v%d; run \"docshelf recreate %s\" to rebuild it",
		e.Name, e.ProjectVersion, e.CurrentVersion, e.Name)
}

func (e *IncompatibleProjectError) Unwrap() error { return ErrIncompatible }

// MigrationError describes a failed structural migration step. The backup
// path, when set, points at the pre-migration snapshot kept on disk for
// manual recovery; callers should surface it rather than retry.
type MigrationError struct {
	Version    int
	Step       string
	BackupPath string
	Err        error
}

func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("migration to v%d failed at %s: %v", e.Version, e.Step, e.Err)
	if e.BackupPath != "" {
		msg += fmt.Sprintf(" (pre-migration backup kept at %s)", e.BackupPath)
	}
	return msg
}

func (e *MigrationError) Unwrap() error { return ErrMigration }

// RepositoryError wraps an underlying storage engine failure so front ends
// never see opaque driver errors.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }
