package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// migrationColumns is the SELECT column list for audit records.
const migrationColumns = `migration_id, project_id, project_name, operation,
	from_schema_version, to_schema_version, started_at, completed_at,
	success, error_message, preserved_settings, preserved_metadata,
	data_size_bytes, initiated_by_command`

// OpenMigrationRecord inserts a new, unsealed audit record. The record
// gets a generated ID and start time when unset.
func (s *Store) OpenMigrationRecord(rec *types.MigrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	if rec.MigrationID == "" {
		rec.MigrationID = newUUID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO migration_history (
			migration_id, project_id, project_name, operation,
			from_schema_version, to_schema_version, started_at,
			completed_at, success, error_message,
			preserved_settings, preserved_metadata,
			data_size_bytes, initiated_by_command
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0, '', ?, ?, ?, ?)`,
		rec.MigrationID, rec.ProjectID, rec.ProjectName, string(rec.Operation),
		rec.FromSchemaVersion, rec.ToSchemaVersion,
		rec.StartedAt.UTC().Format(time.RFC3339),
		blobOrEmpty(rec.PreservedSettings), blobOrEmpty(rec.PreservedMetadata),
		rec.DataSizeBytes, rec.InitiatedByCommand)
	if err != nil {
		return &types.RepositoryError{Op: "open migration record", Err: err}
	}
	return nil
}

// SealMigrationRecord persists a record's completion. Sealing is
// exactly-once at the storage level too: the update only touches rows
// whose completed_at is still NULL, so a duplicate completion call is a
// no-op.
func (s *Store) SealMigrationRecord(rec *types.MigrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if rec.CompletedAt == nil {
		return &types.ValidationError{Field: "completed_at", Reason: "record is not sealed"}
	}

	_, err := s.db.Exec(`
		UPDATE migration_history
		SET completed_at = ?, success = ?, error_message = ?, data_size_bytes = ?
		WHERE migration_id = ? AND completed_at IS NULL`,
		rec.CompletedAt.UTC().Format(time.RFC3339), boolInt(rec.Success),
		rec.ErrorMessage, rec.DataSizeBytes, rec.MigrationID)
	if err != nil {
		return &types.RepositoryError{Op: "seal migration record", Err: err}
	}
	return nil
}

// FindMigrationRecord loads one audit record, or ErrNotFound.
func (s *Store) FindMigrationRecord(id string) (*types.MigrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRow(
		"SELECT "+migrationColumns+" FROM migration_history WHERE migration_id = ?", id)
	return scanMigrationRecord(row)
}

// ListMigrationRecords returns audit records, newest first. An empty
// projectID lists records for every project.
func (s *Store) ListMigrationRecords(projectID string, limit int) ([]*types.MigrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := "SELECT " + migrationColumns + " FROM migration_history"
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	// rowid breaks ties between records started within the same second.
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &types.RepositoryError{Op: "list migration records", Err: err}
	}
	defer rows.Close()

	var out []*types.MigrationRecord
	for rows.Next() {
		rec, err := scanMigrationRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StuckMigrationRecords returns unsealed records started before the
// cutoff. A process interrupted mid-recreation leaves its audit record
// permanently unsealed; that state is detectable here but never
// auto-resolved, to avoid masking partial failures.
func (s *Store) StuckMigrationRecords(olderThan time.Time) ([]*types.MigrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT "+migrationColumns+" FROM migration_history WHERE completed_at IS NULL AND started_at < ? ORDER BY started_at ASC",
		olderThan.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, &types.RepositoryError{Op: "stuck migration records", Err: err}
	}
	defer rows.Close()

	var out []*types.MigrationRecord
	for rows.Next() {
		rec, err := scanMigrationRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanMigrationRecord materializes one audit row.
func scanMigrationRecord(row scanner) (*types.MigrationRecord, error) {
	var (
		rec                types.MigrationRecord
		operation          string
		startedAt          string
		completedAt        sql.NullString
		success            int
		settings, metadata string
	)
	err := row.Scan(
		&rec.MigrationID, &rec.ProjectID, &rec.ProjectName, &operation,
		&rec.FromSchemaVersion, &rec.ToSchemaVersion, &startedAt, &completedAt,
		&success, &rec.ErrorMessage, &settings, &metadata,
		&rec.DataSizeBytes, &rec.InitiatedByCommand)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.RepositoryError{Op: "scan migration record", Err: err}
	}

	rec.Operation = types.MigrationOperation(operation)
	rec.Success = success != 0
	rec.PreservedSettings = json.RawMessage(settings)
	rec.PreservedMetadata = json.RawMessage(metadata)

	rec.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, &types.RepositoryError{Op: "parse started_at", Err: err}
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, &types.RepositoryError{Op: "parse completed_at", Err: err}
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// blobOrEmpty returns a JSON blob's string form, defaulting to an empty
// object.
func blobOrEmpty(blob json.RawMessage) string {
	if len(blob) == 0 {
		return "{}"
	}
	return string(blob)
}
