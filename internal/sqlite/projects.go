package sqlite

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// projectColumns is the SELECT column list for the unified layout.
const projectColumns = `project_id, group_id, name, project_type, status,
	schema_version, compatibility_status, source_url,
	settings, statistics, metadata, protected,
	created_at, updated_at, last_operation_at`

// ProjectFilter narrows FetchProjects results. Zero values match all.
type ProjectFilter struct {
	Status types.ProjectStatus
	Type   types.ProjectType
	Limit  int
	Offset int
}

// SaveProject upserts a project record keyed by its ID. A new record gets
// a generated ID and the default group when unset. A unique-name violation
// surfaces as ErrAlreadyExists, not a generic storage error.
func (s *Store) SaveProject(p *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if p.ProjectID == "" {
		p.ProjectID = newUUID()
	}
	if p.GroupID == "" {
		groupID, err := s.defaultGroupID()
		if err != nil {
			return err
		}
		p.GroupID = groupID
	}

	settingsBlob, err := types.EncodeSettings(p.Settings)
	if err != nil {
		return &types.RepositoryError{Op: "encode settings", Err: err}
	}
	statsBlob, err := encodeJSON(p.Statistics)
	if err != nil {
		return &types.RepositoryError{Op: "encode statistics", Err: err}
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataBlob, err := encodeJSON(metadata)
	if err != nil {
		return &types.RepositoryError{Op: "encode metadata", Err: err}
	}

	var lastOp sql.NullString
	if p.LastOperationAt != nil {
		lastOp = nullString(p.LastOperationAt.UTC().Format(time.RFC3339))
	}

	_, err = s.db.Exec(`
		INSERT INTO projects (
			project_id, group_id, name, project_type, status,
			schema_version, compatibility_status, source_url,
			settings, statistics, metadata, protected,
			created_at, updated_at, last_operation_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			group_id = excluded.group_id,
			name = excluded.name,
			project_type = excluded.project_type,
			status = excluded.status,
			schema_version = excluded.schema_version,
			compatibility_status = excluded.compatibility_status,
			source_url = excluded.source_url,
			settings = excluded.settings,
			statistics = excluded.statistics,
			metadata = excluded.metadata,
			protected = excluded.protected,
			updated_at = excluded.updated_at,
			last_operation_at = excluded.last_operation_at`,
		p.ProjectID, nullString(p.GroupID), p.Name, string(p.Type), string(p.Status),
		p.SchemaVersion, string(p.Compatibility), nullString(p.SourceURL),
		string(settingsBlob), statsBlob, metadataBlob, boolInt(p.Protected),
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
		lastOp)
	if err != nil {
		if isUniqueNameErr(err) {
			return types.ErrAlreadyExists
		}
		return &types.RepositoryError{Op: "save project", Err: err}
	}
	return nil
}

// FindProjectByID loads a project record, or ErrNotFound.
func (s *Store) FindProjectByID(id string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE project_id = ?", id)
	return scanProject(row)
}

// FindProjectByName loads a project record by its unique name, or
// ErrNotFound.
func (s *Store) FindProjectByName(name string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE name = ?", name)
	return scanProject(row)
}

// FetchProjects returns records matching the filter, newest updated_at
// first.
func (s *Store) FetchProjects(filter ProjectFilter) ([]*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := "SELECT " + projectColumns + " FROM projects"
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		conds = append(conds, "project_type = ?")
		args = append(args, string(filter.Type))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC, name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &types.RepositoryError{Op: "fetch projects", Err: err}
	}
	defer rows.Close()

	var out []*types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProjectByID removes a project record. Protected records refuse
// deletion with ErrProtected.
func (s *Store) DeleteProjectByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.deleteWhere("project_id", id)
}

// DeleteProjectByName removes a project record by name.
func (s *Store) DeleteProjectByName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.deleteWhere("name", name)
}

func (s *Store) deleteWhere(col, value string) error {
	var protected int
	err := s.db.QueryRow(
		"SELECT protected FROM projects WHERE "+col+" = ?", value).Scan(&protected)
	if err == sql.ErrNoRows {
		return types.ErrNotFound
	}
	if err != nil {
		return &types.RepositoryError{Op: "delete project", Err: err}
	}
	if protected != 0 {
		return types.ErrProtected
	}
	if _, err := s.db.Exec("DELETE FROM projects WHERE "+col+" = ?", value); err != nil {
		return &types.RepositoryError{Op: "delete project", Err: err}
	}
	return nil
}

// CountProjects returns the number of project records.
func (s *Store) CountProjects() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&n); err != nil {
		return 0, &types.RepositoryError{Op: "count projects", Err: err}
	}
	return n, nil
}

// ProjectExists reports whether a project name is taken.
func (s *Store) ProjectExists(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM projects WHERE name = ?", name).Scan(&n); err != nil {
		return false, &types.RepositoryError{Op: "project exists", Err: err}
	}
	return n > 0, nil
}

// RawProjectRow returns the stored columns of a project row as written,
// for pre-materialization compatibility checks.
func (s *Store) RawProjectRow(name string) (schema.RawRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT * FROM projects WHERE name = ?", name)
	if err != nil {
		return nil, &types.RepositoryError{Op: "raw project row", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &types.RepositoryError{Op: "raw project row", Err: err}
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &types.RepositoryError{Op: "raw project row", Err: err}
		}
		return nil, types.ErrNotFound
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, &types.RepositoryError{Op: "raw project row", Err: err}
	}

	raw := make(schema.RawRow, len(cols))
	for i, col := range cols {
		raw[col] = normalizeValue(values[i])
	}
	return raw, nil
}

// SetCompatibilityStatus updates only the stored compatibility column.
// The recreation workflow uses it to flip a record to migrating without
// touching anything else.
func (s *Store) SetCompatibilityStatus(id string, status types.CompatibilityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.Exec(
		"UPDATE projects SET compatibility_status = ? WHERE project_id = ?",
		string(status), id)
	if err != nil {
		return &types.RepositoryError{Op: "set compatibility status", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanProject.
type scanner interface {
	Scan(dest ...any) error
}

// scanProject materializes one unified row, decoding the JSON blob columns
// into the variant selected by the type discriminator so downstream code
// never touches raw maps.
func scanProject(row scanner) (*types.Project, error) {
	var (
		p                              types.Project
		groupID, sourceURL, lastOp     sql.NullString
		ptype, status, compat          string
		settings, statistics, metadata string
		protected                      int
		createdAt, updatedAt           string
	)
	err := row.Scan(
		&p.ProjectID, &groupID, &p.Name, &ptype, &status,
		&p.SchemaVersion, &compat, &sourceURL,
		&settings, &statistics, &metadata, &protected,
		&createdAt, &updatedAt, &lastOp)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.RepositoryError{Op: "scan project", Err: err}
	}

	p.GroupID = groupID.String
	p.Type = types.ProjectType(ptype)
	p.Status = types.ProjectStatus(status)
	p.Compatibility = types.CompatibilityStatus(compat)
	p.SourceURL = sourceURL.String
	p.Protected = protected != 0

	p.Settings, err = types.DecodeSettings(p.Type, []byte(settings))
	if err != nil {
		return nil, &types.RepositoryError{Op: "decode settings", Err: err}
	}
	if statistics != "" && statistics != "{}" {
		if err := json.Unmarshal([]byte(statistics), &p.Statistics); err != nil {
			return nil, &types.RepositoryError{Op: "decode statistics", Err: err}
		}
	}
	p.Metadata, err = decodeJSONMap(metadata)
	if err != nil {
		return nil, &types.RepositoryError{Op: "decode metadata", Err: err}
	}

	p.CreatedAt, err = parseStoredTime(createdAt)
	if err != nil {
		return nil, &types.RepositoryError{Op: "parse created_at", Err: err}
	}
	p.UpdatedAt, err = parseStoredTime(updatedAt)
	if err != nil {
		return nil, &types.RepositoryError{Op: "parse updated_at", Err: err}
	}
	if lastOp.Valid && lastOp.String != "" {
		t, err := parseStoredTime(lastOp.String)
		if err != nil {
			return nil, &types.RepositoryError{Op: "parse last_operation_at", Err: err}
		}
		p.LastOperationAt = &t
	}
	return &p, nil
}

// parseStoredTime parses a stored timestamp. Current-generation writes use
// RFC3339, but rows carried through the structural migration keep whatever
// format their generation wrote.
func parseStoredTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// defaultGroupID looks up the seeded default group. Callers must hold s.mu.
func (s *Store) defaultGroupID() (string, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT group_id FROM project_groups WHERE name = ?", DefaultGroupName).Scan(&id)
	if err == sql.ErrNoRows {
		return "", types.ErrGroupNotFound
	}
	if err != nil {
		return "", &types.RepositoryError{Op: "default group", Err: err}
	}
	return id, nil
}

// FindGroupByName loads a grouping container, or ErrGroupNotFound.
func (s *Store) FindGroupByName(name string) (*types.ProjectGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		g         types.ProjectGroup
		protected int
		createdAt string
	)
	err := s.db.QueryRow(
		"SELECT group_id, name, protected, created_at FROM project_groups WHERE name = ?",
		name).Scan(&g.GroupID, &g.Name, &protected, &createdAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrGroupNotFound
	}
	if err != nil {
		return nil, &types.RepositoryError{Op: "find group", Err: err}
	}
	g.Protected = protected != 0
	g.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, &types.RepositoryError{Op: "parse group created_at", Err: err}
	}
	return &g, nil
}

// isUniqueNameErr matches SQLite's unique-constraint error on the project
// name column.
func isUniqueNameErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: projects.name")
}
