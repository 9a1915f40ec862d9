package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// Seeded default names. The default group and starter project are created
// on first migration of a brand-new store and are protected from deletion.
const (
	DefaultGroupName   = "default"
	DefaultProjectName = "getting-started"
)

// versionMarkerKey is the schema_info key holding the registry's
// structural version.
const versionMarkerKey = "schema_version"

// Migrator applies ordered structural migration steps to bring a registry
// file from its detected version to the current one.
type Migrator struct {
	db      *sql.DB
	dataDir string
	log     *slog.Logger
}

// MigrateResult reports the outcome of a MigrateToLatest run.
type MigrateResult struct {
	Applied      int
	FinalVersion int
}

// migrationStep is one version transition. Additive steps are idempotent
// through "if not exists" semantics; structural steps snapshot the file
// before mutating it and run inside a single transaction.
type migrationStep struct {
	version    int
	name       string
	structural bool
	apply      func(m *Migrator) error
}

// registrySteps lists the registry migrations in ascending version order.
var registrySteps = []migrationStep{
	{version: 1, name: "crawler-tables", apply: (*Migrator).createCrawlerTables},
	{version: 2, name: "typed-settings-columns", apply: (*Migrator).addTypedColumns},
	{version: 3, name: "unified-registry", structural: true, apply: (*Migrator).unifyRegistry},
}

// NewMigrator returns a Migrator over an open registry connection.
func NewMigrator(db *sql.DB, dataDir string) *Migrator {
	return &Migrator{
		db:      db,
		dataDir: dataDir,
		log:     slog.Default().With("component", "migrator"),
	}
}

// DetectVersion returns the structural version recorded in the file, or 0
// when no version marker exists (pre-history).
func (m *Migrator) DetectVersion() (int, error) {
	var name string
	err := m.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_info'").Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &types.RepositoryError{Op: "detect version", Err: err}
	}

	var value string
	err = m.db.QueryRow(
		"SELECT value FROM schema_info WHERE key = ?", versionMarkerKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &types.RepositoryError{Op: "detect version", Err: err}
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, &types.RepositoryError{Op: "detect version", Err: fmt.Errorf("invalid version marker %q", value)}
	}
	return v, nil
}

// MigrateToLatest applies all steps above the detected version in strictly
// ascending order. The version marker advances only after every step in
// the run succeeds, so a crash mid-run is recovered by re-running from the
// last durably recorded version; each step is safe to re-apply.
func (m *Migrator) MigrateToLatest() (MigrateResult, error) {
	detected, err := m.DetectVersion()
	if err != nil {
		return MigrateResult{}, err
	}

	result := MigrateResult{FinalVersion: detected}
	for _, step := range registrySteps {
		if step.version <= detected {
			continue
		}
		m.log.Info("applying migration step",
			"version", step.version, "name", step.name, "structural", step.structural)
		if err := step.apply(m); err != nil {
			return result, err
		}
		result.Applied++
		result.FinalVersion = step.version
	}

	if result.Applied > 0 {
		if err := m.writeVersionMarker(result.FinalVersion); err != nil {
			return result, err
		}
	}
	return result, nil
}

// writeVersionMarker durably records the structural version.
func (m *Migrator) writeVersionMarker(version int) error {
	if _, err := m.db.Exec(createSchemaInfo); err != nil {
		return &types.RepositoryError{Op: "write version marker", Err: err}
	}
	_, err := m.db.Exec(
		"INSERT OR REPLACE INTO schema_info (key, value) VALUES (?, ?)",
		versionMarkerKey, strconv.Itoa(version))
	if err != nil {
		return &types.RepositoryError{Op: "write version marker", Err: err}
	}
	return nil
}

// createCrawlerTables is the generation 1 step: the crawler-era projects
// table. Additive, idempotent through IF NOT EXISTS.
func (m *Migrator) createCrawlerTables() error {
	if _, err := m.db.Exec(createProjectsCrawler); err != nil {
		return &types.MigrationError{Version: 1, Step: "create crawler tables", Err: err}
	}
	return nil
}

// addTypedColumns is the generation 2 step: project_type, settings and
// metadata columns on the existing table. A duplicate-column error means a
// previous run already added the column and is swallowed; all other
// failures propagate.
func (m *Migrator) addTypedColumns() error {
	for _, stmt := range alterTypedColumns {
		if _, err := m.db.Exec(stmt); err != nil {
			if isDuplicateColumnErr(err) {
				continue
			}
			return &types.MigrationError{Version: 2, Step: "add typed columns", Err: err}
		}
	}
	return nil
}

// unifyRegistry is the generation 3 structural step: it snapshots the
// registry file, rebuilds the projects table under the unified layout by
// transforming every existing row according to its detected legacy shape,
// seeds the default group and starter project, and validates the
// post-conditions. Everything from table swap to version marker runs in
// one transaction, so an interrupted run rolls back whole and the step
// re-applies cleanly.
func (m *Migrator) unifyRegistry() error {
	backupPath, err := m.snapshotRegistry()
	if err != nil {
		return &types.MigrationError{Version: 3, Step: "snapshot backup", Err: err}
	}
	m.log.Info("registry snapshot taken", "path", backupPath)

	fail := func(step string, err error) error {
		return &types.MigrationError{Version: 3, Step: step, BackupPath: backupPath, Err: err}
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fail("begin transaction", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		createProjectGroups,
		createMigrationHistory,
		createSchemaInfo,
		`DROP TABLE IF EXISTS projects_new;`,
		createProjectsUnified,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fail("create unified tables", err)
		}
	}

	oldCount, err := m.transformRows(tx)
	if err != nil {
		return fail("transform rows", err)
	}

	var newCount int
	if err := tx.QueryRow("SELECT COUNT(*) FROM projects_new").Scan(&newCount); err != nil {
		return fail("validate row count", err)
	}
	if newCount != oldCount {
		return fail("validate row count",
			fmt.Errorf("unified table has %d rows, source had %d", newCount, oldCount))
	}

	if _, err := tx.Exec("DROP TABLE projects"); err != nil {
		return fail("swap tables", err)
	}
	if _, err := tx.Exec("ALTER TABLE projects_new RENAME TO projects"); err != nil {
		return fail("swap tables", err)
	}

	for _, stmt := range registryIndexDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fail("create indexes", err)
		}
	}

	if err := m.seedDefaults(tx); err != nil {
		return fail("seed defaults", err)
	}

	var groups int
	if err := tx.QueryRow("SELECT COUNT(*) FROM project_groups").Scan(&groups); err != nil {
		return fail("validate defaults", err)
	}
	if groups == 0 {
		return fail("validate defaults", fmt.Errorf("no grouping container exists after migration"))
	}

	// The marker commits with the swap: a crash leaves either the old
	// layout with no marker or the unified layout with one, never a
	// unified table the next run mistakes for legacy.
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO schema_info (key, value) VALUES (?, '3')",
		versionMarkerKey); err != nil {
		return fail("record version", err)
	}

	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}

// transformRows copies every row of the old projects table into
// projects_new, branching on the detected legacy shape to build the
// unified payload. Returns the number of source rows.
func (m *Migrator) transformRows(tx *sql.Tx) (int, error) {
	rows, err := tx.Query("SELECT * FROM projects")
	if err != nil {
		return 0, fmt.Errorf("reading source rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("reading source columns: %w", err)
	}

	count := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, fmt.Errorf("scanning source row: %w", err)
		}

		raw := make(schema.RawRow, len(cols))
		for i, col := range cols {
			raw[col] = normalizeValue(values[i])
		}

		unified, err := buildUnifiedRow(raw)
		if err != nil {
			return 0, err
		}
		if err := insertUnifiedRow(tx, unified); err != nil {
			return 0, err
		}
		count++
	}
	return count, rows.Err()
}

// unifiedRow is one row of the unified projects layout.
type unifiedRow struct {
	projectID     string
	groupID       sql.NullString
	name          string
	projectType   string
	status        string
	schemaVersion int
	compatibility string
	sourceURL     sql.NullString
	settings      string
	statistics    string
	metadata      string
	protected     bool
	createdAt     string
	updatedAt     string
	lastOpAt      sql.NullString
}

// buildUnifiedRow transforms a raw legacy row into the unified layout. The
// record keeps the generation stamp it was written under: structural
// migration changes the storage layout, not the record's generation, so
// legacy records still read as incompatible and go through recreation.
func buildUnifiedRow(raw schema.RawRow) (*unifiedRow, error) {
	gen := schema.DetectGeneration(raw)
	if gen == 0 {
		return nil, fmt.Errorf("row %v matches no known schema generation", raw["project_id"])
	}
	// A row carrying the unified columns was already transformed by an
	// earlier run. Its stamp still reads as a legacy generation, so the
	// column set decides the transform: routing it back through a legacy
	// path would rebuild settings from columns the table no longer has.
	if raw["compatibility_status"] != nil && raw["statistics"] != nil {
		return unifiedRowFromRaw(raw, gen), nil
	}
	switch gen {
	case 1:
		return crawlerRowToUnified(raw)
	case 2:
		return typedRowToUnified(raw)
	default:
		return unifiedRowFromRaw(raw, gen), nil
	}
}

// crawlerRowToUnified rebuilds a generation 1 crawler row.
func crawlerRowToUnified(raw schema.RawRow) (*unifiedRow, error) {
	settings := &types.CrawlingSettings{}
	if depth, ok := rawInt(raw["crawl_depth"]); ok && depth > 0 {
		settings.CrawlDepth = depth
	}
	settings.ApplyDefaults()
	settingsBlob, err := types.EncodeSettings(settings)
	if err != nil {
		return nil, fmt.Errorf("encoding crawler settings: %w", err)
	}

	pageCount, _ := rawInt(raw["page_count"])
	stats := types.Statistics{
		PagesTotal:      int64(pageCount),
		PagesSuccessful: int64(pageCount),
	}
	statsBlob, err := encodeJSON(stats)
	if err != nil {
		return nil, fmt.Errorf("encoding crawler statistics: %w", err)
	}

	createdAt := rawString(raw["created_at"])
	updatedAt := rawString(raw["last_crawled_at"])
	if updatedAt == "" {
		updatedAt = createdAt
	}

	row := &unifiedRow{
		projectID:     rawString(raw["project_id"]),
		name:          rawString(raw["name"]),
		projectType:   string(types.TypeCrawling),
		status:        string(types.StatusActive),
		schemaVersion: 1,
		compatibility: string(types.Incompatible),
		sourceURL:     nullString(rawString(raw["source_url"])),
		settings:      string(settingsBlob),
		statistics:    statsBlob,
		metadata:      "{}",
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		lastOpAt:      nullString(rawString(raw["last_crawled_at"])),
	}
	if row.projectID == "" {
		row.projectID = newUUID()
	}
	return row, nil
}

// typedRowToUnified rebuilds a generation 2 typed-settings row. Settings
// and metadata blobs are carried verbatim.
func typedRowToUnified(raw schema.RawRow) (*unifiedRow, error) {
	settings := rawString(raw["settings"])
	if settings == "" {
		settings = "{}"
	}
	metadata := rawString(raw["metadata"])
	if metadata == "" {
		metadata = "{}"
	}
	createdAt := rawString(raw["created_at"])
	updatedAt := rawString(raw["updated_at"])
	if updatedAt == "" {
		updatedAt = createdAt
	}

	row := &unifiedRow{
		projectID:     rawString(raw["project_id"]),
		name:          rawString(raw["name"]),
		projectType:   rawString(raw["project_type"]),
		status:        string(types.StatusActive),
		schemaVersion: 2,
		compatibility: string(types.Incompatible),
		sourceURL:     nullString(rawString(raw["source_url"])),
		settings:      settings,
		statistics:    "{}",
		metadata:      metadata,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
	if row.projectID == "" {
		row.projectID = newUUID()
	}
	return row, nil
}

// unifiedRowFromRaw copies a row that already carries the unified columns,
// for re-runs of the structural step after a crash.
func unifiedRowFromRaw(raw schema.RawRow, gen int) *unifiedRow {
	compat := rawString(raw["compatibility_status"])
	if compat == "" {
		compat = string(types.CompatibilityFromVersions(gen, schema.CurrentVersion))
	}
	settings := rawString(raw["settings"])
	if settings == "" {
		settings = "{}"
	}
	statistics := rawString(raw["statistics"])
	if statistics == "" {
		statistics = "{}"
	}
	metadata := rawString(raw["metadata"])
	if metadata == "" {
		metadata = "{}"
	}
	protected, _ := rawInt(raw["protected"])
	return &unifiedRow{
		projectID:     rawString(raw["project_id"]),
		groupID:       nullString(rawString(raw["group_id"])),
		name:          rawString(raw["name"]),
		projectType:   rawString(raw["project_type"]),
		status:        rawString(raw["status"]),
		schemaVersion: gen,
		compatibility: compat,
		sourceURL:     nullString(rawString(raw["source_url"])),
		settings:      settings,
		statistics:    statistics,
		metadata:      metadata,
		protected:     protected != 0,
		createdAt:     rawString(raw["created_at"]),
		updatedAt:     rawString(raw["updated_at"]),
		lastOpAt:      nullString(rawString(raw["last_operation_at"])),
	}
}

// insertUnifiedRow writes one transformed row into projects_new.
func insertUnifiedRow(tx *sql.Tx, row *unifiedRow) error {
	_, err := tx.Exec(`
		INSERT INTO projects_new (
			project_id, group_id, name, project_type, status,
			schema_version, compatibility_status, source_url,
			settings, statistics, metadata, protected,
			created_at, updated_at, last_operation_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.projectID, row.groupID, row.name, row.projectType, row.status,
		row.schemaVersion, row.compatibility, row.sourceURL,
		row.settings, row.statistics, row.metadata, boolInt(row.protected),
		row.createdAt, row.updatedAt, row.lastOpAt)
	if err != nil {
		return fmt.Errorf("inserting unified row %q: %w", row.name, err)
	}
	return nil
}

// snapshotRegistry copies the registry file before a destructive step. The
// backup stays on disk for manual recovery; it is never removed by the
// migrator.
func (m *Migrator) snapshotRegistry() (string, error) {
	src := filepath.Join(m.dataDir, RegistryFileName)
	dst := filepath.Join(m.dataDir, fmt.Sprintf("registry-backup-%d.db", time.Now().Unix()))

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening registry for backup: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copying registry to backup: %w", err)
	}
	return dst, nil
}

// seedDefaults creates the default, non-deletable grouping container and
// starter project on a brand-new store. Seeding is idempotent: existing
// defaults are detected by name before inserting, so re-running migrations
// never duplicates them. It runs inside the structural step's transaction.
func (m *Migrator) seedDefaults(tx *sql.Tx) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var groupID string
	err := tx.QueryRow(
		"SELECT group_id FROM project_groups WHERE name = ?", DefaultGroupName).Scan(&groupID)
	if err == sql.ErrNoRows {
		groupID = newUUID()
		if _, err := tx.Exec(
			"INSERT INTO project_groups (group_id, name, protected, created_at) VALUES (?, ?, 1, ?)",
			groupID, DefaultGroupName, now); err != nil {
			return fmt.Errorf("seeding default group: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("checking default group: %w", err)
	}

	var existing int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM projects WHERE name = ?", DefaultProjectName).Scan(&existing); err != nil {
		return fmt.Errorf("checking default project: %w", err)
	}
	if existing > 0 {
		return nil
	}

	settings, err := types.NewSettings(types.TypeStorage)
	if err != nil {
		return fmt.Errorf("building default settings: %w", err)
	}
	settingsBlob, err := types.EncodeSettings(settings)
	if err != nil {
		return fmt.Errorf("encoding default settings: %w", err)
	}
	metadataBlob, err := encodeJSON(map[string]any{
		"description": "Seeded starter project",
	})
	if err != nil {
		return fmt.Errorf("encoding default metadata: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO projects (
			project_id, group_id, name, project_type, status,
			schema_version, compatibility_status, source_url,
			settings, statistics, metadata, protected,
			created_at, updated_at, last_operation_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, '{}', ?, 1, ?, ?, NULL)`,
		newUUID(), groupID, DefaultProjectName,
		string(types.TypeStorage), string(types.StatusActive),
		schema.CurrentVersion, string(types.Compatible),
		string(settingsBlob), metadataBlob, now, now)
	if err != nil {
		return fmt.Errorf("seeding default project: %w", err)
	}
	return nil
}

// isDuplicateColumnErr matches SQLite's duplicate-column error text.
func isDuplicateColumnErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

// normalizeValue converts driver scan values to plain Go values.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// rawString coerces a scanned column value to a string.
func rawString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

// rawInt coerces a scanned column value to an int.
func rawInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// nullString wraps a possibly-empty string for a nullable column.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// boolInt converts a bool to the 0/1 integer SQLite stores.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
