// Package sqlite implements the docshelf registry store: project record
// persistence, per-project shard files, structural migrations, and the
// migration audit trail, all on SQLite files.
package sqlite

// Current (unified-registry) DDL. Tables are created by the migrator, not
// on open, so version detection sees whatever layout the file really has.
const (
	createProjectGroups = `CREATE TABLE IF NOT EXISTS project_groups (
    group_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    protected INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`

	createProjectsUnified = `CREATE TABLE projects_new (
    project_id TEXT PRIMARY KEY,
    group_id TEXT,
    name TEXT NOT NULL UNIQUE,
    project_type TEXT NOT NULL,
    status TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    compatibility_status TEXT NOT NULL,
    source_url TEXT,
    settings TEXT NOT NULL,
    statistics TEXT NOT NULL,
    metadata TEXT NOT NULL,
    protected INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_operation_at TEXT,
    FOREIGN KEY (group_id) REFERENCES project_groups(group_id)
);`

	createMigrationHistory = `CREATE TABLE IF NOT EXISTS migration_history (
    migration_id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    project_name TEXT NOT NULL,
    operation TEXT NOT NULL,
    from_schema_version INTEGER NOT NULL,
    to_schema_version INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    completed_at TEXT,
    success INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    preserved_settings TEXT NOT NULL DEFAULT '{}',
    preserved_metadata TEXT NOT NULL DEFAULT '{}',
    data_size_bytes INTEGER NOT NULL DEFAULT 0,
    initiated_by_command TEXT NOT NULL DEFAULT ''
);`

	createSchemaInfo = `CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// Registry index DDL.
const (
	idxProjectsStatus  = `CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);`
	idxProjectsType    = `CREATE INDEX IF NOT EXISTS idx_projects_type ON projects(project_type);`
	idxProjectsUpdated = `CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);`
	idxHistoryProject  = `CREATE INDEX IF NOT EXISTS idx_history_project ON migration_history(project_id);`
	idxHistoryStarted  = `CREATE INDEX IF NOT EXISTS idx_history_started ON migration_history(started_at);`
)

// registryIndexDDL lists all registry CREATE INDEX statements.
var registryIndexDDL = []string{
	idxProjectsStatus,
	idxProjectsType,
	idxProjectsUpdated,
	idxHistoryProject,
	idxHistoryStarted,
}

// Legacy DDL, used by the migrator's additive steps and by tests that
// construct old-generation stores.
const (
	// createProjectsCrawler is the crawler-era (generation 1) layout.
	createProjectsCrawler = `CREATE TABLE IF NOT EXISTS projects (
    project_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    source_url TEXT,
    crawl_depth INTEGER,
    page_count INTEGER,
    last_crawled_at TEXT,
    created_at TEXT NOT NULL
);`
)

// alterTypedColumns adds the generation 2 columns to the crawler layout.
// Each statement is applied independently so a duplicate-column error from
// a previous partial run can be swallowed per statement.
var alterTypedColumns = []string{
	`ALTER TABLE projects ADD COLUMN project_type TEXT;`,
	`ALTER TABLE projects ADD COLUMN settings TEXT;`,
	`ALTER TABLE projects ADD COLUMN metadata TEXT;`,
	`ALTER TABLE projects ADD COLUMN updated_at TEXT;`,
}

// Shard DDL. Each project owns one shard file with its own version marker,
// independent of the registry's.
const (
	createCrawlSessions = `CREATE TABLE IF NOT EXISTS crawl_sessions (
    session_id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    completed_at TEXT,
    pages_total INTEGER NOT NULL DEFAULT 0,
    pages_failed INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL
);`

	createPages = `CREATE TABLE IF NOT EXISTS pages (
    page_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    url TEXT NOT NULL,
    title TEXT,
    content_hash TEXT,
    fetched_at TEXT NOT NULL,
    status TEXT NOT NULL,
    FOREIGN KEY (session_id) REFERENCES crawl_sessions(session_id)
);`

	createShardInfo = `CREATE TABLE IF NOT EXISTS shard_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	idxPagesSession = `CREATE INDEX IF NOT EXISTS idx_pages_session ON pages(session_id);`
	idxPagesURL     = `CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);`
)
