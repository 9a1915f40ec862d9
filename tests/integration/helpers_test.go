// Package integration provides shared test helpers for integration tests.
package integration

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docshelf/internal/project"
	"github.com/mesh-intelligence/docshelf/internal/sqlite"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// setupService opens a store in an isolated temp directory and wraps it
// in a project service. Each test gets its own registry.
func setupService(t *testing.T) (*sqlite.Store, *project.Service, string) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := sqlite.Open(types.Config{DataDir: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, project.NewService(store), dataDir
}

// crawlerRegistryRow describes one project row in a crawler-era registry
// file, before project types or settings existed.
type crawlerRegistryRow struct {
	ProjectID string
	Name      string
	SourceURL string
	Depth     int
	Pages     int
	CreatedAt string
}

// seedCrawlerRegistry writes a registry file the way a crawler-era build
// would have left it: the original projects layout plus a version marker
// of 1 in schema_info.
func seedCrawlerRegistry(t *testing.T, dataDir string, rows []crawlerRegistryRow) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	db, err := sql.Open("sqlite", filepath.Join(dataDir, sqlite.RegistryFileName))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE projects (
		project_id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		source_url TEXT,
		crawl_depth INTEGER,
		page_count INTEGER,
		last_crawled_at TEXT,
		created_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_info (key, value) VALUES ('schema_version', '1')`)
	require.NoError(t, err)

	for _, row := range rows {
		_, err = db.Exec(`
			INSERT INTO projects (project_id, name, source_url, crawl_depth, page_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.ProjectID, row.Name, row.SourceURL, row.Depth, row.Pages, row.CreatedAt)
		require.NoError(t, err)
	}
}

// mustCreate creates a project through the service or fails the test.
func mustCreate(t *testing.T, svc *project.Service, params project.CreateParams) *types.Project {
	t.Helper()
	p, err := svc.Create(params)
	require.NoError(t, err)
	return p
}
