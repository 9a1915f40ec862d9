// Integration tests for the project lifecycle: create, list, update,
// export, and delete against a real registry file, including shard
// creation and the seeded default project.
package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docshelf/internal/project"
	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/internal/sqlite"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

func TestProjectLifecycle(t *testing.T) {
	t.Run("fresh_registry_seeds_default_project", testFreshRegistrySeedsDefault)
	t.Run("create_list_get_update_delete", testCreateListGetUpdateDelete)
	t.Run("shard_follows_project", testShardFollowsProject)
	t.Run("export_snapshot", testExportSnapshot)
	t.Run("check_records_validation", testCheckRecordsValidation)
	t.Run("default_project_is_protected", testDefaultProjectProtected)
}

func testFreshRegistrySeedsDefault(t *testing.T) {
	store, svc, dataDir := setupService(t)

	assert.Equal(t, schema.CurrentVersion, store.MigrationResult().FinalVersion)
	assert.Positive(t, store.MigrationResult().Applied)

	p, err := svc.Get(sqlite.DefaultProjectName)
	require.NoError(t, err)
	assert.True(t, p.Protected)
	assert.Equal(t, types.Compatible, p.Compatibility)

	_, err = os.Stat(filepath.Join(dataDir, sqlite.RegistryFileName))
	assert.NoError(t, err)
}

func testCreateListGetUpdateDelete(t *testing.T) {
	_, svc, _ := setupService(t)

	created := mustCreate(t, svc, project.CreateParams{
		Name:      "api-docs",
		Type:      "crawling",
		SourceURL: "https://docs.example.com",
		Settings:  map[string]any{"crawl_depth": float64(4)},
		Metadata:  map[string]any{"team": "platform"},
	})
	assert.Equal(t, schema.CurrentVersion, created.SchemaVersion)
	assert.Equal(t, types.Compatible, created.Compatibility)

	// Listing by type excludes the seeded storage project.
	list, err := svc.List(project.ListFilter{Type: "crawling"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "api-docs", list[0].Name)

	// Lookup works by name and by ID.
	byName, err := svc.Get("api-docs")
	require.NoError(t, err)
	byID, err := svc.Get(created.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, byName.ProjectID, byID.ProjectID)

	// Updates merge settings and metadata instead of replacing them.
	updated, err := svc.Update("api-docs", project.UpdateParams{
		Settings: map[string]any{"max_pages": float64(500)},
		Metadata: map[string]any{"owner": "docs-team"},
	})
	require.NoError(t, err)
	settings := updated.Settings.(*types.CrawlingSettings)
	assert.Equal(t, 4, settings.CrawlDepth)
	assert.Equal(t, 500, settings.MaxPages)
	assert.Equal(t, "platform", updated.Metadata["team"])
	assert.Equal(t, "docs-team", updated.Metadata["owner"])
	assert.NotNil(t, updated.LastOperationAt)

	require.NoError(t, svc.Delete("api-docs"))
	_, err = svc.Get("api-docs")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testShardFollowsProject(t *testing.T) {
	store, svc, dataDir := setupService(t)
	mustCreate(t, svc, project.CreateParams{Name: "notes", Type: "storage"})

	// The shard file appears on first write.
	shardPath := filepath.Join(dataDir, sqlite.ShardDirName, "notes.db")
	_, err := os.Stat(shardPath)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.AppendCrawlSession("notes", &types.CrawlSession{
		PagesTotal: 3,
		Status:     types.SessionCompleted,
	}))
	_, err = os.Stat(shardPath)
	assert.NoError(t, err)

	n, err := store.SessionCount("notes")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Deleting the project removes its shard file.
	require.NoError(t, svc.Delete("notes"))
	_, err = os.Stat(shardPath)
	assert.True(t, os.IsNotExist(err))
}

func testExportSnapshot(t *testing.T) {
	_, svc, _ := setupService(t)
	mustCreate(t, svc, project.CreateParams{
		Name:     "kb",
		Type:     "data",
		Settings: map[string]any{"chunk_size": float64(2048)},
	})

	snap, err := svc.Export("kb")
	require.NoError(t, err)
	assert.Equal(t, "kb", snap.Name)
	assert.Equal(t, "data", snap.Type)
	assert.Equal(t, schema.CurrentVersion, snap.SchemaVersion)
	assert.Contains(t, string(snap.Settings), "2048")
	assert.False(t, snap.ExportedAt.IsZero())
}

func testCheckRecordsValidation(t *testing.T) {
	_, svc, _ := setupService(t)
	mustCreate(t, svc, project.CreateParams{Name: "healthy", Type: "storage"})

	report, err := svc.CheckCompatibility("healthy", "check")
	require.NoError(t, err)
	assert.True(t, report.IsCompatible)
	assert.Empty(t, report.Issues)

	// Every check leaves a sealed validation record behind.
	records, err := svc.History("healthy", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.OpValidation, records[0].Operation)
	assert.True(t, records[0].Sealed())
	assert.True(t, records[0].Success)
	assert.Equal(t, "check", records[0].InitiatedByCommand)
}

func testDefaultProjectProtected(t *testing.T) {
	_, svc, _ := setupService(t)

	err := svc.Delete(sqlite.DefaultProjectName)
	assert.ErrorIs(t, err, types.ErrProtected)
}
