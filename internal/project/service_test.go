package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/internal/sqlite"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

func newTestService(t *testing.T) (*sqlite.Store, *Service) {
	t.Helper()
	store, err := sqlite.Open(types.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, NewService(store)
}

// saveLegacyProject stores a record stamped with an old schema generation,
// the way the structural migration leaves carried-over rows.
func saveLegacyProject(t *testing.T, store *sqlite.Store, name string) *types.Project {
	t.Helper()
	settings, err := types.NewSettings(types.TypeCrawling)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	p := &types.Project{
		Name:          name,
		Type:          types.TypeCrawling,
		Status:        types.StatusActive,
		SchemaVersion: 1,
		Compatibility: types.Incompatible,
		SourceURL:     "https://docs.example.com",
		Settings:      settings,
		Metadata:      map[string]any{"team": "docs"},
		CreatedAt:     now.Add(-time.Hour),
		UpdatedAt:     now,
	}
	require.NoError(t, store.SaveProject(p))
	return p
}

func TestCreateProject(t *testing.T) {
	_, svc := newTestService(t)

	p, err := svc.Create(CreateParams{
		Name:      "api-docs",
		Type:      "crawling",
		SourceURL: "https://docs.example.com",
		Settings:  map[string]any{"crawl_depth": float64(4)},
		Metadata:  map[string]any{"team": "platform"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ProjectID)
	assert.Equal(t, schema.CurrentVersion, p.SchemaVersion)
	assert.Equal(t, types.Compatible, p.Compatibility)
	assert.Equal(t, types.StatusActive, p.Status)
	assert.Equal(t, 4, p.Settings.(*types.CrawlingSettings).CrawlDepth)
}

func TestCreateProjectRejectsBadInput(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{Name: "bad name", Type: "data"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Create(CreateParams{Name: "ok", Type: "web"})
	assert.ErrorIs(t, err, types.ErrInvalidType)

	// Crawling projects need a source URL.
	_, err = svc.Create(CreateParams{Name: "crawl", Type: "crawling"})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestCreateProjectDuplicateName(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{Name: "api-docs", Type: "data"})
	require.NoError(t, err)

	_, err = svc.Create(CreateParams{Name: "api-docs", Type: "storage"})
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}

func TestGetByIDOrName(t *testing.T) {
	_, svc := newTestService(t)

	created, err := svc.Create(CreateParams{Name: "api-docs", Type: "data"})
	require.NoError(t, err)

	byID, err := svc.Get(created.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "api-docs", byID.Name)

	byName, err := svc.Get("api-docs")
	require.NoError(t, err)
	assert.Equal(t, created.ProjectID, byName.ProjectID)

	_, err = svc.Get("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{Name: "a", Type: "data"})
	require.NoError(t, err)
	_, err = svc.Create(CreateParams{Name: "b", Type: "storage"})
	require.NoError(t, err)

	projects, err := svc.List(ListFilter{Type: "data"})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "a", projects[0].Name)

	_, err = svc.List(ListFilter{Status: "paused"})
	assert.ErrorIs(t, err, types.ErrInvalidStatus)
}

func TestUpdateMergesSettings(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{
		Name:     "notes",
		Type:     "data",
		Settings: map[string]any{"chunk_size": float64(1024), "custom_filter": "md"},
	})
	require.NoError(t, err)

	updated, err := svc.Update("notes", UpdateParams{
		Settings: map[string]any{"chunk_overlap": float64(128)},
		Metadata: map[string]any{"owner": "docs-team"},
	})
	require.NoError(t, err)

	settings := updated.Settings.(*types.DataSettings)
	// Only the named keys change; everything else carries over.
	assert.Equal(t, 1024, settings.ChunkSize)
	assert.Equal(t, 128, settings.ChunkOverlap)
	assert.Equal(t, "md", settings.Extra["custom_filter"])
	assert.Equal(t, "docs-team", updated.Metadata["owner"])
	require.NotNil(t, updated.LastOperationAt)
}

func TestUpdateIncompatibleProjectRefused(t *testing.T) {
	store, svc := newTestService(t)
	saveLegacyProject(t, store, "old-crawl")

	_, err := svc.Update("old-crawl", UpdateParams{
		Metadata: map[string]any{"owner": "nobody"},
	})
	require.ErrorIs(t, err, types.ErrIncompatible)
	// The error names the recreation command.
	assert.Contains(t, err.Error(), "docshelf recreate old-crawl")

	// Nothing was written.
	loaded, err := svc.Get("old-crawl")
	require.NoError(t, err)
	assert.NotContains(t, loaded.Metadata, "owner")
	assert.Equal(t, 1, loaded.SchemaVersion)
}

func TestUpdateVersionCurrentButInvalid(t *testing.T) {
	store, svc := newTestService(t)

	p, err := svc.Create(CreateParams{Name: "api-docs", Type: "data"})
	require.NoError(t, err)
	p.Statistics = types.Statistics{PagesTotal: 5, PagesSuccessful: 5, PagesFailed: 5}
	require.NoError(t, store.SaveProject(p))

	_, err = svc.Update("api-docs", UpdateParams{
		Metadata: map[string]any{"owner": "nobody"},
	})
	require.ErrorIs(t, err, types.ErrIncompatible)
	// The message explains the validation failure, not a meaningless
	// version delta, and still names the remedy.
	assert.Contains(t, err.Error(), "failed validation")
	assert.Contains(t, err.Error(), "statistics")
	assert.Contains(t, err.Error(), "docshelf recreate api-docs")
}

func TestUpdateRejectsInvalidSettings(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{Name: "notes", Type: "data"})
	require.NoError(t, err)

	_, err = svc.Update("notes", UpdateParams{
		Settings: map[string]any{"chunk_size": "huge"},
	})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDeleteProject(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{Name: "doomed", Type: "data"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete("doomed"))
	_, err = svc.Get("doomed")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteProtectedProject(t *testing.T) {
	_, svc := newTestService(t)

	err := svc.Delete(sqlite.DefaultProjectName)
	assert.ErrorIs(t, err, types.ErrProtected)
}

func TestCheckCompatibilityRecordsValidation(t *testing.T) {
	store, svc := newTestService(t)
	legacy := saveLegacyProject(t, store, "old-crawl")

	report, err := svc.CheckCompatibility("old-crawl", "check")
	require.NoError(t, err)
	assert.False(t, report.IsCompatible)
	assert.Equal(t, 1, report.ProjectVersion)
	assert.True(t, report.NeedsRecreation())

	// The check left a sealed validation record in the audit trail.
	records, err := svc.History("old-crawl", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.OpValidation, records[0].Operation)
	assert.Equal(t, legacy.ProjectID, records[0].ProjectID)
	assert.True(t, records[0].Sealed())
	assert.False(t, records[0].Success)
	assert.NotEmpty(t, records[0].ErrorMessage)
}

func TestCheckCompatibilityCompatible(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{Name: "fresh", Type: "data"})
	require.NoError(t, err)

	report, err := svc.CheckCompatibility("fresh", "check")
	require.NoError(t, err)
	assert.True(t, report.IsCompatible)

	records, err := svc.History("fresh", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Empty(t, records[0].ErrorMessage)
}

func TestExportSnapshot(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(CreateParams{
		Name:     "notes",
		Type:     "data",
		Settings: map[string]any{"chunk_size": float64(1024)},
		Metadata: map[string]any{"team": "docs"},
	})
	require.NoError(t, err)

	snapshot, err := svc.Export("notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", snapshot.Name)
	assert.Equal(t, "data", snapshot.Type)
	assert.Equal(t, schema.CurrentVersion, snapshot.SchemaVersion)
	assert.Contains(t, string(snapshot.Settings), "1024")
	assert.Equal(t, "docs", snapshot.Metadata["team"])
	assert.False(t, snapshot.ExportedAt.IsZero())
}

func TestStuckRecords(t *testing.T) {
	store, svc := newTestService(t)

	rec := &types.MigrationRecord{
		ProjectID:       "p1",
		ProjectName:     "interrupted",
		Operation:       types.OpRecreation,
		ToSchemaVersion: schema.CurrentVersion,
		StartedAt:       time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, store.OpenMigrationRecord(rec))

	stuck, err := svc.StuckRecords(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "interrupted", stuck[0].ProjectName)
}
