package sqlite

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

func testRecord(projectID, name string) *types.MigrationRecord {
	return &types.MigrationRecord{
		ProjectID:          projectID,
		ProjectName:        name,
		Operation:          types.OpRecreation,
		FromSchemaVersion:  1,
		ToSchemaVersion:    3,
		PreservedSettings:  json.RawMessage(`{"crawl_depth": 3}`),
		PreservedMetadata:  json.RawMessage(`{"team": "docs"}`),
		DataSizeBytes:      4096,
		InitiatedByCommand: "recreate",
	}
}

func TestOpenAndFindMigrationRecord(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("p1", "api-docs")
	require.NoError(t, store.OpenMigrationRecord(rec))
	assert.NotEmpty(t, rec.MigrationID)
	assert.False(t, rec.StartedAt.IsZero())

	loaded, err := store.FindMigrationRecord(rec.MigrationID)
	require.NoError(t, err)
	assert.Equal(t, "api-docs", loaded.ProjectName)
	assert.Equal(t, types.OpRecreation, loaded.Operation)
	assert.Equal(t, 1, loaded.FromSchemaVersion)
	assert.Equal(t, 3, loaded.ToSchemaVersion)
	assert.False(t, loaded.Sealed())
	assert.JSONEq(t, `{"crawl_depth": 3}`, string(loaded.PreservedSettings))
	assert.EqualValues(t, 4096, loaded.DataSizeBytes)
}

func TestOpenMigrationRecordValidates(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("p1", "api-docs")
	rec.Operation = "rollback"
	assert.ErrorIs(t, store.OpenMigrationRecord(rec), types.ErrInvalidOperation)
}

func TestSealMigrationRecord(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("p1", "api-docs")
	require.NoError(t, store.OpenMigrationRecord(rec))

	rec.Seal(true, "", time.Now().UTC())
	require.NoError(t, store.SealMigrationRecord(rec))

	loaded, err := store.FindMigrationRecord(rec.MigrationID)
	require.NoError(t, err)
	assert.True(t, loaded.Sealed())
	assert.True(t, loaded.Success)
}

func TestSealMigrationRecordExactlyOnce(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("p1", "api-docs")
	require.NoError(t, store.OpenMigrationRecord(rec))

	rec.Seal(false, "shard reset failed", time.Now().UTC())
	require.NoError(t, store.SealMigrationRecord(rec))

	// A duplicate completion call cannot overwrite the stored outcome.
	dup := *rec
	dup.Success = true
	dup.ErrorMessage = ""
	later := rec.CompletedAt.Add(time.Minute)
	dup.CompletedAt = &later
	require.NoError(t, store.SealMigrationRecord(&dup))

	loaded, err := store.FindMigrationRecord(rec.MigrationID)
	require.NoError(t, err)
	assert.False(t, loaded.Success)
	assert.Equal(t, "shard reset failed", loaded.ErrorMessage)
}

func TestSealRequiresCompletedRecord(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("p1", "api-docs")
	require.NoError(t, store.OpenMigrationRecord(rec))

	assert.ErrorIs(t, store.SealMigrationRecord(rec), types.ErrValidation)
}

func TestListMigrationRecords(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, project := range []string{"p1", "p2", "p1"} {
		rec := testRecord(project, project+"-docs")
		rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.OpenMigrationRecord(rec))
	}

	t.Run("newest first across projects", func(t *testing.T) {
		records, err := store.ListMigrationRecords("", 0)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.True(t, !records[0].StartedAt.Before(records[1].StartedAt))
	})

	t.Run("filters by project", func(t *testing.T) {
		records, err := store.ListMigrationRecords("p1", 0)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("applies limit", func(t *testing.T) {
		records, err := store.ListMigrationRecords("", 1)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestStuckMigrationRecords(t *testing.T) {
	store := newTestStore(t)

	old := testRecord("p1", "stuck-docs")
	old.StartedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.OpenMigrationRecord(old))

	fresh := testRecord("p2", "fresh-docs")
	require.NoError(t, store.OpenMigrationRecord(fresh))

	sealed := testRecord("p3", "sealed-docs")
	sealed.StartedAt = time.Now().UTC().Add(-3 * time.Hour)
	require.NoError(t, store.OpenMigrationRecord(sealed))
	sealed.Seal(true, "", time.Now().UTC())
	require.NoError(t, store.SealMigrationRecord(sealed))

	stuck, err := store.StuckMigrationRecords(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "stuck-docs", stuck[0].ProjectName)
}
