package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// crawlerRow is the flat layout written before type discriminators or
// version stamps existed.
func crawlerRow() RawRow {
	return RawRow{
		"project_id":      "p1",
		"name":            "legacy-crawl",
		"source_url":      "https://docs.example.com",
		"crawl_depth":     int64(3),
		"page_count":      int64(120),
		"last_crawled_at": "2024-03-01 10:00:00",
		"created_at":      "2024-01-15 09:00:00",
	}
}

func typedRow() RawRow {
	return RawRow{
		"project_id":   "p2",
		"name":         "typed",
		"project_type": "data",
		"settings":     `{"chunk_size": 512}`,
		"metadata":     `{}`,
		"created_at":   "2024-06-01 09:00:00",
		"updated_at":   "2024-06-02 09:00:00",
	}
}

func unifiedRow() RawRow {
	return RawRow{
		"project_id":     "p3",
		"group_id":       "g1",
		"name":           "current",
		"project_type":   "storage",
		"status":         "active",
		"schema_version": int64(CurrentVersion),
		"settings":       `{"compression": true, "retain_revisions": 3}`,
		"statistics":     `{"pages_total": 10, "pages_successful": 9, "pages_failed": 1}`,
		"metadata":       `{}`,
		"created_at":     "2025-01-01T09:00:00Z",
		"updated_at":     "2025-01-02T09:00:00Z",
	}
}

func TestDetectGeneration(t *testing.T) {
	tests := []struct {
		name string
		row  RawRow
		want int
	}{
		{"crawler shape", crawlerRow(), 1},
		{"typed-settings shape", typedRow(), 2},
		{"stamped row uses the stamp", unifiedRow(), CurrentVersion},
		{"unrecognizable row", RawRow{"id": "x", "payload": "y"}, 0},
		{"empty row", RawRow{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectGeneration(tt.row))
		})
	}
}

func TestDetectGenerationStampWins(t *testing.T) {
	// A stamped row keeps its stamp even when legacy columns linger.
	row := crawlerRow()
	row["schema_version"] = int64(2)
	assert.Equal(t, 2, DetectGeneration(row))
}

func TestCheckRowCrawlerGeneration(t *testing.T) {
	report := NewChecker().CheckRow(crawlerRow())

	assert.False(t, report.IsCompatible)
	assert.Equal(t, types.Incompatible, report.Status)
	assert.Equal(t, 1, report.ProjectVersion)
	assert.True(t, report.MigrationRequired)
	assert.False(t, report.CanBeMigrated)
	assert.True(t, report.NeedsRecreation())

	// The current generation's discriminator and stamp are reported missing.
	assert.Contains(t, report.MissingFields, "project_type")
	assert.Contains(t, report.MissingFields, "schema_version")
	assert.Contains(t, report.MissingFields, "status")
	assert.Contains(t, report.MissingFields, "statistics")
}

func TestCheckRowCurrentGeneration(t *testing.T) {
	report := NewChecker().CheckRow(unifiedRow())

	assert.True(t, report.IsCompatible)
	assert.Equal(t, types.Compatible, report.Status)
	assert.Empty(t, report.MissingFields)
	assert.Empty(t, report.Issues)
}

func TestCheckRowBadStatisticsBlob(t *testing.T) {
	row := unifiedRow()
	row["statistics"] = `{"pages_total": 5, "pages_successful": 4, "pages_failed": 3}`

	report := NewChecker().CheckRow(row)

	assert.False(t, report.IsCompatible)
	assert.NotEmpty(t, report.Issues)
}

func TestCheckRowFractionalStatistics(t *testing.T) {
	row := unifiedRow()
	row["statistics"] = `{"pages_total": 10.5, "pages_successful": 9, "pages_failed": 1}`

	report := NewChecker().CheckRow(row)

	assert.False(t, report.IsCompatible)
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "not an integral count") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckRowMigratingMarker(t *testing.T) {
	row := unifiedRow()
	row["compatibility_status"] = "migrating"

	report := NewChecker().CheckRow(row)

	assert.Equal(t, types.Migrating, report.Status)
	assert.False(t, report.IsCompatible)
}

func TestCheckRowEmpty(t *testing.T) {
	report := NewChecker().CheckRow(RawRow{})

	assert.False(t, report.IsCompatible)
	assert.NotEmpty(t, report.Issues)
}

func TestCheckRowUnknownTypedType(t *testing.T) {
	row := typedRow()
	row["project_type"] = "web"

	report := NewChecker().CheckRow(row)

	assert.False(t, report.IsCompatible)
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "unknown project type") {
			found = true
		}
	}
	assert.True(t, found, "expected an unknown-project-type issue, got %v", report.Issues)
}
