package schema

import (
	"encoding/json"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// RawRow is a stored registry row before materialization: column name to
// value, as scanned from whatever table layout the file actually has.
type RawRow map[string]any

// has reports whether the row carries a non-nil value for the column.
func (r RawRow) has(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}

// ShapeDetector matches a raw column set against one legacy generation.
// Detectors are pure functions from column set to a matched generation;
// they are tried in order and the first match wins.
type ShapeDetector struct {
	Name    string
	Version int
	Matches func(row RawRow) bool
}

// legacyShapes lists the known legacy layouts, oldest first.
var legacyShapes = []ShapeDetector{
	{
		Name:    "crawler",
		Version: 1,
		Matches: func(row RawRow) bool {
			return (row.has("crawl_depth") || row.has("last_crawled_at") || row.has("page_count")) &&
				!row.has("project_type") && !row.has("schema_version")
		},
	},
	{
		Name:    "typed-settings",
		Version: 2,
		Matches: func(row RawRow) bool {
			return row.has("project_type") && row.has("settings") && !row.has("schema_version")
		},
	},
}

// LegacyShapes returns the ordered legacy shape detectors.
func LegacyShapes() []ShapeDetector {
	out := make([]ShapeDetector, len(legacyShapes))
	copy(out, legacyShapes)
	return out
}

// DetectGeneration returns the schema generation a raw row was written
// under: the stamped schema_version when present, otherwise the first
// matching legacy shape. Returns 0 when no shape matches and no stamp
// exists.
func DetectGeneration(row RawRow) int {
	if v, ok := rowInt(row["schema_version"]); ok && v > 0 {
		return v
	}
	for _, d := range legacyShapes {
		if d.Matches(row) {
			return d.Version
		}
	}
	return 0
}

// CheckRow inspects a raw stored row, before materialization, and produces
// a compatibility report. The detected generation selects legacy-shape
// expectations before the row is checked against the current generation's
// field set.
func (c *Checker) CheckRow(row RawRow) (report *Report) {
	report = &Report{
		CurrentVersion: CurrentVersion,
		Status:         types.Incompatible,
	}
	defer func() {
		if rec := recover(); rec != nil {
			report.addIssue("internal check failure: %v", rec)
			report.IsCompatible = false
			report.Status = types.Incompatible
			report.CanBeMigrated = false
		}
	}()

	if len(row) == 0 {
		report.addIssue("no row to check")
		return report
	}

	gen := DetectGeneration(row)
	report.ProjectVersion = gen
	if gen == 0 {
		report.addIssue("row matches no known schema generation")
	}

	versionMatches := c.checkVersion(report, gen)
	c.checkLegacyShape(report, row, gen)
	c.checkRowFields(report, row)
	c.checkRowIntegrity(report, row)

	migrating := false
	if s, ok := row["compatibility_status"].(string); ok {
		migrating = types.CompatibilityStatus(s) == types.Migrating
	}
	c.finalize(report, versionMatches, migrating)
	return report
}

// checkLegacyShape verifies that a row detected as a legacy generation
// actually carries that generation's expected columns.
func (c *Checker) checkLegacyShape(r *Report, row RawRow, gen int) {
	switch gen {
	case 1:
		if !row.has("name") {
			r.addIssue("crawler-generation row lacks a name")
		}
		if !row.has("source_url") {
			r.addIssue("crawler-generation row lacks a source URL")
		}
	case 2:
		if !row.has("name") {
			r.addIssue("typed-settings row lacks a name")
		}
		if s, ok := row["project_type"].(string); ok {
			if _, err := types.ParseProjectType(s); err != nil {
				r.addIssue("typed-settings row has unknown project type %q", s)
			}
		}
	}
}

// checkRowFields compares the row's column set against the current
// generation's required and optional fields.
func (c *Checker) checkRowFields(r *Report, row RawRow) {
	present := make(map[string]bool, len(row))
	for col := range row {
		present[col] = row.has(col)
	}
	c.compareFieldSets(r, present)
}

// checkRowIntegrity validates timestamp ordering and the statistics blob on
// whatever columns the row actually has.
func (c *Checker) checkRowIntegrity(r *Report, row RawRow) {
	created, haveCreated := parseRowTime(row["created_at"])
	if updated, ok := parseRowTime(row["updated_at"]); ok && haveCreated && updated.Before(created) {
		r.addIssue("updated_at precedes created_at")
	}
	if lastOp, ok := parseRowTime(row["last_operation_at"]); ok && haveCreated && lastOp.Before(created) {
		r.addIssue("last_operation_at precedes created_at")
	}

	blob, ok := row["statistics"].(string)
	if !ok || blob == "" {
		return
	}
	stats := make(map[string]any)
	if err := json.Unmarshal([]byte(blob), &stats); err != nil {
		r.addIssue("statistics blob is not valid JSON: %v", err)
		return
	}
	counter := func(key string) (int, bool) {
		v, present := stats[key]
		if !present {
			return 0, false
		}
		n, ok := rowInt(v)
		if !ok {
			r.addIssue("statistics field %q is not an integral count", key)
		}
		return n, ok
	}
	total, okTotal := counter("pages_total")
	successful, okSuccess := counter("pages_successful")
	failed, okFailed := counter("pages_failed")
	if okTotal && okSuccess && okFailed && successful+failed > total {
		r.addIssue("inconsistent statistics: successful + failed exceeds total")
	}
}

// rowInt coerces a scanned column or decoded JSON value to an int.
func rowInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
