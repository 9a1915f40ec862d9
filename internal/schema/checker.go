package schema

import (
	"fmt"
	"sort"
	"time"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// Report is the structured verdict of a compatibility check. All checks run
// without short-circuiting so the report is maximally informative.
type Report struct {
	IsCompatible   bool
	Status         types.CompatibilityStatus
	CurrentVersion int
	ProjectVersion int

	// MissingFields lists required fields of the current generation that
	// the record lacks. ExtraFields lists present-but-unexpected fields;
	// extras are informational and never block.
	MissingFields []string
	ExtraFields   []string

	// Issues is the ordered list of human-readable problems found.
	Issues []string

	CanBeMigrated     bool
	MigrationRequired bool
}

// NeedsRecreation reports whether the record must be rebuilt under the
// current generation: it is not compatible and no automatic migration is
// available.
func (r *Report) NeedsRecreation() bool {
	return !r.IsCompatible && !r.CanBeMigrated
}

// addIssue appends a formatted issue to the report.
func (r *Report) addIssue(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

// Checker classifies project records against the current schema generation.
// A Checker is stateless and freely shared across goroutines. Checking
// never fails past its own boundary: internal panics become synthetic
// issues and a conservative incompatible verdict, because callers use the
// report to gate read access and must always be able to render something.
type Checker struct{}

// NewChecker returns a Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// CheckProject inspects a materialized project record and produces a
// compatibility report.
func (c *Checker) CheckProject(p *types.Project) (report *Report) {
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

	if p == nil {
		report.addIssue("no record to check")
		return report
	}
	report.ProjectVersion = p.SchemaVersion

	versionMatches := c.checkVersion(report, p.SchemaVersion)
	c.checkProjectFields(report, p)
	c.checkIntegrity(report, p)
	c.checkSettings(report, p)

	c.finalize(report, versionMatches, p.Compatibility == types.Migrating)
	return report
}

// checkVersion compares the stamped generation to the current one and
// reports whether they match exactly. A lower stamp requires migration; a
// higher stamp is treated as unsafe with no migration offered, since no
// smaller structural target exists.
func (c *Checker) checkVersion(r *Report, stamped int) bool {
	switch {
	case stamped == CurrentVersion:
		return true
	case stamped < CurrentVersion:
		r.addIssue("schema version %d is older than current version %d", stamped, CurrentVersion)
		r.MigrationRequired = true
	default:
		r.addIssue("schema version %d is newer than current version %d", stamped, CurrentVersion)
	}
	r.CanBeMigrated = CanAutoMigrate(stamped)
	return false
}

// checkProjectFields compares the record's present field set against the
// current generation's required set. Present-but-unexpected keys can only
// arrive through the settings Extra map on a materialized record.
func (c *Checker) checkProjectFields(r *Report, p *types.Project) {
	present := map[string]bool{
		"project_id":        p.ProjectID != "",
		"name":              p.Name != "",
		"project_type":      p.Type != "",
		"status":            p.Status != "",
		"schema_version":    p.SchemaVersion > 0,
		"settings":          p.Settings != nil,
		"statistics":        true,
		"metadata":          p.Metadata != nil,
		"created_at":        !p.CreatedAt.IsZero(),
		"updated_at":        !p.UpdatedAt.IsZero(),
		"group_id":          p.GroupID != "",
		"source_url":        p.SourceURL != "",
		"last_operation_at": p.LastOperationAt != nil,
	}
	c.compareFieldSets(r, present)
}

// compareFieldSets fills MissingFields and ExtraFields from a presence map.
func (c *Checker) compareFieldSets(r *Report, present map[string]bool) {
	known := make(map[string]bool)
	for _, f := range requiredFields {
		known[f] = true
		if !present[f] {
			r.MissingFields = append(r.MissingFields, f)
			r.addIssue("missing required field %q", f)
		}
	}
	for _, f := range optionalFields {
		known[f] = true
	}
	for f, ok := range present {
		if ok && !known[f] {
			r.ExtraFields = append(r.ExtraFields, f)
		}
	}
	sort.Strings(r.MissingFields)
	sort.Strings(r.ExtraFields)
}

// checkIntegrity validates timestamp ordering and statistics consistency.
func (c *Checker) checkIntegrity(r *Report, p *types.Project) {
	if !p.CreatedAt.IsZero() && !p.UpdatedAt.IsZero() && p.UpdatedAt.Before(p.CreatedAt) {
		r.addIssue("updated_at precedes created_at")
	}
	if p.LastOperationAt != nil && !p.CreatedAt.IsZero() && p.LastOperationAt.Before(p.CreatedAt) {
		r.addIssue("last_operation_at precedes created_at")
	}
	if err := p.Statistics.Validate(); err != nil {
		r.addIssue("inconsistent statistics: %v", err)
	}
}

// checkSettings runs the type-specific required-settings and value-range
// validation.
func (c *Checker) checkSettings(r *Report, p *types.Project) {
	if p.Type == types.TypeCrawling && p.SourceURL == "" {
		r.addIssue("crawling projects require a source URL")
	}
	if p.Settings == nil {
		return
	}
	if p.Type != "" && p.Settings.Type() != p.Type {
		r.addIssue("settings variant %q does not match project type %q", p.Settings.Type(), p.Type)
		return
	}
	if err := p.Settings.Validate(); err != nil {
		r.addIssue("invalid settings: %v", err)
	}
}

// finalize computes the overall verdict: compatible iff the version matched
// exactly and no issues accumulated. A record mid-recreation is always
// reported as migrating, which permits neither modification nor recreation.
func (c *Checker) finalize(r *Report, versionMatches, migrating bool) {
	r.IsCompatible = versionMatches && len(r.Issues) == 0
	switch {
	case migrating:
		r.Status = types.Migrating
		r.IsCompatible = false
	case r.IsCompatible:
		r.Status = types.Compatible
	default:
		r.Status = types.Incompatible
	}
}

// parseRowTime parses a stored timestamp column leniently.
func parseRowTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
