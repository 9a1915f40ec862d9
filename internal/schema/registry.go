// Package schema holds the static catalogue of schema generations and the
// compatibility checker that classifies stored records against the current
// generation. Everything in this package is pure and safe for
// unsynchronized concurrent reads.
package schema

// CurrentVersion is the schema generation this build reads and writes.
const CurrentVersion = 3

// Descriptor documents one schema generation: its version number and the
// field deltas relative to the previous generation. Descriptors are
// immutable documentation-level metadata used to build compatibility
// diagnostics and the ordered migration path.
type Descriptor struct {
	Version       int
	Name          string
	Description   string
	FieldsAdded   []string
	FieldsRemoved []string
	FieldsChanged []string
}

// history lists every generation in ascending version order, no gaps.
var history = []Descriptor{
	{
		Version:     1,
		Name:        "crawler",
		Description: "Crawler-era flat layout: one table of crawl targets with no type discriminator and no version stamp.",
		FieldsAdded: []string{
			"project_id", "name", "source_url", "crawl_depth",
			"page_count", "last_crawled_at", "created_at",
		},
	},
	{
		Version:     2,
		Name:        "typed-settings",
		Description: "Introduces the project type discriminator and JSON-encoded settings and metadata columns.",
		FieldsAdded: []string{"project_type", "settings", "metadata", "updated_at"},
		FieldsRemoved: []string{
			"crawl_depth", "page_count", "last_crawled_at",
		},
	},
	{
		Version:     3,
		Name:        "unified-registry",
		Description: "Unified registry layout: schema_version stamp, statistics blob, lifecycle status, grouping, and the migration audit trail.",
		FieldsAdded: []string{
			"schema_version", "statistics", "status", "group_id",
			"protected", "last_operation_at",
		},
		FieldsChanged: []string{"settings", "metadata"},
	},
}

// requiredFields lists the record fields the current generation requires.
var requiredFields = []string{
	"project_id",
	"name",
	"project_type",
	"status",
	"schema_version",
	"settings",
	"statistics",
	"metadata",
	"created_at",
	"updated_at",
}

// optionalFields lists record fields the current generation knows but does
// not require on every record.
var optionalFields = []string{
	"group_id",
	"source_url",
	"protected",
	"compatibility_status",
	"last_operation_at",
}

// History returns all generation descriptors in ascending version order.
func History() []Descriptor {
	out := make([]Descriptor, len(history))
	copy(out, history)
	return out
}

// Describe returns the descriptor for a generation.
func Describe(version int) (Descriptor, bool) {
	for _, d := range history {
		if d.Version == version {
			return d, true
		}
	}
	return Descriptor{}, false
}

// IsCurrent reports whether version is the current generation.
func IsCurrent(version int) bool {
	return version == CurrentVersion
}

// RequiresRecreation reports whether a record stamped with version must be
// rebuilt before it can be modified. Any stamp other than the current
// generation requires recreation.
func RequiresRecreation(version int) bool {
	return version != CurrentVersion
}

// CanAutoMigrate reports whether a record stamped with version can be
// upgraded field-by-field without recreation. Always false: recreation is
// the only upgrade path, so a partial transform can never silently lose
// data. Kept as an extension point for the checker's report.
func CanAutoMigrate(version int) bool {
	return false
}

// RequiredFields returns the field set the current generation requires.
func RequiredFields() []string {
	out := make([]string, len(requiredFields))
	copy(out, requiredFields)
	return out
}

// OptionalFields returns the current generation's optional field set.
func OptionalFields() []string {
	out := make([]string, len(optionalFields))
	copy(out, optionalFields)
	return out
}
