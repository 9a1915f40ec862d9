package types

// Compatibility states derived from a record's schema generation stamp.
const (
	Compatible   CompatibilityStatus = "compatible"
	Incompatible CompatibilityStatus = "incompatible"
	Migrating    CompatibilityStatus = "migrating"
)

// CompatibilityStatus is the three-valued read/write permission state of a
// project record. It is derived, not independently authoritative: only
// "migrating" is stored directly, and only while a recreation is in flight.
type CompatibilityStatus string

// CompatibilityFromVersions derives the status from a record's stamped
// generation and the current generation. Only exact equality is compatible;
// both lower and higher stamps map to incompatible. An implausibly high
// stamp is unsafe, not a distinct "future" state.
func CompatibilityFromVersions(stamped, current int) CompatibilityStatus {
	if stamped == current {
		return Compatible
	}
	return Incompatible
}

// AllowsModification reports whether write operations are permitted.
// True only for "compatible"; "migrating" permits neither reads-for-write
// nor modification.
func (s CompatibilityStatus) AllowsModification() bool {
	return s == Compatible
}

// NeedsRecreation reports whether the record must be rebuilt under the
// current generation. True only for "incompatible".
func (s CompatibilityStatus) NeedsRecreation() bool {
	return s == Incompatible
}
