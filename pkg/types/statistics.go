package types

// Statistics holds operational counters for a project. Counters are
// generation-local state: recreation resets them to zero.
type Statistics struct {
	PagesTotal      int64 `json:"pages_total"`
	PagesSuccessful int64 `json:"pages_successful"`
	PagesFailed     int64 `json:"pages_failed"`
	Sessions        int64 `json:"sessions"`
	BytesStored     int64 `json:"bytes_stored"`
}

// Validate checks counter consistency: no negative counters, and
// successful + failed never exceeds total.
func (s Statistics) Validate() error {
	if s.PagesTotal < 0 || s.PagesSuccessful < 0 || s.PagesFailed < 0 || s.Sessions < 0 || s.BytesStored < 0 {
		return &ValidationError{Field: "statistics", Reason: "counters must not be negative"}
	}
	if s.PagesSuccessful+s.PagesFailed > s.PagesTotal {
		return &ValidationError{Field: "statistics", Reason: "successful + failed exceeds total"}
	}
	return nil
}

// IsZero reports whether all counters are zero.
func (s Statistics) IsZero() bool {
	return s == Statistics{}
}
