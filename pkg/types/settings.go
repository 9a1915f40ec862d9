package types

import (
	"encoding/json"
	"fmt"
)

// Settings is the type-specific configuration of a project. Each project
// type has one concrete variant. Unknown keys written by other generations
// are preserved verbatim in the variant's Extra map so configuration
// survives round-trips and recreation without loss.
type Settings interface {
	// Type returns the project type this variant belongs to.
	Type() ProjectType

	// Validate checks value ranges and required fields.
	Validate() error

	// ApplyDefaults fills unset fields with their default values.
	ApplyDefaults()

	// Clone returns a deep copy.
	Clone() Settings
}

// Default settings values.
const (
	DefaultCrawlDepth      = 2
	DefaultMaxPages        = 1000
	DefaultUserAgent       = "docshelf/1.0"
	DefaultChunkSize       = 512
	DefaultChunkOverlap    = 64
	DefaultEmbeddingModel  = "nomic-embed-text"
	DefaultRetainRevisions = 3
)

// Upper bounds for numeric settings.
const (
	MaxCrawlDepth      = 10
	MaxPagesLimit      = 100000
	MaxChunkSize       = 8192
	MaxRetainRevisions = 100
)

// CrawlingSettings configures a crawling-type project.
type CrawlingSettings struct {
	CrawlDepth     int
	MaxPages       int
	UserAgent      string
	FollowExternal bool

	// Extra holds unrecognized keys, preserved verbatim.
	Extra map[string]any
}

// Type implements Settings.
func (s *CrawlingSettings) Type() ProjectType { return TypeCrawling }

// Validate implements Settings.
func (s *CrawlingSettings) Validate() error {
	if s.CrawlDepth < 1 || s.CrawlDepth > MaxCrawlDepth {
		return &ValidationError{Field: "crawl_depth", Reason: fmt.Sprintf("must be between 1 and %d", MaxCrawlDepth)}
	}
	if s.MaxPages < 1 || s.MaxPages > MaxPagesLimit {
		return &ValidationError{Field: "max_pages", Reason: fmt.Sprintf("must be between 1 and %d", MaxPagesLimit)}
	}
	if s.UserAgent == "" {
		return &ValidationError{Field: "user_agent", Reason: "must not be empty"}
	}
	return nil
}

// ApplyDefaults implements Settings.
func (s *CrawlingSettings) ApplyDefaults() {
	if s.CrawlDepth == 0 {
		s.CrawlDepth = DefaultCrawlDepth
	}
	if s.MaxPages == 0 {
		s.MaxPages = DefaultMaxPages
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
}

// Clone implements Settings.
func (s *CrawlingSettings) Clone() Settings {
	out := *s
	out.Extra = cloneMap(s.Extra)
	return &out
}

// MarshalJSON merges named fields over Extra into one flat object.
func (s *CrawlingSettings) MarshalJSON() ([]byte, error) {
	m := cloneMap(s.Extra)
	if m == nil {
		m = make(map[string]any)
	}
	m["crawl_depth"] = s.CrawlDepth
	m["max_pages"] = s.MaxPages
	m["user_agent"] = s.UserAgent
	m["follow_external"] = s.FollowExternal
	return json.Marshal(m)
}

// UnmarshalJSON splits the flat object into named fields and Extra.
func (s *CrawlingSettings) UnmarshalJSON(data []byte) error {
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := crawlingFromMap(m)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// DataSettings configures a data-type (import/chunking) project.
type DataSettings struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string

	// Extra holds unrecognized keys, preserved verbatim.
	Extra map[string]any
}

// Type implements Settings.
func (s *DataSettings) Type() ProjectType { return TypeData }

// Validate implements Settings.
func (s *DataSettings) Validate() error {
	if s.ChunkSize < 1 || s.ChunkSize > MaxChunkSize {
		return &ValidationError{Field: "chunk_size", Reason: fmt.Sprintf("must be between 1 and %d", MaxChunkSize)}
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return &ValidationError{Field: "chunk_overlap", Reason: "must be non-negative and smaller than chunk_size"}
	}
	if s.EmbeddingModel == "" {
		return &ValidationError{Field: "embedding_model", Reason: "must not be empty"}
	}
	return nil
}

// ApplyDefaults implements Settings.
func (s *DataSettings) ApplyDefaults() {
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.ChunkOverlap == 0 {
		s.ChunkOverlap = DefaultChunkOverlap
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = DefaultEmbeddingModel
	}
}

// Clone implements Settings.
func (s *DataSettings) Clone() Settings {
	out := *s
	out.Extra = cloneMap(s.Extra)
	return &out
}

// MarshalJSON merges named fields over Extra into one flat object.
func (s *DataSettings) MarshalJSON() ([]byte, error) {
	m := cloneMap(s.Extra)
	if m == nil {
		m = make(map[string]any)
	}
	m["chunk_size"] = s.ChunkSize
	m["chunk_overlap"] = s.ChunkOverlap
	m["embedding_model"] = s.EmbeddingModel
	return json.Marshal(m)
}

// UnmarshalJSON splits the flat object into named fields and Extra.
func (s *DataSettings) UnmarshalJSON(data []byte) error {
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := dataFromMap(m)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// StorageSettings configures a storage-type project.
type StorageSettings struct {
	Compression     bool
	RetainRevisions int

	// Extra holds unrecognized keys, preserved verbatim.
	Extra map[string]any
}

// Type implements Settings.
func (s *StorageSettings) Type() ProjectType { return TypeStorage }

// Validate implements Settings.
func (s *StorageSettings) Validate() error {
	if s.RetainRevisions < 0 || s.RetainRevisions > MaxRetainRevisions {
		return &ValidationError{Field: "retain_revisions", Reason: fmt.Sprintf("must be between 0 and %d", MaxRetainRevisions)}
	}
	return nil
}

// ApplyDefaults implements Settings. Compression defaults to on; decoding
// distinguishes an explicit false from an absent key, so ApplyDefaults is
// only called for brand-new settings.
func (s *StorageSettings) ApplyDefaults() {
	s.Compression = true
	if s.RetainRevisions == 0 {
		s.RetainRevisions = DefaultRetainRevisions
	}
}

// Clone implements Settings.
func (s *StorageSettings) Clone() Settings {
	out := *s
	out.Extra = cloneMap(s.Extra)
	return &out
}

// MarshalJSON merges named fields over Extra into one flat object.
func (s *StorageSettings) MarshalJSON() ([]byte, error) {
	m := cloneMap(s.Extra)
	if m == nil {
		m = make(map[string]any)
	}
	m["compression"] = s.Compression
	m["retain_revisions"] = s.RetainRevisions
	return json.Marshal(m)
}

// UnmarshalJSON splits the flat object into named fields and Extra.
func (s *StorageSettings) UnmarshalJSON(data []byte) error {
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := storageFromMap(m)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// NewSettings returns the default settings variant for a project type.
func NewSettings(t ProjectType) (Settings, error) {
	var s Settings
	switch t {
	case TypeCrawling:
		s = &CrawlingSettings{}
	case TypeData:
		s = &DataSettings{}
	case TypeStorage:
		s = &StorageSettings{Compression: true}
	default:
		return nil, ErrInvalidType
	}
	s.ApplyDefaults()
	return s, nil
}

// DecodeSettings decodes a stored JSON blob into the variant selected by the
// project type. Empty input yields the defaults for the type. Downstream
// code never touches raw maps.
func DecodeSettings(t ProjectType, data []byte) (Settings, error) {
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return NewSettings(t)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return SettingsFromMap(t, m)
}

// SettingsFromMap builds the settings variant for a project type from a raw
// key/value map, typically external input arriving through the CLI or API.
// Wrong-typed known keys fail with a ValidationError; unknown keys are
// preserved in the variant's Extra map.
func SettingsFromMap(t ProjectType, m map[string]any) (Settings, error) {
	if m == nil {
		return NewSettings(t)
	}
	switch t {
	case TypeCrawling:
		return crawlingFromMap(m)
	case TypeData:
		return dataFromMap(m)
	case TypeStorage:
		return storageFromMap(m)
	default:
		return nil, ErrInvalidType
	}
}

// EncodeSettings encodes a settings variant to its stored JSON blob.
// A nil value encodes as an empty object.
func EncodeSettings(s Settings) ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func crawlingFromMap(m map[string]any) (*CrawlingSettings, error) {
	s := &CrawlingSettings{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "crawl_depth":
			n, ok := intValue(v)
			if !ok {
				return nil, &ValidationError{Field: "crawl_depth", Reason: "must be an integer"}
			}
			s.CrawlDepth = n
		case "max_pages":
			n, ok := intValue(v)
			if !ok {
				return nil, &ValidationError{Field: "max_pages", Reason: "must be an integer"}
			}
			s.MaxPages = n
		case "user_agent":
			str, ok := v.(string)
			if !ok {
				return nil, &ValidationError{Field: "user_agent", Reason: "must be a string"}
			}
			s.UserAgent = str
		case "follow_external":
			b, ok := v.(bool)
			if !ok {
				return nil, &ValidationError{Field: "follow_external", Reason: "must be a boolean"}
			}
			s.FollowExternal = b
		default:
			s.Extra[k] = v
		}
	}
	if len(s.Extra) == 0 {
		s.Extra = nil
	}
	s.ApplyDefaults()
	return s, nil
}

func dataFromMap(m map[string]any) (*DataSettings, error) {
	s := &DataSettings{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "chunk_size":
			n, ok := intValue(v)
			if !ok {
				return nil, &ValidationError{Field: "chunk_size", Reason: "must be an integer"}
			}
			s.ChunkSize = n
		case "chunk_overlap":
			n, ok := intValue(v)
			if !ok {
				return nil, &ValidationError{Field: "chunk_overlap", Reason: "must be an integer"}
			}
			s.ChunkOverlap = n
		case "embedding_model":
			str, ok := v.(string)
			if !ok {
				return nil, &ValidationError{Field: "embedding_model", Reason: "must be a string"}
			}
			s.EmbeddingModel = str
		default:
			s.Extra[k] = v
		}
	}
	if len(s.Extra) == 0 {
		s.Extra = nil
	}
	s.ApplyDefaults()
	return s, nil
}

func storageFromMap(m map[string]any) (*StorageSettings, error) {
	s := &StorageSettings{Extra: make(map[string]any)}
	compressionSet := false
	for k, v := range m {
		switch k {
		case "compression":
			b, ok := v.(bool)
			if !ok {
				return nil, &ValidationError{Field: "compression", Reason: "must be a boolean"}
			}
			s.Compression = b
			compressionSet = true
		case "retain_revisions":
			n, ok := intValue(v)
			if !ok {
				return nil, &ValidationError{Field: "retain_revisions", Reason: "must be an integer"}
			}
			s.RetainRevisions = n
		default:
			s.Extra[k] = v
		}
	}
	if len(s.Extra) == 0 {
		s.Extra = nil
	}
	if !compressionSet {
		s.Compression = true
	}
	if s.RetainRevisions == 0 {
		s.RetainRevisions = DefaultRetainRevisions
	}
	return s, nil
}

// intValue coerces a decoded JSON value to an int. JSON numbers arrive as
// float64; only whole values are accepted.
func intValue(v any) (int, bool) {
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

// cloneMap returns a shallow copy of m; nested values are shared.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
