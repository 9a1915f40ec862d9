package types

import "errors"

// Config holds the parameters for opening a docshelf store.
type Config struct {
	// DataDir is the directory holding the registry file and the
	// per-project shard files.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Config validation errors.
var (
	ErrDataDirEmpty = errors.New("data directory must not be empty")
)

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}
