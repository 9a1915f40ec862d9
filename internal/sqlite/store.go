package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// RegistryFileName is the shared registry file under the data directory.
const RegistryFileName = "registry.db"

// ShardDirName is the subdirectory holding per-project shard files.
const ShardDirName = "shards"

// Store owns the registry file connection and the pool of per-project
// shard connections. One Store per data directory; all access within a
// process goes through it. Concurrency across processes relies on
// SQLite's own locking.
type Store struct {
	mu     sync.RWMutex
	closed bool

	config    types.Config
	dataDir   string
	db        *sql.DB
	log       *slog.Logger
	migration MigrateResult

	// shardMu guards the shard cache. Insertion of a new entry is
	// first-writer-wins; subsequent callers reuse the cached handle.
	shardMu sync.Mutex
	shards  map[string]*sql.DB
}

// Open opens (or creates) the registry store in the configured data
// directory and brings the registry file to the current structural
// version. The returned store is ready for use; Close releases the
// registry connection and all pooled shard connections.
func Open(config types.Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, &types.RepositoryError{Op: "create data dir", Err: err}
	}
	if err := os.MkdirAll(filepath.Join(config.DataDir, ShardDirName), 0o755); err != nil {
		return nil, &types.RepositoryError{Op: "create shard dir", Err: err}
	}

	dbPath := filepath.Join(config.DataDir, RegistryFileName)
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, &types.RepositoryError{Op: "open registry", Err: err}
	}

	s := &Store{
		config:  config,
		dataDir: config.DataDir,
		db:      db,
		log:     slog.Default().With("component", "store"),
		shards:  make(map[string]*sql.DB),
	}

	migrator := NewMigrator(db, config.DataDir)
	result, err := migrator.MigrateToLatest()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.migration = result

	return s, nil
}

// MigrationResult reports what Open's structural migration did to the
// registry file.
func (s *Store) MigrationResult() MigrateResult {
	return s.migration
}

// openDatabase opens a SQLite file with WAL journaling and foreign keys
// enabled. WAL allows concurrent readers during a writer.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	return db, nil
}

// Close releases the registry connection and all pooled shard
// connections. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.shardMu.Lock()
	for name, db := range s.shards {
		if err := db.Close(); err != nil {
			s.log.Warn("closing shard", "project", name, "error", err)
		}
	}
	s.shards = make(map[string]*sql.DB)
	s.shardMu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return &types.RepositoryError{Op: "close registry", Err: err}
		}
		s.db = nil
	}
	s.closed = true
	return nil
}

// RegistryPath returns the registry file path.
func (s *Store) RegistryPath() string {
	return filepath.Join(s.dataDir, RegistryFileName)
}

// shardPath returns the shard file path for a project name.
func (s *Store) shardPath(projectName string) string {
	return filepath.Join(s.dataDir, ShardDirName, projectName+".db")
}

// checkOpen returns ErrStoreClosed if the store has been closed.
// Callers must hold s.mu (read or write).
func (s *Store) checkOpen() error {
	if s.closed {
		return types.ErrStoreClosed
	}
	return nil
}

// newUUID generates a UUID v7 string, falling back to v4 if v7 generation
// fails.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
