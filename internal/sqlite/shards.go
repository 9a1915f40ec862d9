package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// CurrentShardVersion is the structural version of per-project shard
// files. Shard versioning is independent of the registry's marker.
const CurrentShardVersion = 2

// shardVersionKey is the shard_info key holding the shard's version.
const shardVersionKey = "shard_version"

// shardDDL lists the shard migration statements by version. All shard
// steps are additive and idempotent through IF NOT EXISTS.
var shardDDL = map[int][]string{
	1: {createCrawlSessions, createShardInfo},
	2: {createPages, idxPagesSession, idxPagesURL},
}

// Shard returns the open connection for a project's shard file, opening
// and migrating it lazily on first access. Opened handles are cached for
// the store's lifetime; insertion into the cache is first-writer-wins.
func (s *Store) Shard(projectName string) (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := types.ValidateName(projectName); err != nil {
		return nil, err
	}

	s.shardMu.Lock()
	defer s.shardMu.Unlock()

	if db, ok := s.shards[projectName]; ok {
		return db, nil
	}

	db, err := openDatabase(s.shardPath(projectName))
	if err != nil {
		return nil, &types.RepositoryError{Op: "open shard", Err: err}
	}
	if err := migrateShard(db); err != nil {
		db.Close()
		return nil, err
	}
	s.shards[projectName] = db
	return db, nil
}

// migrateShard brings a shard file to the current shard version.
func migrateShard(db *sql.DB) error {
	detected, err := detectShardVersion(db)
	if err != nil {
		return err
	}
	for v := detected + 1; v <= CurrentShardVersion; v++ {
		for _, stmt := range shardDDL[v] {
			if _, err := db.Exec(stmt); err != nil {
				return &types.MigrationError{Version: v, Step: "shard migration", Err: err}
			}
		}
	}
	if detected < CurrentShardVersion {
		if _, err := db.Exec(
			"INSERT OR REPLACE INTO shard_info (key, value) VALUES (?, ?)",
			shardVersionKey, strconv.Itoa(CurrentShardVersion)); err != nil {
			return &types.RepositoryError{Op: "write shard version", Err: err}
		}
	}
	return nil
}

// detectShardVersion returns the shard's recorded version, or 0 when no
// marker exists.
func detectShardVersion(db *sql.DB) (int, error) {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'shard_info'").Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &types.RepositoryError{Op: "detect shard version", Err: err}
	}
	var value string
	err = db.QueryRow("SELECT value FROM shard_info WHERE key = ?", shardVersionKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &types.RepositoryError{Op: "detect shard version", Err: err}
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, &types.RepositoryError{Op: "detect shard version", Err: fmt.Errorf("invalid shard version %q", value)}
	}
	return v, nil
}

// ShardVersion returns the structural version of a project's shard.
func (s *Store) ShardVersion(projectName string) (int, error) {
	db, err := s.Shard(projectName)
	if err != nil {
		return 0, err
	}
	return detectShardVersion(db)
}

// AppendCrawlSession records a crawl session in the project's shard.
// The session gets a generated ID when unset.
func (s *Store) AppendCrawlSession(projectName string, sess *types.CrawlSession) error {
	db, err := s.Shard(projectName)
	if err != nil {
		return err
	}
	if sess.SessionID == "" {
		sess.SessionID = newUUID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	if sess.Status == "" {
		sess.Status = types.SessionRunning
	}
	var completedAt sql.NullString
	if sess.CompletedAt != nil {
		completedAt = nullString(sess.CompletedAt.UTC().Format(time.RFC3339))
	}
	_, err = db.Exec(`
		INSERT INTO crawl_sessions (session_id, started_at, completed_at, pages_total, pages_failed, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			completed_at = excluded.completed_at,
			pages_total = excluded.pages_total,
			pages_failed = excluded.pages_failed,
			status = excluded.status`,
		sess.SessionID, sess.StartedAt.UTC().Format(time.RFC3339), completedAt,
		sess.PagesTotal, sess.PagesFailed, sess.Status)
	if err != nil {
		return &types.RepositoryError{Op: "append crawl session", Err: err}
	}
	return nil
}

// AppendPage records a fetched page in the project's shard.
func (s *Store) AppendPage(projectName string, page *types.Page) error {
	db, err := s.Shard(projectName)
	if err != nil {
		return err
	}
	if page.PageID == "" {
		page.PageID = newUUID()
	}
	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now().UTC()
	}
	_, err = db.Exec(`
		INSERT INTO pages (page_id, session_id, url, title, content_hash, fetched_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		page.PageID, page.SessionID, page.URL, nullString(page.Title),
		nullString(page.ContentHash), page.FetchedAt.UTC().Format(time.RFC3339), page.Status)
	if err != nil {
		return &types.RepositoryError{Op: "append page", Err: err}
	}
	return nil
}

// SessionCount returns the number of crawl sessions in a project's shard.
func (s *Store) SessionCount(projectName string) (int64, error) {
	db, err := s.Shard(projectName)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM crawl_sessions").Scan(&n); err != nil {
		return 0, &types.RepositoryError{Op: "count sessions", Err: err}
	}
	return n, nil
}

// PageCount returns the number of pages in a project's shard.
func (s *Store) PageCount(projectName string) (int64, error) {
	db, err := s.Shard(projectName)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&n); err != nil {
		return 0, &types.RepositoryError{Op: "count pages", Err: err}
	}
	return n, nil
}

// ShardSizeBytes returns the on-disk size of a project's shard file, or 0
// when the shard has never been created.
func (s *Store) ShardSizeBytes(projectName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.shardPath(projectName))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, &types.RepositoryError{Op: "stat shard", Err: err}
	}
	return info.Size(), nil
}

// ResetShard discards a project's shard file. Shard contents are
// generation-local, so recreation drops them rather than carrying them
// into the new generation. The shard is recreated lazily on next access.
func (s *Store) ResetShard(projectName string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := types.ValidateName(projectName); err != nil {
		return err
	}

	s.shardMu.Lock()
	defer s.shardMu.Unlock()

	if db, ok := s.shards[projectName]; ok {
		if err := db.Close(); err != nil {
			return &types.RepositoryError{Op: "close shard", Err: err}
		}
		delete(s.shards, projectName)
	}

	path := s.shardPath(projectName)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return &types.RepositoryError{Op: "remove shard", Err: err}
		}
	}
	return nil
}
