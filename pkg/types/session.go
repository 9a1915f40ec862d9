package types

import "time"

// Crawl session states within a project shard.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// CrawlSession is one crawl run recorded in a project's shard file.
// Sessions are generation-local operational data and are discarded when
// the project is recreated.
type CrawlSession struct {
	SessionID   string
	StartedAt   time.Time
	CompletedAt *time.Time
	PagesTotal  int64
	PagesFailed int64
	Status      string
}

// Page is one fetched document recorded in a project's shard file.
type Page struct {
	PageID      string
	SessionID   string
	URL         string
	Title       string
	ContentHash string
	FetchedAt   time.Time
	Status      string
}

// ProjectGroup is a grouping container in the registry. The seeded default
// group is protected and cannot be deleted.
type ProjectGroup struct {
	GroupID   string
	Name      string
	Protected bool
	CreatedAt time.Time
}
