package project

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// RecreateOptions controls the recreation workflow.
type RecreateOptions struct {
	// Confirmed must be true; recreation discards stored documents.
	Confirmed bool
	// DiscardSettings drops the old settings instead of carrying them
	// into the new record. Settings are preserved by default.
	DiscardSettings bool
	// InitiatedBy names the command or caller for the audit record.
	InitiatedBy string
}

// Recreate replaces an incompatible project with a fresh record at the
// current schema generation. Identity (ID, name, type, group, source
// URL, creation time) survives; settings and metadata are carried over
// unless discarded; statistics reset to zero and the document shard is
// wiped. The whole attempt is recorded in the audit trail.
func (s *Service) Recreate(ref string, opts RecreateOptions) (*types.Project, error) {
	if !opts.Confirmed {
		return nil, types.ErrConfirmationRequired
	}

	p, err := s.Get(ref)
	if err != nil {
		return nil, err
	}
	if p.Compatibility == types.Migrating {
		return nil, types.ErrRecreationInFlight
	}
	report := s.checker.CheckProject(p)
	if report.IsCompatible {
		return nil, types.ErrRecreationNotRequired
	}

	// Snapshot what the new record will carry before anything mutates.
	settingsBlob, err := types.EncodeSettings(p.Settings)
	if err != nil {
		return nil, err
	}
	metadataBlob, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, err
	}
	shardSize, err := s.store.ShardSizeBytes(p.Name)
	if err != nil {
		shardSize = 0
	}

	rec := &types.MigrationRecord{
		ProjectID:          p.ProjectID,
		ProjectName:        p.Name,
		Operation:          types.OpRecreation,
		FromSchemaVersion:  p.SchemaVersion,
		ToSchemaVersion:    schema.CurrentVersion,
		StartedAt:          time.Now().UTC(),
		PreservedSettings:  settingsBlob,
		PreservedMetadata:  metadataBlob,
		DataSizeBytes:      shardSize,
		InitiatedByCommand: opts.InitiatedBy,
	}
	if err := s.store.OpenMigrationRecord(rec); err != nil {
		return nil, err
	}
	if err := s.store.SetCompatibilityStatus(p.ProjectID, types.Migrating); err != nil {
		s.sealFailure(rec, p, err)
		return nil, err
	}

	fresh, err := s.buildReplacement(p, opts)
	if err != nil {
		s.sealFailure(rec, p, err)
		return nil, err
	}
	// Single upsert: the old row is replaced in one statement, so a
	// reader never observes a half-recreated record. The shard is wiped
	// only after the record is durable: a failed save must leave the old
	// documents untouched, while a stale shard after a failed wipe can
	// still be discarded later.
	if err := s.store.SaveProject(fresh); err != nil {
		s.sealFailure(rec, p, err)
		return nil, err
	}
	if err := s.store.ResetShard(p.Name); err != nil {
		s.log.Warn("discarding shard after recreation", "project", p.Name, "error", err)
	}

	rec.Seal(true, "", time.Now().UTC())
	if err := s.store.SealMigrationRecord(rec); err != nil {
		s.log.Warn("sealing recreation record", "project", p.Name, "error", err)
	}
	s.log.Info("project recreated",
		"name", fresh.Name,
		"from_version", rec.FromSchemaVersion,
		"to_version", rec.ToSchemaVersion)
	return fresh, nil
}

// buildReplacement assembles the new-generation record for a recreated
// project.
func (s *Service) buildReplacement(p *types.Project, opts RecreateOptions) (*types.Project, error) {
	settings := p.Settings
	if opts.DiscardSettings || settings == nil || settings.Type() != p.Type {
		fresh, err := types.NewSettings(p.Type)
		if err != nil {
			return nil, err
		}
		settings = fresh
	} else {
		// Preserved settings carry over verbatim. ApplyDefaults is for
		// brand-new settings only: it would flip an explicit false or
		// zero back to its default.
		settings = settings.Clone()
	}

	now := time.Now().UTC()
	fresh := &types.Project{
		ProjectID:       p.ProjectID,
		GroupID:         p.GroupID,
		Name:            p.Name,
		Type:            p.Type,
		Status:          types.StatusActive,
		SchemaVersion:   schema.CurrentVersion,
		Compatibility:   types.Compatible,
		SourceURL:       p.SourceURL,
		Settings:        settings,
		Metadata:        p.Metadata,
		Protected:       p.Protected,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       now,
		LastOperationAt: &now,
	}
	if fresh.Metadata == nil {
		fresh.Metadata = map[string]any{}
	}
	if err := fresh.Validate(); err != nil {
		return nil, err
	}
	return fresh, nil
}

// sealFailure records a failed recreation attempt and rolls the status
// marker back so a later attempt is not refused as in-flight.
func (s *Service) sealFailure(rec *types.MigrationRecord, p *types.Project, cause error) {
	rec.Seal(false, cause.Error(), time.Now().UTC())
	if err := s.store.SealMigrationRecord(rec); err != nil {
		s.log.Warn("sealing failed recreation record", "project", p.Name, "error", err)
	}
	if err := s.store.SetCompatibilityStatus(p.ProjectID, types.Incompatible); err != nil {
		s.log.Warn("restoring compatibility status", "project", p.Name, "error", err)
	}
}

// Snapshot is the exportable view of a project, written before a
// recreation so the old configuration is recoverable by hand.
type Snapshot struct {
	Name          string           `json:"name"`
	Type          string           `json:"project_type"`
	SchemaVersion int              `json:"schema_version"`
	SourceURL     string           `json:"source_url,omitempty"`
	Settings      json.RawMessage  `json:"settings"`
	Statistics    types.Statistics `json:"statistics"`
	Metadata      map[string]any   `json:"metadata"`
	ExportedAt    time.Time        `json:"exported_at"`
}

// Export builds a snapshot of a project's current configuration.
func (s *Service) Export(ref string) (*Snapshot, error) {
	p, err := s.Get(ref)
	if err != nil {
		return nil, err
	}
	settingsBlob, err := types.EncodeSettings(p.Settings)
	if err != nil {
		return nil, err
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Snapshot{
		Name:          p.Name,
		Type:          string(p.Type),
		SchemaVersion: p.SchemaVersion,
		SourceURL:     p.SourceURL,
		Settings:      settingsBlob,
		Statistics:    p.Statistics,
		Metadata:      metadata,
		ExportedAt:    time.Now().UTC(),
	}, nil
}

// issueSummary joins report issues into one audit-trail message.
func issueSummary(report *schema.Report) string {
	return strings.Join(report.Issues, "; ")
}
