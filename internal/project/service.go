// Package project exposes the operations front ends consume: listing,
// lookup, creation, update, compatibility checking, recreation, and
// export of project records. It borrows write access to the repository
// and the audit trail but owns neither.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/internal/sqlite"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// Service implements the front-end contract over a registry store.
type Service struct {
	store   *sqlite.Store
	checker *schema.Checker
	log     *slog.Logger
}

// NewService returns a Service over an open store.
func NewService(store *sqlite.Store) *Service {
	return &Service{
		store:   store,
		checker: schema.NewChecker(),
		log:     slog.Default().With("component", "project"),
	}
}

// CreateParams carries external input for Create. Type arrives as a
// string and is parsed at the boundary.
type CreateParams struct {
	Name      string
	Type      string
	Settings  map[string]any
	Metadata  map[string]any
	SourceURL string
}

// Create builds and persists a new project record under the current
// schema generation. Fails with ErrAlreadyExists if the name is taken.
func (s *Service) Create(params CreateParams) (*types.Project, error) {
	if err := types.ValidateName(params.Name); err != nil {
		return nil, err
	}
	ptype, err := types.ParseProjectType(params.Type)
	if err != nil {
		return nil, err
	}
	settings, err := types.SettingsFromMap(ptype, params.Settings)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &types.Project{
		Name:          params.Name,
		Type:          ptype,
		Status:        types.StatusActive,
		SchemaVersion: schema.CurrentVersion,
		Compatibility: types.Compatible,
		SourceURL:     params.SourceURL,
		Settings:      settings,
		Metadata:      params.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveProject(p); err != nil {
		return nil, err
	}
	s.log.Info("project created", "name", p.Name, "type", p.Type)
	return p, nil
}

// ListFilter narrows List results. Values arrive as strings and are
// parsed at the boundary; empty values match all.
type ListFilter struct {
	Status string
	Type   string
	Limit  int
}

// List returns project records matching the filter, newest updated_at
// first.
func (s *Service) List(filter ListFilter) ([]*types.Project, error) {
	var storeFilter sqlite.ProjectFilter
	if filter.Status != "" {
		status, err := types.ParseProjectStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		storeFilter.Status = status
	}
	if filter.Type != "" {
		ptype, err := types.ParseProjectType(filter.Type)
		if err != nil {
			return nil, err
		}
		storeFilter.Type = ptype
	}
	storeFilter.Limit = filter.Limit
	return s.store.FetchProjects(storeFilter)
}

// Get loads a project by ID or name. ID lookup is tried first; a miss
// falls back to name lookup.
func (s *Service) Get(ref string) (*types.Project, error) {
	p, err := s.store.FindProjectByID(ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	return s.store.FindProjectByName(ref)
}

// Delete removes a project by ID or name and discards its shard.
// Protected records refuse deletion.
func (s *Service) Delete(ref string) error {
	p, err := s.Get(ref)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProjectByID(p.ProjectID); err != nil {
		return err
	}
	if err := s.store.ResetShard(p.Name); err != nil {
		s.log.Warn("discarding shard after delete", "project", p.Name, "error", err)
	}
	s.log.Info("project deleted", "name", p.Name)
	return nil
}

// UpdateParams carries external input for Update. Nil fields are left
// unchanged; Settings and Metadata merge over the existing values.
type UpdateParams struct {
	Settings  map[string]any
	Metadata  map[string]any
	SourceURL *string
}

// Update modifies a compatible project's configuration. An incompatible
// target fails with IncompatibleProjectError before anything is written:
// modification of old-generation records must go through recreation.
func (s *Service) Update(ref string, params UpdateParams) (*types.Project, error) {
	p, err := s.Get(ref)
	if err != nil {
		return nil, err
	}

	report := s.checker.CheckProject(p)
	if !report.IsCompatible {
		return nil, &types.IncompatibleProjectError{
			Name:           p.Name,
			ProjectVersion: report.ProjectVersion,
			CurrentVersion: report.CurrentVersion,
			Detail:         issueSummary(report),
		}
	}

	if params.Settings != nil {
		merged, err := mergeSettings(p.Settings, params.Settings)
		if err != nil {
			return nil, err
		}
		settings, err := types.SettingsFromMap(p.Type, merged)
		if err != nil {
			return nil, err
		}
		p.Settings = settings
	}
	if params.Metadata != nil {
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		for k, v := range params.Metadata {
			p.Metadata[k] = v
		}
	}
	if params.SourceURL != nil {
		p.SourceURL = *params.SourceURL
	}

	p.Touch(time.Now().UTC())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckCompatibility inspects a project's stored row and returns the
// structured report. Every check is recorded in the audit trail as a
// validation attempt.
func (s *Service) CheckCompatibility(ref string, initiatedBy string) (*schema.Report, error) {
	p, err := s.Get(ref)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.RawProjectRow(p.Name)
	if err != nil {
		return nil, err
	}
	report := s.checker.CheckRow(raw)

	rec := &types.MigrationRecord{
		ProjectID:          p.ProjectID,
		ProjectName:        p.Name,
		Operation:          types.OpValidation,
		FromSchemaVersion:  report.ProjectVersion,
		ToSchemaVersion:    report.ProjectVersion,
		StartedAt:          time.Now().UTC(),
		InitiatedByCommand: initiatedBy,
	}
	if err := s.store.OpenMigrationRecord(rec); err != nil {
		return nil, err
	}
	errMsg := ""
	if !report.IsCompatible {
		errMsg = issueSummary(report)
	}
	rec.Seal(report.IsCompatible, errMsg, time.Now().UTC())
	if err := s.store.SealMigrationRecord(rec); err != nil {
		return nil, err
	}
	return report, nil
}

// History lists a project's audit records, newest first. An empty ref
// lists records across all projects.
func (s *Service) History(ref string, limit int) ([]*types.MigrationRecord, error) {
	projectID := ""
	if ref != "" {
		p, err := s.Get(ref)
		if err != nil {
			return nil, err
		}
		projectID = p.ProjectID
	}
	return s.store.ListMigrationRecords(projectID, limit)
}

// StuckRecords returns audit records left unsealed by an interrupted
// process, started before the cutoff.
func (s *Service) StuckRecords(olderThan time.Time) ([]*types.MigrationRecord, error) {
	return s.store.StuckMigrationRecords(olderThan)
}

// mergeSettings flattens the current settings to a map and applies the
// overrides on top, so an update only replaces the keys it names.
func mergeSettings(current types.Settings, overrides map[string]any) (map[string]any, error) {
	blob, err := types.EncodeSettings(current)
	if err != nil {
		return nil, fmt.Errorf("encoding current settings: %w", err)
	}
	merged := make(map[string]any)
	if err := json.Unmarshal(blob, &merged); err != nil {
		return nil, fmt.Errorf("decoding current settings: %w", err)
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged, nil
}
