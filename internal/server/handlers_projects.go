package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/config"
	"github.com/llamafarm/llamafarm-core/internal/eventlog"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// handleListProjects lists the projects that have a manifest under a
// namespace (spec §6 GET /v1/projects/{ns}).
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	names, err := config.List(s.paths, ns)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": names})
}

// handleCreateProject writes a new project manifest (spec §6 POST
// /v1/projects/{ns}).
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")

	var cfg types.ProjectConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if cfg.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "project name is required")
		return
	}
	cfg.Namespace = ns

	if err := config.Save(s.paths, ns, cfg.Name, &cfg); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &cfg)
}

// handleGetProject returns the loaded manifest for one project (spec §6
// GET /v1/projects/{ns}/{id}).
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")
	cfg, err := config.LoadFrom(s.paths, ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateProject overwrites a project's manifest and invalidates
// its cached runtime so the next request picks up the new config (spec
// §6 PUT /v1/projects/{ns}/{id}).
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	var cfg types.ProjectConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	cfg.Namespace = ns
	cfg.Name = id

	// Best-effort: a missing or unreadable previous manifest (first-time
	// PUT, corrupt file) just means there's nothing to diff against, not
	// a failed update.
	previous, _ := config.LoadFrom(s.paths, ns, id)

	if err := config.Save(s.paths, ns, id, &cfg); err != nil {
		writeAppError(w, err)
		return
	}
	s.projects.invalidate(ns, id)

	if previous != nil {
		s.logProjectConfigDiff(ns, id, previous, &cfg)
	}

	writeJSON(w, http.StatusOK, &cfg)
}

// logProjectConfigDiff records an additions/deletions summary of a
// project config update as an event log entry, so operators can see the
// size of a manifest change without diffing it themselves.
func (s *Server) logProjectConfigDiff(ns, id string, before, after *types.ProjectConfig) {
	beforeYAML, err := yaml.Marshal(before)
	if err != nil {
		return
	}
	afterYAML, err := yaml.Marshal(after)
	if err != nil {
		return
	}

	diff := eventlog.DiffConfigs(string(beforeYAML), string(afterYAML))
	entry := types.EventLogEntry{
		EventID:    ulid.Make().String(),
		EventType:  "project_updated",
		Timestamp:  time.Now().UnixMilli(),
		Namespace:  ns,
		Project:    id,
		ConfigHash: after.ConfigHash,
		Status:     "completed",
		Metadata: map[string]any{
			"additions": diff.Additions,
			"deletions": diff.Deletions,
		},
	}
	if _, err := s.events.Append(context.Background(), entry); err != nil {
		logging.Logger.Error().Err(err).Str("namespace", ns).Str("project", id).Msg("failed to append project update event log entry")
	}
}

// handleDeleteProject removes a project's on-disk tree entirely,
// including its sessions, and drops its cached runtime (spec §6 DELETE
// /v1/projects/{ns}/{id}).
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	s.projects.invalidate(ns, id)
	if err := s.sessions.Evict(r.Context(), ns, id); err != nil && !apperr.Is(err, apperr.NotFound) {
		writeAppError(w, err)
		return
	}
	if err := config.Delete(s.paths, ns, id); err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w)
}
