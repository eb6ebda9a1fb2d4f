package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/llamafarm/llamafarm-core/internal/config"
	"github.com/llamafarm/llamafarm-core/internal/rag/retrieve"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

type ragQueryRequest struct {
	Database       string         `json:"database"`
	Query          string         `json:"query"`
	TopK           int            `json:"top_k,omitempty"`
	Filters        map[string]any `json:"filters,omitempty"`
	ScoreThreshold *float64       `json:"score_threshold,omitempty"`
}

// handleRAGQuery runs a standalone retrieval call against one of a
// project's databases (spec §6 POST .../rag/query, §4.6).
func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	retrievalStrat, err := pr.retrievalStrategy(req.Database)
	if err != nil {
		writeAppError(w, err)
		return
	}
	pipeline, err := pr.retrievePipelineFor(s.models, req.Database)
	if err != nil {
		writeAppError(w, err)
		return
	}

	results, err := pipeline.Retrieve(r.Context(), retrieve.Request{
		Database:       req.Database,
		Query:          req.Query,
		TopK:           req.TopK,
		RetrievalStrat: retrievalStrat,
		Filters:        req.Filters,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleListDatabases returns a project's configured RAG databases,
// with embedding/retrieval strategy references resolved (spec §6 GET
// .../rag/databases).
func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	resolved := make([]types.DatabaseConfig, 0, len(pr.cfg.RAG.Databases))
	for _, db := range pr.cfg.RAG.Databases {
		rdb, err := pr.database(db.Name)
		if err != nil {
			writeAppError(w, err)
			return
		}
		resolved = append(resolved, rdb)
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": resolved})
}

// handleCreateDatabase appends a new database to a project's manifest
// and persists it (spec §6 POST .../rag/databases).
func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	cfg, err := config.LoadFrom(s.paths, ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var db types.DatabaseConfig
	if err := json.NewDecoder(r.Body).Decode(&db); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if db.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "database name is required")
		return
	}
	for _, existing := range cfg.RAG.Databases {
		if existing.Name == db.Name {
			writeError(w, http.StatusConflict, ErrCodeInvalidRequest, "database already exists: "+db.Name)
			return
		}
	}
	cfg.RAG.Databases = append(cfg.RAG.Databases, db)

	if err := config.Save(s.paths, ns, id, cfg); err != nil {
		writeAppError(w, err)
		return
	}
	s.projects.invalidate(ns, id)
	writeJSON(w, http.StatusCreated, &db)
}

// handleRAGStats reports, per configured database, its vector store
// binding. Per-database vector counts are not surfaced: the VectorStore
// contract (spec §1 external collaborator) exposes Query and Upsert but
// no enumeration/count operation, and adding one only for a stats
// endpoint would mean a reference-store-only method no real vector
// database client is guaranteed to support.
func (s *Server) handleRAGStats(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	stats := make([]map[string]any, 0, len(pr.cfg.RAG.Databases))
	for _, db := range pr.cfg.RAG.Databases {
		stats = append(stats, map[string]any{
			"database": db.Name,
			"provider": db.VectorStore.Provider,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": stats})
}
