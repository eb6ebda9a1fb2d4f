package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/identity"
)

// statModelPath resolves a fitted stat model's on-disk location,
// rejecting any attempt to escape the project's stat model directory
// via the user-supplied model name (spec §4.1 path-safety boundary).
func (s *Server) statModelPath(ns, id, name string) (string, error) {
	dir := s.paths.StatModelsDir(ns, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to create stat models directory", err)
	}
	return identity.SafeJoin(dir, name+".json")
}

type statFitRequest struct {
	Model    string    `json:"model"`
	Data     []float64 `json:"data"`
	Autosave bool      `json:"autosave"`
}

type statFitResponse struct {
	Model      string `json:"model"`
	NumSamples int    `json:"num_samples"`
}

// handleStatFit fits an anomaly/drift/timeseries/adtk detector on
// time-series data (spec §4.3 fit(), supplemented from the original
// ADTK/drift routers' POST .../fit endpoints).
func (s *Server) handleStatFit(w http.ResponseWriter, r *http.Request) {
	ns, id, family := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "family")

	var req statFitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model is required")
		return
	}

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rec, err := pr.resolveModel(req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if rec.Family != family {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model "+req.Model+" is not declared in family "+family)
		return
	}

	backend, err := s.models.Stat(rec)
	if err != nil {
		writeAppError(w, err)
		return
	}

	path, err := s.statModelPath(ns, id, req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if err := backend.Fit(r.Context(), req.Data, req.Autosave, path); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statFitResponse{Model: req.Model, NumSamples: backend.Status().NumSamples})
}

type statScoreRequest struct {
	Model string    `json:"model"`
	Data  []float64 `json:"data"`
}

type statScoreResponse struct {
	Model  string    `json:"model"`
	Scores []float64 `json:"scores"`
}

// handleStatScore runs score|detect|predict for a fitted detector (spec
// §4.3), loading it from disk first if it isn't already the resident
// cache entry for this family/model pair.
func (s *Server) handleStatScore(w http.ResponseWriter, r *http.Request) {
	ns, id, family := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "family")

	var req statScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rec, err := pr.resolveModel(req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if rec.Family != family {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model "+req.Model+" is not declared in family "+family)
		return
	}

	backend, err := s.models.Stat(rec)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if !backend.Status().Fitted {
		path, err := s.statModelPath(ns, id, req.Model)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if err := backend.LoadFrom(path); err != nil {
			writeAppError(w, err)
			return
		}
	}

	scores, err := backend.Score(r.Context(), req.Data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statScoreResponse{Model: req.Model, Scores: scores})
}

// handleStatStatus reports a detector's fitted state (spec §4.3
// status()).
func (s *Server) handleStatStatus(w http.ResponseWriter, r *http.Request) {
	ns, id, family := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "family")
	modelName := r.URL.Query().Get("model")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rec, err := pr.resolveModel(modelName)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if rec.Family != family {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model "+modelName+" is not declared in family "+family)
		return
	}

	backend, err := s.models.Stat(rec)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backend.Status())
}
