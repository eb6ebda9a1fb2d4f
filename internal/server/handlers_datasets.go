package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/config"
)

// handleUploadDatasetFile accepts a multipart file upload, stores it
// content-addressed (internal/dataset.Store.Put) and records its hash
// against the dataset's manifest entry (spec §6 POST
// .../datasets/{ds}/files, §4.8).
func (s *Server) handleUploadDatasetFile(w http.ResponseWriter, r *http.Request) {
	ns, id, ds := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "ds")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid multipart upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "missing file field: "+err.Error())
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	meta, err := pr.datasets.Put(r.Context(), ds, header.Filename, mimeType, file)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if err := s.recordDatasetHash(ns, id, ds, meta.Hash); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &meta)
}

type datasetFileDeleteRequest struct {
	Hash string `json:"hash"`
}

// handleDeleteDatasetFile removes a blob from a dataset and purges any
// vectors ingested from it, across every database the dataset is bound
// to via its manifest entries (spec §6 DELETE .../datasets/{ds}/files).
func (s *Server) handleDeleteDatasetFile(w http.ResponseWriter, r *http.Request) {
	ns, id, ds := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "ds")

	var req datasetFileDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hash == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "hash is required")
		return
	}

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	meta, err := pr.datasets.Delete(r.Context(), ds, req.Hash)
	if err != nil {
		writeAppError(w, err)
		return
	}

	for _, dsCfg := range pr.cfg.Datasets {
		if dsCfg.Name == ds {
			if err := pr.vectors.DeleteByFileHash(r.Context(), dsCfg.Database, req.Hash); err != nil {
				writeAppError(w, err)
				return
			}
		}
	}

	if err := s.removeDatasetHash(ns, id, ds, req.Hash); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &meta)
}

type datasetProcessRequest struct {
	FileHashes []string `json:"file_hashes,omitempty"`
}

// handleProcessDataset submits the "ingest_dataset" task for a dataset,
// either for the hashes named in the request body or, if omitted, every
// hash currently recorded on the dataset's manifest entry (spec §6 POST
// .../datasets/{ds}/process, §4.5).
func (s *Server) handleProcessDataset(w http.ResponseWriter, r *http.Request) {
	ns, id, ds := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "ds")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req datasetProcessRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
			return
		}
	}

	hashes := req.FileHashes
	if len(hashes) == 0 {
		found := false
		for _, dsCfg := range pr.cfg.Datasets {
			if dsCfg.Name == ds {
				hashes = dsCfg.FileHashes
				found = true
				break
			}
		}
		if !found {
			writeAppError(w, apperr.New(apperr.NotFound, "dataset not declared in project manifest: "+ds))
			return
		}
	}

	taskID, err := pr.tasks.Submit(r.Context(), "ingest_dataset", map[string]any{
		"dataset":     ds,
		"file_hashes": hashes,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
}

// recordDatasetHash appends hash to a dataset's FileHashes list in the
// on-disk manifest and invalidates the cached runtime.
func (s *Server) recordDatasetHash(ns, project, dataset, hash string) error {
	return s.mutateDatasetHashes(ns, project, dataset, func(hashes []string) []string {
		for _, h := range hashes {
			if h == hash {
				return hashes
			}
		}
		return append(hashes, hash)
	})
}

// removeDatasetHash drops hash from a dataset's FileHashes list.
func (s *Server) removeDatasetHash(ns, project, dataset, hash string) error {
	return s.mutateDatasetHashes(ns, project, dataset, func(hashes []string) []string {
		out := hashes[:0]
		for _, h := range hashes {
			if h != hash {
				out = append(out, h)
			}
		}
		return out
	})
}

func (s *Server) mutateDatasetHashes(ns, project, dataset string, mutate func([]string) []string) error {
	cfg, err := config.LoadFrom(s.paths, ns, project)
	if err != nil {
		return err
	}
	found := false
	for i := range cfg.Datasets {
		if cfg.Datasets[i].Name == dataset {
			cfg.Datasets[i].FileHashes = mutate(cfg.Datasets[i].FileHashes)
			found = true
			break
		}
	}
	if !found {
		return apperr.New(apperr.NotFound, "dataset not declared in project manifest: "+dataset)
	}
	if err := config.Save(s.paths, ns, project, cfg); err != nil {
		return err
	}
	s.projects.invalidate(ns, project)
	return nil
}
