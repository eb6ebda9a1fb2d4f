package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCacheStats reports the shared model cache's current occupancy,
// for the "llamafarm-core cache stats" CLI subcommand.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count": s.cache.Len(),
		"keys":  s.cache.Keys(),
	})
}

// handleCacheEvict drops a single model cache key, unloading its
// backend, for the "llamafarm-core cache evict <key>" CLI subcommand.
func (s *Server) handleCacheEvict(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.cache.Drop(key)
	writeSuccess(w)
}
