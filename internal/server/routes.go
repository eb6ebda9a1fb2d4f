package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes wires spec §6's HTTP and WebSocket surface onto the
// router: project CRUD, chat completions, RAG query/ingestion, dataset
// management, task status and event log retrieval.
func (s *Server) setupRoutes() {
	s.router.Route("/v1/projects/{ns}", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Put("/", s.handleUpdateProject)
			r.Delete("/", s.handleDeleteProject)

			r.Post("/chat/completions", s.handleChatCompletions)

			r.Post("/rag/query", s.handleRAGQuery)
			r.Get("/rag/databases", s.handleListDatabases)
			r.Post("/rag/databases", s.handleCreateDatabase)
			r.Get("/rag/stats", s.handleRAGStats)

			r.Post("/datasets/{ds}/files", s.handleUploadDatasetFile)
			r.Delete("/datasets/{ds}/files", s.handleDeleteDatasetFile)
			r.Post("/datasets/{ds}/process", s.handleProcessDataset)

			r.Get("/tasks/{task_id}", s.handleGetTask)

			r.Get("/event_logs", s.handleListEventLogs)
			r.Get("/event_logs/stream", s.handleStreamEventLogs)
			r.Get("/event_logs/{event_id}", s.handleGetEventLog)

			// Anomaly/drift/timeseries/adtk model families (spec §4.3),
			// supplemented from the original ADTK/drift routers' fit/detect/
			// status endpoints, generalized across all four stat families
			// since they share one fit/score/save/load_from/status contract.
			r.Post("/stat/{family}/fit", s.handleStatFit)
			r.Post("/stat/{family}/score", s.handleStatScore)
			r.Get("/stat/{family}/status", s.handleStatStatus)

			// MCP tool servers a project's chat completions draw tools from
			// (spec §4 tool use); chat/completions merges these in automatically,
			// this surface is for clients that want to call one directly.
			r.Get("/mcp/servers", s.handleMCPStatus)
			r.Post("/mcp/tools/{tool}/execute", s.handleMCPExecuteTool)
		})
	})

	s.router.Get("/v1/{ns}/{id}/voice/chat", s.handleVoiceChat)

	// Process-local admin surface (not part of spec §6's public API)
	// backing the "llamafarm-core cache" CLI subcommands: the model
	// cache lives inside one running server process, so the CLI talks to
	// it over loopback HTTP rather than reaching into process state it
	// cannot share.
	s.router.Route("/admin/cache", func(r chi.Router) {
		r.Get("/stats", s.handleCacheStats)
		r.Post("/evict/{key}", s.handleCacheEvict)
	})
}
