package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/eventlog"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/rag/retrieve"
	"github.com/llamafarm/llamafarm-core/internal/streaming"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

const sessionHeader = "X-Session-ID"

// resolveModel finds the ModelRecord a chat request names, falling back
// to the project's configured default model when the request leaves
// model empty.
func (pr *projectRuntime) resolveModel(requested string) (types.ModelRecord, error) {
	name := requested
	if name == "" {
		name = pr.cfg.Runtime.DefaultModel
	}
	if name == "" {
		return types.ModelRecord{}, apperr.New(apperr.InvalidArgument, "no model specified and no default_model configured")
	}
	for _, rec := range pr.cfg.Runtime.Models {
		if rec.Name == name || rec.ID == name {
			return rec, nil
		}
	}
	return types.ModelRecord{}, apperr.New(apperr.NotFound, "model not declared in project runtime: "+name)
}

// handleChatCompletions serves the OpenAI-compatible chat completions
// endpoint (spec §6), synchronous or streaming, with optional RAG
// context injection (spec §4.10) and per-session history (spec §4.9).
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")
	start := time.Now()

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := pr.resolveModel(req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}
	backend, err := s.models.Language(rec)
	if err != nil {
		writeAppError(w, err)
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	sessionID, sess, err := s.sessions.GetOrCreate(r.Context(), ns, id, sessionID, func() types.AgentState {
		return types.AgentState{ActiveModel: types.ModelRef{ID: rec.ID, Family: rec.Family}}
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set(sessionHeader, sessionID)

	messages := append(append([]types.ChatMessage{}, sess.AgentState.History...), req.Messages...)

	var subEvents []eventlog.SubEvent
	if req.RAGEnabled {
		injected, sub, err := s.injectRAGContext(r.Context(), pr, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		messages = append(injected, messages...)
		if sub != nil {
			subEvents = append(subEvents, *sub)
		}
	}

	tools := append(append([]types.ToolDefinition{}, req.Tools...), pr.mcpTools()...)

	genReq := modeladapter.GenerateRequest{
		Messages:       messages,
		Tools:          tools,
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		TopP:           req.TopP,
		Stop:           req.Stop,
		ThinkingBudget: req.ThinkingBudget,
	}
	completionID := "chatcmpl_" + ulid.Make().String()

	logEntry := func(status string, errMsg string) {
		entry := types.EventLogEntry{
			EventType:      "chat_completion",
			RequestID:      completionID,
			Timestamp:      start.UnixMilli(),
			Namespace:      ns,
			Project:        id,
			ConfigHash:     pr.cfg.ConfigHash,
			SubEvents:      subEvents,
			Status:         status,
			Error:          errMsg,
			TotalElapsedMs: time.Since(start).Milliseconds(),
		}
		if _, appendErr := s.events.Append(context.Background(), entry); appendErr != nil {
			logging.Logger.Error().Err(appendErr).Str("request_id", completionID).Msg("failed to append chat completion event log entry")
		}
	}

	if req.Stream {
		chunks, err := backend.GenerateStream(r.Context(), genReq)
		if err != nil {
			writeAppError(w, err)
			logEntry("failed", err.Error())
			return
		}
		if err := streaming.DispatchChat(r.Context(), w, completionID, rec.ID, chunks); err != nil {
			logEntry("failed", err.Error())
			return
		}
		s.recordAssistantReply(r.Context(), ns, id, sessionID, req.Messages, "")
		logEntry("completed", "")
		return
	}

	reply, err := backend.Generate(r.Context(), genReq)
	if err != nil {
		writeAppError(w, err)
		logEntry("failed", err.Error())
		return
	}
	s.recordAssistantReply(r.Context(), ns, id, sessionID, req.Messages, reply)
	logEntry("completed", "")

	finishReason := "stop"
	writeJSON(w, http.StatusOK, types.ChatCompletionChunk{
		ID:      completionID,
		Object:  "chat.completion",
		Created: start.Unix(),
		Model:   rec.ID,
		Choices: []types.ChatCompletionChoice{{
			Index:        0,
			Delta:        types.ChatCompletionDelta{Role: "assistant", Content: reply},
			FinishReason: &finishReason,
		}},
	})
}

// injectRAGContext retrieves the top matches for the latest user
// message and returns them as a single leading system message (spec
// §4.10).
func (s *Server) injectRAGContext(ctx context.Context, pr *projectRuntime, req types.ChatRequest) ([]types.ChatMessage, *eventlog.SubEvent, error) {
	query := lastUserMessage(req.Messages)
	if query == "" {
		return nil, nil, nil
	}

	dbName := req.Database
	if dbName == "" && len(pr.cfg.RAG.Databases) > 0 {
		dbName = pr.cfg.RAG.Databases[0].Name
	}
	if dbName == "" {
		return nil, nil, nil
	}

	start := time.Now()
	pipeline, err := pr.retrievePipelineFor(s.models, dbName)
	if err != nil {
		return nil, nil, err
	}
	retrievalStrat, err := pr.retrievalStrategy(dbName)
	if err != nil {
		return nil, nil, err
	}

	var threshold *float64
	if req.RAGScoreThreshold != 0 {
		threshold = &req.RAGScoreThreshold
	}
	results, err := pipeline.Retrieve(ctx, retrieve.Request{
		Database:       dbName,
		Query:          query,
		TopK:           req.RAGTopK,
		RetrievalStrat: retrievalStrat,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, nil, err
	}

	content := "Relevant context:\n"
	for _, res := range results {
		content += "- " + res.Content + "\n"
	}
	sub := &eventlog.SubEvent{
		Timestamp:           start.UnixMilli(),
		EventName:           "rag_retrieve",
		DurationMsFromStart: time.Since(start).Milliseconds(),
		Data:                map[string]any{"database": dbName, "result_count": len(results)},
	}
	return []types.ChatMessage{{Role: "system", Content: content}}, sub, nil
}

func lastUserMessage(messages []types.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// recordAssistantReply appends the turn's new messages (and, for a
// synchronous completion, the assistant's reply) to the session's
// persisted history. Streaming completions pass an empty reply: the
// full text was never buffered server-side, so only the user's turn is
// recorded.
func (s *Server) recordAssistantReply(ctx context.Context, ns, project, sessionID string, turn []types.ChatMessage, reply string) {
	_ = s.sessions.Mutate(ctx, ns, project, sessionID, func(sess *types.Session) {
		sess.AgentState.History = append(sess.AgentState.History, turn...)
		if reply != "" {
			sess.AgentState.History = append(sess.AgentState.History, types.ChatMessage{Role: "assistant", Content: reply})
		}
	})
}
