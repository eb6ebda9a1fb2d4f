package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/voice"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

var voiceUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// voiceCollaborator adapts a project's default language backend to
// voice.Collaborator's Generate leg. Speech-to-text and
// text-to-speech are external collaborators (spec §4.15) — no such
// library appears anywhere in the corpus this module was built from, so
// Transcribe and Synthesize report Unavailable rather than faking audio
// processing with a stdlib stand-in.
type voiceCollaborator struct {
	backend modeladapter.LanguageBackend
}

func (c *voiceCollaborator) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return "", apperr.New(apperr.Unavailable, "speech-to-text is an external collaborator; none is configured")
}

func (c *voiceCollaborator) Generate(ctx context.Context, text string) (string, error) {
	return c.backend.Generate(ctx, modeladapter.GenerateRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: text}},
	})
}

func (c *voiceCollaborator) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return nil, apperr.New(apperr.Unavailable, "text-to-speech is an external collaborator; none is configured")
}

// handleVoiceChat upgrades to a WebSocket and hands the connection off
// to a voice.Session for the duration of the call (spec §6 GET
// /v1/{ns}/{id}/voice/chat, §4.15).
func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rec, err := pr.resolveModel("")
	if err != nil {
		writeAppError(w, err)
		return
	}
	backend, err := s.models.Language(rec)
	if err != nil {
		writeAppError(w, err)
		return
	}

	conn, err := voiceUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	format := voice.AudioFormat(r.URL.Query().Get("format"))
	session := voice.NewSession(conn, &voiceCollaborator{backend: backend}, defaultVoiceSilenceWindow, format)
	_ = session.Run(r.Context())
}

const defaultVoiceSilenceWindow = 20
