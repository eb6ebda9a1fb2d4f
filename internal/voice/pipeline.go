// Package voice implements the Voice Pipeline (spec §4.15): a WebSocket
// session cycling connect -> streaming_in -> (VAD end of speech) ->
// transcribe -> generate -> synthesise -> streaming_out -> idle, driven
// by three external collaborators (speech-to-text, the language model,
// text-to-speech) this package only orchestrates.
package voice

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/llamafarm/llamafarm-core/internal/logging"
)

// ttsSampleRate and ttsChannels describe the synthesized audio a
// Collaborator's Synthesize returns, matched to the original TTS
// pipeline's Kokoro-model default (24kHz mono), used only to populate a
// WAV container's header when the client requests one.
const (
	ttsSampleRate = 24000
	ttsChannels   = 1
)

// ControlMessage is one JSON control frame the server emits over the
// voice WebSocket (spec §4.15): transcription, llm_text, tts_start,
// tts_done, status, error.
type ControlMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Collaborator is the set of model operations a voice turn drives. A
// production deployment wires these to the Model Adapter's language and
// (speech-family) encoder backends; this package never implements
// speech recognition or synthesis itself — no such library appears
// anywhere in the corpus this module was built from (see DESIGN.md).
type Collaborator interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
	Generate(ctx context.Context, text string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Conn is the subset of *websocket.Conn a Session needs, narrowed for
// testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session drives one voice WebSocket connection's full turn lifecycle.
type Session struct {
	conn   Conn
	coll   Collaborator
	vad    *VAD
	log    zerolog.Logger
	audio  []byte
	format AudioFormat
}

// NewSession wires a Session to a connection and its model collaborator.
// The output format defaults to raw PCM when empty.
func NewSession(conn Conn, coll Collaborator, silenceWindow int, format AudioFormat) *Session {
	if format == "" {
		format = AudioFormatPCM
	}
	return &Session{
		conn:   conn,
		coll:   coll,
		vad:    NewVAD(silenceWindow),
		log:    logging.Logger.With().Str("component", "voice.session").Logger(),
		format: format,
	}
}

// Run drives the session loop until the connection closes or ctx is
// cancelled: reads PCM frames, endpoints on VAD-detected silence, then
// runs transcribe -> generate -> synthesise -> streaming_out -> idle.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		if msgType != websocket.BinaryMessage {
			continue // ignore non-audio frames on the inbound side (control echoes, pings)
		}

		s.audio = append(s.audio, data...)
		if s.vad.Feed(data) {
			if err := s.runTurn(ctx); err != nil {
				s.sendError(err)
			}
			s.audio = nil
			s.vad.Reset()
		}
	}
}

// runTurn implements transcribe -> generate -> synthesise ->
// streaming_out -> idle for one endpointed utterance.
func (s *Session) runTurn(ctx context.Context) error {
	transcript, err := s.coll.Transcribe(ctx, s.audio)
	if err != nil {
		return err
	}
	if err := s.sendControl(ControlMessage{Type: "transcription", Text: transcript}); err != nil {
		return err
	}

	reply, err := s.coll.Generate(ctx, transcript)
	if err != nil {
		return err
	}
	if err := s.sendControl(ControlMessage{Type: "llm_text", Text: reply}); err != nil {
		return err
	}

	if err := s.sendControl(ControlMessage{Type: "tts_start"}); err != nil {
		return err
	}
	audio, err := s.coll.Synthesize(ctx, reply)
	if err != nil {
		return err
	}
	encoded := EncodeAudio(s.format, audio, ttsSampleRate, ttsChannels)
	if err := s.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		return err
	}
	if err := s.sendControl(ControlMessage{Type: "tts_done"}); err != nil {
		return err
	}

	return s.sendControl(ControlMessage{Type: "status", Status: "idle"})
}

func (s *Session) sendControl(msg ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) sendError(err error) {
	if sendErr := s.sendControl(ControlMessage{Type: "error", Error: err.Error()}); sendErr != nil {
		s.log.Error().Err(sendErr).Msg("failed to write error control message")
	}
}
