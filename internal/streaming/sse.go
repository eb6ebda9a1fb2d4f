// Package streaming implements the Streaming Dispatcher (spec §4.11):
// SSE chat-completion framing and UTF-8-safe token decoding shared by
// the SSE and WebSocket surfaces, plus cooperative cancellation when a
// client disconnects mid-stream.
package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// doneFrame is the terminal SSE frame every chat-completion stream ends
// with, spec §4.11: "data: [DONE]\n\n".
const doneFrame = "data: [DONE]\n\n"

// SSEDispatcher writes OpenAI-compatible chat completion chunks to an
// http.ResponseWriter, flushing after every chunk so no two tokens are
// ever buffered into one frame (spec §4.11).
type SSEDispatcher struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// NewSSEDispatcher prepares w for SSE streaming: sets the standard SSE
// headers and wraps w for flush-after-write. Returns an error if w
// doesn't support streaming.
func NewSSEDispatcher(w http.ResponseWriter) (*SSEDispatcher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	d := &SSEDispatcher{w: w, flusher: flusher, rc: http.NewResponseController(w)}
	d.flush()
	return d, nil
}

// WriteChunk emits one OpenAI-compatible chat completion chunk frame and
// flushes immediately.
func (d *SSEDispatcher) WriteChunk(chunk types.ChatCompletionChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(d.w, "data: %s\n\n", data); err != nil {
		return err
	}
	d.flush()
	return nil
}

// WriteDone emits the terminal "data: [DONE]" frame (spec §4.11).
func (d *SSEDispatcher) WriteDone() error {
	_, err := fmt.Fprint(d.w, doneFrame)
	d.flush()
	return err
}

func (d *SSEDispatcher) flush() {
	if err := d.rc.Flush(); err != nil {
		d.flusher.Flush()
	}
}
