package streaming

import (
	"context"
	"net/http"
	"time"

	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// DispatchChat drains a language backend's token stream to an SSE
// response, framing each chunk as an OpenAI-compatible chat completion
// chunk and terminating with "data: [DONE]" (spec §4.11). If the
// request context is cancelled (client disconnect), it stops reading
// from chunks and returns without writing further frames — the
// producer side (ChatBackend.GenerateStream) observes the same context
// and unwinds its own generation loop cooperatively.
func DispatchChat(ctx context.Context, w http.ResponseWriter, id, model string, chunks <-chan modeladapter.TokenChunk) error {
	d, err := NewSSEDispatcher(w)
	if err != nil {
		return err
	}

	created := timeNow().Unix()
	decoder := &UTF8Decoder{}
	first := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return d.WriteDone()
			}
			if chunk.Err != nil {
				return chunk.Err
			}
			if chunk.Done {
				if tail := decoder.Flush(); tail != "" {
					if err := writeDelta(d, id, model, created, tail, false); err != nil {
						return err
					}
				}
				return d.WriteDone()
			}

			text, _ := decoder.Decode([]byte(chunk.Content))
			if text == "" {
				continue
			}
			if err := writeDelta(d, id, model, created, text, first); err != nil {
				return err
			}
			first = false
		}
	}
}

func writeDelta(d *SSEDispatcher, id, model string, created int64, content string, withRole bool) error {
	delta := types.ChatCompletionDelta{Content: content}
	if withRole {
		delta.Role = "assistant"
	}
	return d.WriteChunk(types.ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []types.ChatCompletionChoice{{Index: 0, Delta: delta}},
	})
}

// timeNow is a variable indirection so tests can stub it if ever needed;
// production code always uses the real clock.
var timeNow = time.Now
