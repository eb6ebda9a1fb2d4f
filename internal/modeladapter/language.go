package modeladapter

import (
	"context"
	"io"
	"strings"

	"github.com/llamafarm/llamafarm-core/internal/provider"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// GenerateRequest carries a language backend's generate/generate_stream
// arguments (spec §4.3).
type GenerateRequest struct {
	Messages       []types.ChatMessage
	Tools          []types.ToolDefinition
	MaxTokens      int
	Temperature    float64
	TopP           float64
	Stop           []string
	ThinkingBudget int // 0 disables the thinking-budget logits processor
}

// TokenChunk is one element of a generate_stream async sequence. Err is
// set on the final chunk if the stream ended abnormally; a nil Err with
// the channel closed means the stream completed normally.
type TokenChunk struct {
	Content string
	Done    bool
	Err     error
}

// LanguageBackend is the Model Adapter Contract's language family:
// generate and generate_stream, plus the common load/unload lifecycle.
type LanguageBackend interface {
	Backend
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan TokenChunk, error)
}

// ChatBackend is the language family backend wired to an
// internal/provider.Provider (Anthropic/OpenAI/ARK via Eino). The
// provider is bound at construction; Load and Unload only toggle the
// backend's ready state and do not open or release the provider.
type ChatBackend struct {
	lifecycle
	p       provider.Provider
	modelID string
}

// NewChatBackend builds a ChatBackend for the given provider and model
// ID. It is not loaded until Load is called.
func NewChatBackend(p provider.Provider, modelID string) *ChatBackend {
	return &ChatBackend{p: p, modelID: modelID}
}

// Load marks the backend ready. It is idempotent: a second call is a
// no-op.
func (b *ChatBackend) Load() error {
	b.markLoaded()
	return nil
}

// Unload marks the backend not-ready. Idempotent, and safe to call even
// if Load never succeeded.
func (b *ChatBackend) Unload() error {
	b.markUnloaded()
	return nil
}

// Generate runs a non-streaming completion by draining GenerateStream.
func (b *ChatBackend) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	chunks, err := b.GenerateStream(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range chunks {
		sb.WriteString(chunk.Content)
		if chunk.Err != nil {
			return "", chunk.Err
		}
	}
	return sb.String(), nil
}

// GenerateStream streams completion chunks from the underlying
// provider, applying the thinking-budget logits processor when
// req.ThinkingBudget > 0 (spec §4.3).
func (b *ChatBackend) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan TokenChunk, error) {
	stream, err := b.p.CreateCompletion(ctx, &provider.CompletionRequest{
		Model:       b.modelID,
		Messages:    provider.ConvertToEinoMessages(req.Messages),
		Tools:       provider.ConvertToEinoTools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopWords:   req.Stop,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan TokenChunk)
	var proc *thinkingBudgetProcessor
	if req.ThinkingBudget > 0 {
		proc = newThinkingBudgetProcessor(req.ThinkingBudget)
	}

	go func() {
		defer close(out)
		defer stream.Close()
		for {
			msg, err := stream.Recv()
			if err == io.EOF {
				select {
				case out <- TokenChunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				select {
				case out <- TokenChunk{Done: true, Err: err}:
				case <-ctx.Done():
				}
				return
			}
			content := msg.Content
			if proc != nil {
				content = proc.process(content)
			}
			select {
			case out <- TokenChunk{Content: content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
