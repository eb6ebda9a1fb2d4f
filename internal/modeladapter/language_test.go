package modeladapter

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"

	"github.com/llamafarm/llamafarm-core/internal/provider"
)

// failingProvider always fails to start a completion, letting tests
// exercise ChatBackend's error propagation without needing a real Eino
// stream reader.
type failingProvider struct {
	err error
}

func (p *failingProvider) ID() string                             { return "failing" }
func (p *failingProvider) Name() string                            { return "Failing" }
func (p *failingProvider) Models() []provider.ModelInfo            { return nil }
func (p *failingProvider) ChatModel() model.ToolCallingChatModel    { return nil }
func (p *failingProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return nil, p.err
}

func TestChatBackend_LoadUnloadIdempotent(t *testing.T) {
	b := NewChatBackend(&failingProvider{}, "test-model")
	if b.isLoaded() {
		t.Fatal("expected fresh backend unloaded")
	}
	if err := b.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := b.Load(); err != nil {
		t.Fatalf("second load should be a no-op, not an error: %v", err)
	}
	if err := b.Unload(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if err := b.Unload(); err != nil {
		t.Fatalf("second unload should be a no-op, not an error: %v", err)
	}
}

func TestChatBackend_GenerateStream_PropagatesProviderError(t *testing.T) {
	wantErr := errors.New("upstream unavailable")
	b := NewChatBackend(&failingProvider{err: wantErr}, "test-model")

	_, err := b.GenerateStream(context.Background(), GenerateRequest{MaxTokens: 16})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
}

func TestChatBackend_Generate_PropagatesProviderError(t *testing.T) {
	wantErr := errors.New("upstream unavailable")
	b := NewChatBackend(&failingProvider{err: wantErr}, "test-model")

	_, err := b.Generate(context.Background(), GenerateRequest{MaxTokens: 16})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
}
