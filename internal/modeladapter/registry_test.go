package modeladapter

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"

	"github.com/llamafarm/llamafarm-core/internal/modelcache"
	"github.com/llamafarm/llamafarm-core/internal/provider"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// catalogProvider is a stub provider.Provider exposing a fixed model
// catalog, for testing Manager's family-resolution logic without a real
// Eino backend.
type catalogProvider struct {
	id     string
	models []provider.ModelInfo
}

func (p *catalogProvider) ID() string                  { return p.id }
func (p *catalogProvider) Name() string                { return p.id }
func (p *catalogProvider) Models() []provider.ModelInfo { return p.models }
func (p *catalogProvider) ChatModel() model.ToolCallingChatModel { return nil }
func (p *catalogProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return nil, nil
}

func newTestManager(t *testing.T) (*Manager, *modelcache.Cache) {
	t.Helper()
	cache := modelcache.New()
	t.Cleanup(cache.Close)

	registry := provider.NewRegistry()
	registry.Register(&catalogProvider{
		id: "anthropic",
		models: []provider.ModelInfo{
			{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: "anthropic"},
		},
	})
	return NewManager(cache, registry), cache
}

func TestManager_Language_ResolvesByModelID(t *testing.T) {
	m, _ := newTestManager(t)
	rec := types.ModelRecord{Name: "chat", ID: "claude-sonnet-4-20250514:none", Family: "language"}

	backend, err := m.Language(rec)
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	if _, ok := backend.(*ChatBackend); !ok {
		t.Fatalf("expected *ChatBackend, got %T", backend)
	}
}

func TestManager_Language_UnknownModelFails(t *testing.T) {
	m, _ := newTestManager(t)
	rec := types.ModelRecord{Name: "chat", ID: "nonexistent-model:none", Family: "language"}

	if _, err := m.Language(rec); err == nil {
		t.Fatal("expected an error resolving an unregistered model")
	}
}

func TestManager_Language_CachesByRecordID(t *testing.T) {
	m, _ := newTestManager(t)
	rec := types.ModelRecord{Name: "chat", ID: "claude-sonnet-4-20250514:none", Family: "language"}

	first, err := m.Language(rec)
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	second, err := m.Language(rec)
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	if first != second {
		t.Fatal("expected the same backend instance to be returned from cache on second resolve")
	}
}

func TestManager_Encoder_ResolvesHashingBackend(t *testing.T) {
	m, _ := newTestManager(t)
	rec := types.ModelRecord{Name: "embedder", ID: "local-hashing:none", Family: "encoder"}

	backend, err := m.Encoder(rec)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	if _, ok := backend.(*HashingEncoderBackend); !ok {
		t.Fatalf("expected *HashingEncoderBackend, got %T", backend)
	}
}

func TestManager_Stat_ResolvesEWMABackend(t *testing.T) {
	m, _ := newTestManager(t)
	for _, family := range []string{"anomaly", "drift", "timeseries", "adtk"} {
		rec := types.ModelRecord{Name: "detector", ID: "ewma:none", Family: family}
		backend, err := m.Stat(rec)
		if err != nil {
			t.Fatalf("stat (%s): %v", family, err)
		}
		if _, ok := backend.(*EWMABackend); !ok {
			t.Fatalf("expected *EWMABackend for family %s, got %T", family, backend)
		}
	}
}

func TestManager_Stat_RejectsNonStatFamily(t *testing.T) {
	m, _ := newTestManager(t)
	rec := types.ModelRecord{Name: "chat", ID: "claude-sonnet-4-20250514:none", Family: "language"}
	if _, err := m.Stat(rec); err == nil {
		t.Fatal("expected an error resolving a language record through Stat")
	}
}

func TestManager_Evict_DropsCachedBackend(t *testing.T) {
	m, _ := newTestManager(t)
	rec := types.ModelRecord{Name: "embedder", ID: "local-hashing:none", Family: "encoder"}

	first, err := m.Encoder(rec)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	m.Evict(rec)

	second, err := m.Encoder(rec)
	if err != nil {
		t.Fatalf("encoder after evict: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh backend instance after eviction")
	}
}
