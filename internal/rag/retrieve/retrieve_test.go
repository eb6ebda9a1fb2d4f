package retrieve

import (
	"context"
	"testing"

	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/rag/store"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.BoltStore) {
	t.Helper()
	vs, err := store.OpenBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() { vs.Close() })
	encoder := modeladapter.NewHashingEncoderBackend(16)
	return NewPipeline(encoder, vs), vs
}

func seedDocs(t *testing.T, p *Pipeline, vs *store.BoltStore, db string, texts []string) {
	t.Helper()
	vecs, err := p.Encoder.Embed(context.Background(), texts, true)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	records := make([]store.Record, len(texts))
	for i, text := range texts {
		records[i] = store.Record{ID: text, Content: text, Vector: vecs[i]}
	}
	if err := vs.Upsert(context.Background(), db, records); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestRetrieve_RequiresStrategy(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.Retrieve(context.Background(), Request{Database: "docs", Query: "hello"})
	if err == nil {
		t.Fatal("expected an error when no retrieval strategy is resolved")
	}
}

func TestRetrieve_TopKFromRequestOverridesStrategy(t *testing.T) {
	p, vs := newTestPipeline(t)
	seedDocs(t, p, vs, "docs", []string{"alpha beta", "gamma delta", "epsilon zeta"})

	results, err := p.Retrieve(context.Background(), Request{
		Database:       "docs",
		Query:          "alpha",
		TopK:           1,
		RetrievalStrat: &types.RetrievalStrategy{Mode: "similarity", TopK: 10},
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the request's topK=1 to win over the strategy's topK=10, got %d results", len(results))
	}
}

func TestRetrieve_TopKFallsBackToStrategyThenDefault(t *testing.T) {
	p, vs := newTestPipeline(t)
	seedDocs(t, p, vs, "docs", []string{"one", "two", "three"})

	results, err := p.Retrieve(context.Background(), Request{
		Database:       "docs",
		Query:          "one",
		RetrievalStrat: &types.RetrievalStrategy{Mode: "similarity", TopK: 2},
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the strategy's topK=2 to apply, got %d results", len(results))
	}

	results, err = p.Retrieve(context.Background(), Request{
		Database:       "docs",
		Query:          "one",
		RetrievalStrat: &types.RetrievalStrategy{Mode: "similarity"},
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected the default topK=10 to return all 3 documents, got %d results", len(results))
	}
}

func TestRetrieve_ScoreThresholdFiltersLowScores(t *testing.T) {
	p, vs := newTestPipeline(t)
	seedDocs(t, p, vs, "docs", []string{"completely unrelated content about gardening"})

	threshold := 0.999
	results, err := p.Retrieve(context.Background(), Request{
		Database:       "docs",
		Query:          "quantum computing hardware",
		RetrievalStrat: &types.RetrievalStrategy{Mode: "similarity", TopK: 10},
		ScoreThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected an unreasonably high score threshold to filter out all results, got %+v", results)
	}
}

func TestRetrieve_RerankReordersByNewScore(t *testing.T) {
	p, vs := newTestPipeline(t)
	seedDocs(t, p, vs, "docs", []string{"alpha", "beta", "gamma"})

	results, err := p.Retrieve(context.Background(), Request{
		Database: "docs",
		Query:    "alpha",
		RetrievalStrat: &types.RetrievalStrategy{
			Mode:     string(store.Rerank),
			TopK:     3,
			Reranker: "default",
		},
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one reranked result")
	}
	if results[0].ID != "alpha" {
		t.Fatalf("expected the exact-match document to rank first after rerank, got %q", results[0].ID)
	}
}

func TestBatchRetrieve_PreservesOrder(t *testing.T) {
	p, vs := newTestPipeline(t)
	seedDocs(t, p, vs, "docs", []string{"alpha", "beta"})

	strat := &types.RetrievalStrategy{Mode: "similarity", TopK: 5}
	reqs := []Request{
		{Database: "docs", Query: "alpha", RetrievalStrat: strat},
		{Database: "docs", Query: "beta", RetrievalStrat: strat},
	}

	results, err := p.BatchRetrieve(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 result sets, got %d", len(results))
	}
}

func TestBatchRetrieve_ReturnsEarlyOnError(t *testing.T) {
	p, _ := newTestPipeline(t)
	reqs := []Request{
		{Database: "docs", Query: "alpha", RetrievalStrat: nil},
	}
	_, err := p.BatchRetrieve(context.Background(), reqs)
	if err == nil {
		t.Fatal("expected an error from a request with no resolved strategy")
	}
}
