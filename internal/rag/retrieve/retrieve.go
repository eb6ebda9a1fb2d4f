// Package retrieve implements the RAG retrieval pipeline (spec §4.6):
// resolve strategy -> embed query -> query vector store -> threshold ->
// optional rerank -> format result.
package retrieve

import (
	"context"
	"sort"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/rag/store"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Result is one scored retrieval hit, spec §4.6 step 6's
// {id, content, metadata, score} shape.
type Result struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Request carries one retrieval call's parameters (spec §4.6).
type Request struct {
	Database        string
	Query           string
	TopK            int
	RetrievalStrat  *types.RetrievalStrategy // already resolved, spec §4.7
	Filters         map[string]any
	ScoreThreshold  *float64
}

// Pipeline wires the encoder backend embedding queries (and reranking,
// when a reranker is configured) to the vector store being searched.
type Pipeline struct {
	Encoder modeladapter.EncoderBackend
	Store   store.VectorStore
}

// NewPipeline builds a retrieval Pipeline over the given encoder and
// vector store.
func NewPipeline(encoder modeladapter.EncoderBackend, vectorStore store.VectorStore) *Pipeline {
	return &Pipeline{Encoder: encoder, Store: vectorStore}
}

// Retrieve runs one query end to end (spec §4.6 steps 2-6). Strategy
// resolution (step 1) happens at the call site via internal/strategy,
// since it needs the full project Components to resolve a named
// strategy; Retrieve takes the already-resolved RetrievalStrategy.
func (p *Pipeline) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	if req.RetrievalStrat == nil {
		return nil, apperr.New(apperr.InvalidArgument, "no retrieval strategy resolved for request")
	}

	vectors, err := p.Encoder.Embed(ctx, []string{req.Query}, true)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to embed query", err)
	}
	queryVector := vectors[0]

	topK := req.TopK
	if topK <= 0 {
		topK = req.RetrievalStrat.TopK
	}
	if topK <= 0 {
		topK = 10
	}

	// Pull more candidates than requested when a rerank pass will
	// re-sort them, so reranking has material to work with.
	fetchK := topK
	if req.RetrievalStrat.Mode == string(store.Rerank) && req.RetrievalStrat.Reranker != "" {
		fetchK = topK * 4
	}

	candidates, err := p.Store.Query(ctx, req.Database, queryVector, fetchK, req.Filters)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "vector store query failed", err)
	}

	threshold := req.ScoreThreshold
	if threshold == nil && req.RetrievalStrat.ScoreThreshold != 0 {
		t := req.RetrievalStrat.ScoreThreshold
		threshold = &t
	}
	if threshold != nil {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.Score >= *threshold {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	if req.RetrievalStrat.Reranker != "" {
		candidates, err = p.rerank(ctx, req.Query, candidates)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "rerank failed", err)
		}
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{ID: c.ID, Content: c.Content, Metadata: c.Metadata, Score: c.Score}
	}
	return results, nil
}

// rerank re-scores candidates against the query using the encoder's
// Rerank operation and re-sorts descending.
func (p *Pipeline) rerank(ctx context.Context, query string, candidates []store.Candidate) ([]store.Candidate, error) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}
	ranked, err := p.Encoder.Rerank(ctx, query, docs)
	if err != nil {
		return nil, err
	}
	out := make([]store.Candidate, len(ranked))
	for i, r := range ranked {
		c := candidates[r.Index]
		c.Score = r.Score
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// BatchRetrieve runs Retrieve for each request in reqs, in order,
// returning the result lists in the same order (spec §4.6 batch
// search).
func (p *Pipeline) BatchRetrieve(ctx context.Context, reqs []Request) ([][]Result, error) {
	out := make([][]Result, len(reqs))
	for i, req := range reqs {
		results, err := p.Retrieve(ctx, req)
		if err != nil {
			return nil, err
		}
		out[i] = results
	}
	return out, nil
}
