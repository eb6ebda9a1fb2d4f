package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/llamafarm/llamafarm-core/internal/circuitbreaker"
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
	p := NewPipeline(modeladapter.NewHashingEncoderBackend(16), vs)
	return p, vs
}

func textStrategy() types.DataProcessingStrategy {
	return types.DataProcessingStrategy{
		Parsers: []types.ParserConfig{
			{Type: "text", Extensions: []string{".txt"}},
		},
	}
}

func TestIngestFile_OrdinaryFileSucceeds(t *testing.T) {
	p, vs := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hello world, this is a note."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result := p.IngestFile(context.Background(), FileSource{Path: path}, textStrategy(), "docs", 16, true, true)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.ChunkCount == 0 {
		t.Fatal("expected at least one chunk")
	}

	candidates, err := vs.Query(context.Background(), "docs", make([]float32, 16), 10, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(candidates) != result.ChunkCount {
		t.Fatalf("expected %d stored vectors, got %d", result.ChunkCount, len(candidates))
	}
}

func TestIngestFile_NoParserMatchFails(t *testing.T) {
	p, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "note.xyz")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result := p.IngestFile(context.Background(), FileSource{Path: path}, textStrategy(), "docs", 16, true, true)
	if result.Success {
		t.Fatal("expected failure when no parser matches the file")
	}
}

func TestIngestFile_DatasetStoredBlobReadsSidecar(t *testing.T) {
	p, vs := newTestPipeline(t)
	datasetRoot := t.TempDir()
	rawDir := filepath.Join(datasetRoot, "raw")
	metaDir := filepath.Join(datasetRoot, "meta")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatalf("mkdir raw: %v", err)
	}
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatalf("mkdir meta: %v", err)
	}

	hash := "deadbeef"
	if err := os.WriteFile(filepath.Join(rawDir, hash), []byte("stored content here."), 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	meta := types.DatasetBlobMeta{OriginalFilename: "report.txt", MimeType: "text/plain", Hash: hash}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, hash+".json"), metaBytes, 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	source := FileSource{Path: filepath.Join(rawDir, hash), DatasetRoot: datasetRoot}
	result := p.IngestFile(context.Background(), source, textStrategy(), "docs", 16, true, true)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.FileHash != hash {
		t.Fatalf("expected file hash %q resolved from the dataset path, got %q", hash, result.FileHash)
	}

	if err := vs.DeleteByFileHash(context.Background(), "docs", hash); err != nil {
		t.Fatalf("delete by file hash: %v", err)
	}
}

func TestIngestFile_ExtractorFailureContinues(t *testing.T) {
	p, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hello world, this is fine."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	strat := textStrategy()
	strat.Extractors = []types.ExtractorConfig{{Type: "does_not_exist"}}

	result := p.IngestFile(context.Background(), FileSource{Path: path}, strat, "docs", 16, true, true)
	if !result.Success {
		t.Fatalf("expected an unregistered extractor to be skipped, not fail the file: %s", result.Error)
	}
}

func TestIngestFile_CircuitBreakerOpenShortCircuits(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Breaker = circuitbreaker.New(circuitbreaker.WithFailureThreshold(1))
	p.Breaker.RecordFailure()

	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result := p.IngestFile(context.Background(), FileSource{Path: path}, textStrategy(), "docs", 16, true, true)
	if result.Success {
		t.Fatal("expected the open circuit breaker to fail the file")
	}
}

func TestCleanupCancelled_DeletesEachCompletedFile(t *testing.T) {
	_, vs := newTestPipeline(t)
	ctx := context.Background()
	err := vs.Upsert(ctx, "docs", []store.Record{
		{ID: "a#0", Content: "x", Vector: []float32{1, 0}, Metadata: map[string]any{"file_hash": "h1"}},
		{ID: "b#0", Content: "y", Vector: []float32{0, 1}, Metadata: map[string]any{"file_hash": "h2"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	CleanupCancelled(ctx, vs, "docs", []string{"h1"})

	results, err := vs.Query(ctx, "docs", []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b#0" {
		t.Fatalf("expected only the non-cleaned-up record to remain, got %+v", results)
	}
}
