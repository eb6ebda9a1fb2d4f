// Package ingest implements the RAG ingestion pipeline (spec §4.5):
// locate & identify -> select parser -> merge config -> parse ->
// extract -> chunk -> embed -> store, run independently per file so one
// file's failure never aborts the dataset.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/circuitbreaker"
	"github.com/llamafarm/llamafarm-core/internal/embedcheck"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/rag"
	"github.com/llamafarm/llamafarm-core/internal/rag/chunk"
	"github.com/llamafarm/llamafarm-core/internal/rag/extract"
	"github.com/llamafarm/llamafarm-core/internal/rag/parse"
	"github.com/llamafarm/llamafarm-core/internal/rag/store"
	"github.com/llamafarm/llamafarm-core/internal/strategy"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Pipeline wires together the concrete collaborators one ingestion run
// needs: parser/extractor registries, the encoder backend embedding
// chunks, the vector store chunks are written to, and a circuit breaker
// guarding the embedder (spec §4.12).
type Pipeline struct {
	Parsers    parse.Registry
	Extractors extract.Registry
	Encoder    modeladapter.EncoderBackend
	Store      store.VectorStore
	Breaker    *circuitbreaker.Breaker

	log zerolog.Logger
}

// NewPipeline builds a Pipeline with the default parser/extractor
// registries and a circuit breaker of default thresholds (spec §4.12).
func NewPipeline(encoder modeladapter.EncoderBackend, vectorStore store.VectorStore) *Pipeline {
	return &Pipeline{
		Parsers:    parse.DefaultRegistry(),
		Extractors: extract.DefaultRegistry(),
		Encoder:    encoder,
		Store:      vectorStore,
		Breaker:    circuitbreaker.New(),
		log:        logging.Logger.With().Str("component", "rag.ingest").Logger(),
	}
}

// FileSource identifies the file to ingest: either a blob already
// stored in a dataset.Store (Path is the dataset's raw/<hash> file and
// DatasetRoot the dataset's root directory) or an ordinary on-disk path
// outside any dataset store (DatasetRoot empty).
type FileSource struct {
	Path        string
	DatasetRoot string // "<data-root>/lf_data/datasets/<dataset>"; empty if not dataset-relative
}

// identified is the result of the locate & identify step.
type identified struct {
	content          []byte
	originalFilename string
	mimeType         string
	fileHash         string // "" when the file is not dataset-stored
}

// locateAndIdentify implements spec §4.5 step 1: a path under
// <datasetRoot>/raw/<hash> is a content-addressed dataset blob, whose
// original filename and MIME type come from its meta/<hash>.json
// sidecar; anything else is an ordinary file read as-is. Containment is
// checked on canonical (absolute, cleaned) paths, never by substring
// match, so a sibling directory sharing a path prefix is never
// mistaken for containment.
func locateAndIdentify(source FileSource) (identified, error) {
	absPath, err := filepath.Abs(source.Path)
	if err != nil {
		return identified{}, apperr.Wrap(apperr.InvalidPath, "failed to resolve file path", err)
	}
	absPath = filepath.Clean(absPath)

	if source.DatasetRoot != "" {
		rawDir, err := filepath.Abs(filepath.Join(source.DatasetRoot, "raw"))
		if err == nil && isDescendant(filepath.Clean(rawDir), absPath) {
			hash := filepath.Base(absPath)
			meta, err := readSidecar(source.DatasetRoot, hash)
			if err != nil {
				return identified{}, err
			}
			content, err := os.ReadFile(absPath)
			if err != nil {
				return identified{}, apperr.Wrap(apperr.Internal, "failed to read dataset blob", err)
			}
			return identified{content: content, originalFilename: meta.OriginalFilename, mimeType: meta.MimeType, fileHash: hash}, nil
		}
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return identified{}, apperr.Wrap(apperr.Internal, "failed to read file", err)
	}
	mimeType := http.DetectContentType(content)
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return identified{content: content, originalFilename: filepath.Base(absPath), mimeType: mimeType}, nil
}

func isDescendant(base, candidate string) bool {
	if base == candidate {
		return true
	}
	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

func readSidecar(datasetRoot, hash string) (types.DatasetBlobMeta, error) {
	path := filepath.Join(datasetRoot, "meta", hash+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.NotFound, "failed to read dataset sidecar metadata", err)
	}
	var meta types.DatasetBlobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to parse dataset sidecar metadata", err)
	}
	return meta, nil
}

// IngestFile runs the full per-file pipeline (spec §4.5). db is the
// target database name (a VectorStore bucket); embeddingDim and
// normalize come from the database's resolved EmbeddingStrategy;
// failFast controls the zero/NaN/Inf vector handling (spec §4.5 step 7;
// default true).
func (p *Pipeline) IngestFile(
	ctx context.Context,
	source FileSource,
	strat types.DataProcessingStrategy,
	db string,
	embeddingDim int,
	normalize bool,
	failFast bool,
) types.FileTaskResult {
	id, err := locateAndIdentify(source)
	if err != nil {
		return p.fail(id.fileHash, err)
	}

	parserCfg, ok := parse.Select(strat.Parsers, id.originalFilename, id.mimeType)
	if !ok {
		return p.fail(id.fileHash, apperr.New(apperr.InvalidArgument, "no-parser: no parser matches "+id.originalFilename))
	}
	mergedCfg := strategy.ResolveParserConfig(parserCfg, nil)

	parser, ok := p.Parsers[parserCfg.Type]
	if !ok {
		return p.fail(id.fileHash, apperr.New(apperr.InvalidArgument, "no-parser: parser type not registered: "+parserCfg.Type))
	}
	docs, err := parser.Parse(id.content, id.originalFilename, mergedCfg)
	if err != nil {
		return p.fail(id.fileHash, apperr.Wrap(apperr.Internal, "parse failed", err))
	}

	docs, err = p.runExtractors(strat, docs)
	if err != nil {
		p.log.Warn().Err(err).Msg("extractor failed; continuing with unchanged documents")
	}

	chunkSize, _ := mergedCfg["chunk_size"].(int)
	chunkOverlap, _ := mergedCfg["chunk_overlap"].(int)
	chunkStrategy, _ := mergedCfg["chunk_strategy"].(string)
	var chunks []rag.Chunk
	for _, d := range docs {
		for i, text := range chunk.Split(d.Content, chunk.Strategy(chunkStrategy), chunkSize, chunkOverlap) {
			meta := cloneMeta(d.Metadata)
			meta["source"] = d.Source
			meta["file_hash"] = id.fileHash
			chunks = append(chunks, rag.Chunk{ID: fmt.Sprintf("%s#%d", d.ID, i), Content: text, Metadata: meta})
		}
	}
	if len(chunks) == 0 {
		return types.FileTaskResult{FileHash: id.fileHash, Success: true, ChunkCount: 0}
	}

	vectors, err := p.embedWithBreaker(ctx, chunks, normalize)
	if err != nil {
		return p.fail(id.fileHash, err)
	}

	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		vec := vectors[i]
		if reason, ok := embedcheck.Validate(vec, embedcheck.Options{ExpectedDimension: embeddingDim}); !ok {
			if failFast {
				return p.fail(id.fileHash, apperr.New(apperr.InvalidArgument, "embedding validation failed: "+reason))
			}
			vec = make([]float32, embeddingDimOrLen(embeddingDim, vec))
		}
		records[i] = store.Record{ID: c.ID, Content: c.Content, Vector: vec, Metadata: c.Metadata}
	}

	if err := p.Store.Upsert(ctx, db, records); err != nil {
		return p.fail(id.fileHash, apperr.Wrap(apperr.Internal, "failed to write vectors to store", err))
	}

	return types.FileTaskResult{FileHash: id.fileHash, Success: true, ChunkCount: len(records)}
}

func (p *Pipeline) runExtractors(strat types.DataProcessingStrategy, docs []rag.Document) ([]rag.Document, error) {
	result := docs
	for _, cfg := range strat.Extractors {
		ex, ok := p.Extractors[cfg.Type]
		if !ok {
			continue
		}
		next, err := ex.Extract(result, cfg.Config)
		if err != nil {
			p.log.Warn().Err(err).Str("extractor", cfg.Type).Msg("extractor failed; skipping")
			continue
		}
		result = next
	}
	return result, nil
}

// embedWithBreaker embeds every chunk's content in one batch, guarded
// by the circuit breaker and retried with exponential backoff on
// transient failure (spec §4.12).
func (p *Pipeline) embedWithBreaker(ctx context.Context, chunks []rag.Chunk, normalize bool) ([][]float32, error) {
	if !p.Breaker.CanExecute() {
		return nil, apperr.New(apperr.Unavailable, "embedder circuit breaker is open")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	var vectors [][]float32
	err := backoff.Retry(func() error {
		var embedErr error
		vectors, embedErr = p.Encoder.Embed(ctx, texts, normalize)
		return embedErr
	}, b)

	if err != nil {
		p.Breaker.RecordFailure()
		return nil, apperr.Wrap(apperr.Unavailable, "embedding failed", err)
	}
	p.Breaker.RecordSuccess()
	return vectors, nil
}

func (p *Pipeline) fail(fileHash string, err error) types.FileTaskResult {
	return types.FileTaskResult{FileHash: fileHash, Success: false, Error: err.Error()}
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func embeddingDimOrLen(dim int, vec []float32) int {
	if dim > 0 {
		return dim
	}
	return len(vec)
}

// CleanupCancelled implements spec §4.5's cancellation cleanup: given
// the file hashes of a cancelled task's successfully-completed child
// file tasks, invoke DeleteByFileHash for each. Failures are logged
// per-file and do not abort the rest of the cleanup; the caller is
// responsible for enumerating which child tasks succeeded (task-broker
// record inspection lives at the call site, not in this package).
func CleanupCancelled(ctx context.Context, vectorStore store.VectorStore, db string, completedFileHashes []string) {
	log := logging.Logger.With().Str("component", "rag.ingest").Logger()
	for _, hash := range completedFileHashes {
		if err := vectorStore.DeleteByFileHash(ctx, db, hash); err != nil {
			log.Error().Err(err).Str("file_hash", hash).Msg("cleanup failed to delete vectors for cancelled task's file")
		}
	}
}
