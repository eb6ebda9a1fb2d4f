package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/config"
	"github.com/llamafarm/llamafarm-core/internal/dataset"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/internal/mcp"
	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/rag/ingest"
	"github.com/llamafarm/llamafarm-core/internal/rag/retrieve"
	ragstore "github.com/llamafarm/llamafarm-core/internal/rag/store"
	"github.com/llamafarm/llamafarm-core/internal/strategy"
	"github.com/llamafarm/llamafarm-core/internal/taskbroker"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// projectRuntime bundles the per-project collaborators that sit below
// the shared process-wide ones (model cache, provider registry,
// session manager): the project's loaded manifest, its vector store,
// its dataset blob store, and its task broker.
type projectRuntime struct {
	namespace string
	project   string

	cfg      *types.ProjectConfig
	vectors  *ragstore.BoltStore
	datasets *dataset.Store
	tasks    *taskbroker.Broker
	dispatch *taskbroker.LocalDispatcher
	mcp      *mcp.Client
}

func (pr *projectRuntime) close() {
	pr.vectors.Close()
	pr.tasks.Close()
	if pr.mcp != nil {
		pr.mcp.Close()
	}
}

// mcpTools returns the chat-request tool definitions backed by this
// project's connected MCP servers (spec §4 tool use), empty when no
// mcp_servers are configured.
func (pr *projectRuntime) mcpTools() []types.ToolDefinition {
	if pr.mcp == nil {
		return nil
	}
	tools := pr.mcp.Tools()
	defs := make([]types.ToolDefinition, len(tools))
	for i, t := range tools {
		var params map[string]any
		if len(t.InputSchema) > 0 {
			_ = json.Unmarshal(t.InputSchema, &params)
		}
		defs[i] = types.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		}
	}
	return defs
}

// ingestPipelineFor resolves dbName's embedding/data-processing
// strategy and returns an ingest.Pipeline bound to it. A fresh Pipeline
// is built per call since construction is cheap (parser/extractor
// registries and the circuit breaker are lightweight); only the
// underlying vector store and encoder backend are shared.
func (pr *projectRuntime) ingestPipelineFor(models *modeladapter.Manager, dbName string) (*ingest.Pipeline, error) {
	encoder, err := pr.encoderFor(models, dbName)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(encoder, pr.vectors), nil
}

// retrievePipelineFor mirrors ingestPipelineFor for the retrieval side.
func (pr *projectRuntime) retrievePipelineFor(models *modeladapter.Manager, dbName string) (*retrieve.Pipeline, error) {
	encoder, err := pr.encoderFor(models, dbName)
	if err != nil {
		return nil, err
	}
	return retrieve.NewPipeline(encoder, pr.vectors), nil
}

func (pr *projectRuntime) database(dbName string) (types.DatabaseConfig, error) {
	for _, db := range pr.cfg.RAG.Databases {
		if db.Name == dbName {
			return strategy.ResolveDatabase(db, pr.cfg.Components)
		}
	}
	return types.DatabaseConfig{}, apperr.New(apperr.NotFound, "unknown database: "+dbName)
}

func (pr *projectRuntime) encoderFor(models *modeladapter.Manager, dbName string) (modeladapter.EncoderBackend, error) {
	db, err := pr.database(dbName)
	if err != nil {
		return nil, err
	}
	if db.EmbeddingStrategy == nil {
		return nil, apperr.New(apperr.Internal, "database "+dbName+" resolved without an embedding strategy")
	}
	rec := types.ModelRecord{
		Family: "embedding",
		ID:     db.EmbeddingStrategy.Provider + "/" + db.EmbeddingStrategy.Model,
	}
	return models.Encoder(rec)
}

func (pr *projectRuntime) retrievalStrategy(dbName string) (*types.RetrievalStrategy, error) {
	db, err := pr.database(dbName)
	if err != nil {
		return nil, err
	}
	return db.RetrievalStrategy, nil
}

func (pr *projectRuntime) dataProcessingStrategy(datasetName string) (types.DataProcessingStrategy, string, error) {
	for _, ds := range pr.cfg.Datasets {
		if ds.Name != datasetName {
			continue
		}
		strat, ok := pr.cfg.Components.DataProcessingStrategies[ds.DataProcessingStrategyRef]
		if !ok {
			return types.DataProcessingStrategy{}, "", apperr.New(apperr.Internal, "dataset "+datasetName+" references unknown strategy "+ds.DataProcessingStrategyRef)
		}
		return strat, ds.Database, nil
	}
	return types.DataProcessingStrategy{}, "", apperr.New(apperr.NotFound, "unknown dataset: "+datasetName)
}

// projectRegistry lazily builds and caches one projectRuntime per
// (namespace, project). A cached runtime is rebuilt from the on-disk
// manifest only after invalidate drops it (a project PUT or delete, a
// database create, a dataset file change); the manifest's ConfigHash is
// not compared.
type projectRegistry struct {
	paths  *config.Paths
	models *modeladapter.Manager

	mu      sync.Mutex
	runtime map[string]*projectRuntime
}

func newProjectRegistry(paths *config.Paths, models *modeladapter.Manager) *projectRegistry {
	return &projectRegistry{paths: paths, models: models, runtime: make(map[string]*projectRuntime)}
}

func projectKey(namespace, project string) string {
	return namespace + "/" + project
}

// get returns the cached runtime for (namespace, project), building it
// on first use.
func (r *projectRegistry) get(namespace, project string) (*projectRuntime, error) {
	key := projectKey(namespace, project)

	r.mu.Lock()
	defer r.mu.Unlock()

	if pr, ok := r.runtime[key]; ok {
		return pr, nil
	}

	cfg, err := config.LoadFrom(r.paths, namespace, project)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "load project manifest", err)
	}

	pr, err := r.build(namespace, project, cfg)
	if err != nil {
		return nil, err
	}
	r.runtime[key] = pr
	return pr, nil
}

// invalidate drops a cached runtime (after a config update or project
// delete), closing its resources first.
func (r *projectRegistry) invalidate(namespace, project string) {
	key := projectKey(namespace, project)

	r.mu.Lock()
	defer r.mu.Unlock()

	if pr, ok := r.runtime[key]; ok {
		pr.close()
		delete(r.runtime, key)
	}
}

func (r *projectRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pr := range r.runtime {
		pr.close()
	}
	r.runtime = make(map[string]*projectRuntime)
}

func (r *projectRegistry) build(namespace, project string, cfg *types.ProjectConfig) (*projectRuntime, error) {
	projectDir := r.paths.ProjectDir(namespace, project)

	vectors, err := ragstore.OpenBoltStore(filepath.Join(projectDir, "lf_data", "stores"))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "open vector store", err)
	}

	datasets := dataset.New(r.paths.DatasetsDir(namespace, project))

	broker, err := taskbroker.Open(filepath.Join(projectDir, "lf_data", "tasks.db"), nil)
	if err != nil {
		vectors.Close()
		return nil, apperr.Wrap(apperr.Internal, "open task broker", err)
	}
	dispatcher := taskbroker.NewLocalDispatcher(broker, 4)
	broker.SetDispatcher(dispatcher)

	pr := &projectRuntime{
		namespace: namespace,
		project:   project,
		cfg:       cfg,
		vectors:   vectors,
		datasets:  datasets,
		tasks:     broker,
		dispatch:  dispatcher,
		mcp:       connectMCPServers(namespace, project, cfg.MCPServers),
	}
	dispatcher.Register("ingest_dataset", pr.runIngestTask(r.models))
	return pr, nil
}

// connectMCPServers builds an mcp.Client and connects every configured
// server (spec §4 tool use). A server that fails to connect is recorded
// with StatusFailed by Client.AddServer rather than aborting project
// load: one misbehaving tool server shouldn't take down chat completions
// for a project that still has working models and RAG.
func connectMCPServers(namespace, project string, servers map[string]types.MCPServerConfig) *mcp.Client {
	if len(servers) == 0 {
		return nil
	}
	client := mcp.NewClient()
	for name, cfg := range servers {
		mcpCfg := &mcp.Config{
			Enabled:     cfg.Enabled,
			Type:        mcp.TransportType(cfg.Type),
			URL:         cfg.URL,
			Headers:     cfg.Headers,
			Command:     cfg.Command,
			Environment: cfg.Environment,
			Timeout:     cfg.TimeoutMs,
		}
		if err := client.AddServer(context.Background(), name, mcpCfg); err != nil {
			logging.Logger.Warn().Err(err).
				Str("namespace", namespace).Str("project", project).Str("server", name).
				Msg("failed to connect mcp server")
		}
	}
	return client
}

// runIngestTask builds the "ingest_dataset" task handler (spec §4.5):
// process every file hash of a dataset through its data-processing
// strategy, returning one types.FileTaskResult per file as the task's
// result so a partial failure never aborts the rest of the batch.
func (pr *projectRuntime) runIngestTask(models *modeladapter.Manager) taskbroker.Handler {
	return func(ctx context.Context, taskID string, args map[string]any) (any, error) {
		datasetName, _ := args["dataset"].(string)
		hashes := toStringSlice(args["file_hashes"])

		strat, dbName, err := pr.dataProcessingStrategy(datasetName)
		if err != nil {
			return nil, err
		}
		pipeline, err := pr.ingestPipelineFor(models, dbName)
		if err != nil {
			return nil, err
		}
		db, err := pr.database(dbName)
		if err != nil {
			return nil, err
		}
		dim := 0
		if db.EmbeddingStrategy != nil {
			dim = db.EmbeddingStrategy.Dimension
		}
		normalize := db.EmbeddingStrategy != nil && db.EmbeddingStrategy.Normalize

		datasetRoot := filepath.Join(pr.datasets.Root(), datasetName)
		results := make([]types.FileTaskResult, 0, len(hashes))
		for _, hash := range hashes {
			if !pr.tasks.CanProceed(taskID) {
				break
			}
			source := ingest.FileSource{
				Path:        filepath.Join(datasetRoot, "raw", hash),
				DatasetRoot: datasetRoot,
			}
			results = append(results, pipeline.IngestFile(ctx, source, strat, dbName, dim, normalize, true))
		}
		return results, nil
	}
}

// toStringSlice normalizes a task arg that may arrive as []string
// (submitted in-process) or []any (round-tripped through the durable
// store's JSON persistence after a restart).
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
