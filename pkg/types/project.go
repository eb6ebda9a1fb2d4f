// Package types holds the core data model shared across the orchestration
// substrate: project configuration, model identity, sessions, tasks,
// datasets and event log records.
package types

// ProjectConfig is the immutable, loaded snapshot of a project's
// llamafarm.yaml manifest.
type ProjectConfig struct {
	Name      string     `yaml:"name" json:"name"`
	Namespace string     `yaml:"namespace" json:"namespace"`
	Runtime   Runtime    `yaml:"runtime" json:"runtime"`
	Prompts   []PromptSet `yaml:"prompts" json:"prompts"`
	Components Components `yaml:"components" json:"components"`
	RAG       RAGConfig   `yaml:"rag" json:"rag"`
	Datasets  []DatasetConfig `yaml:"datasets" json:"datasets"`
	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`

	// ConfigHash is computed at load time (not part of the YAML) and
	// recorded on every event log entry so activity can be correlated
	// to the exact config snapshot that produced it.
	ConfigHash string `yaml:"-" json:"configHash"`
}

// MCPServerConfig declares one Model Context Protocol server a project's
// chat completions may draw tools from (spec §4 tool use).
type MCPServerConfig struct {
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Type        string            `yaml:"type" json:"type"` // "stdio" | "local" | "remote"
	URL         string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Command     []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	TimeoutMs   int               `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// Runtime lists the models a project may load, plus the default.
type Runtime struct {
	Models       []ModelRecord `yaml:"models" json:"models"`
	DefaultModel string        `yaml:"default_model" json:"default_model"`
}

// ModelRecord describes one model entry in a project's runtime list.
type ModelRecord struct {
	Name          string `yaml:"name" json:"name"`
	ID            string `yaml:"id" json:"id"` // "<model_id>:<quantization>" wire form
	Family        string `yaml:"family" json:"family"`
	ContextWindow int    `yaml:"context_window" json:"context_window"`
	Normalization string `yaml:"normalization,omitempty" json:"normalization,omitempty"`
}

// PromptSet is an ordered list of role/content messages, reusable across
// chat requests (e.g. a system prompt template for a given agent persona).
type PromptSet struct {
	Name     string          `yaml:"name" json:"name"`
	Messages []PromptMessage `yaml:"messages" json:"messages"`
}

// PromptMessage is one role/content entry in a PromptSet.
type PromptMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// Components holds named, reusable strategy definitions referenced by
// rag.databases and datasets.
type Components struct {
	EmbeddingStrategies     map[string]EmbeddingStrategy     `yaml:"embedding_strategies,omitempty" json:"embedding_strategies,omitempty"`
	RetrievalStrategies     map[string]RetrievalStrategy      `yaml:"retrieval_strategies,omitempty" json:"retrieval_strategies,omitempty"`
	DataProcessingStrategies map[string]DataProcessingStrategy `yaml:"data_processing_strategies,omitempty" json:"data_processing_strategies,omitempty"`
	Defaults DefaultStrategies `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// DefaultStrategies names the fallback strategy for a slot when a
// database request supplies neither a reference nor an inline definition.
type DefaultStrategies struct {
	EmbeddingStrategy string `yaml:"embedding_strategy,omitempty" json:"embedding_strategy,omitempty"`
	RetrievalStrategy string `yaml:"retrieval_strategy,omitempty" json:"retrieval_strategy,omitempty"`
}

// EmbeddingStrategy configures an embedder: provider, model, dimension,
// normalization and batch sizing.
type EmbeddingStrategy struct {
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	Dimension int    `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	Normalize bool   `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
}

// RetrievalStrategy configures similarity/hybrid/rerank retrieval
// behaviour for a database.
type RetrievalStrategy struct {
	Name           string  `yaml:"name,omitempty" json:"name,omitempty"`
	Mode           string  `yaml:"mode" json:"mode"` // "similarity" | "hybrid" | "rerank"
	TopK           int     `yaml:"top_k,omitempty" json:"top_k,omitempty"`
	ScoreThreshold float64 `yaml:"score_threshold,omitempty" json:"score_threshold,omitempty"`
	Reranker       string  `yaml:"reranker,omitempty" json:"reranker,omitempty"`
	DistanceMetric string  `yaml:"distance_metric,omitempty" json:"distance_metric,omitempty"`
}

// DataProcessingStrategy names the ordered parser list (and optional
// extractors) used to convert raw files into documents.
type DataProcessingStrategy struct {
	Name       string          `yaml:"name,omitempty" json:"name,omitempty"`
	Parsers    []ParserConfig  `yaml:"parsers" json:"parsers"`
	Extractors []ExtractorConfig `yaml:"extractors,omitempty" json:"extractors,omitempty"`
}

// ParserConfig is one entry in a data-processing strategy's parser list.
// Type-specific knobs live in Config, merged by the strategy resolver
// cascade (§4.7): built-in defaults for Type, then this struct's Config,
// then any per-request override.
type ParserConfig struct {
	Type       string         `yaml:"type" json:"type"`
	Extensions []string       `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	MimeTypes  []string       `yaml:"mime_types,omitempty" json:"mime_types,omitempty"`
	Patterns   []string       `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Config     map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// ExtractorConfig is one entry in a data-processing strategy's extractor
// list (document -> document transform, e.g. PII redaction, metadata
// enrichment).
type ExtractorConfig struct {
	Type   string         `yaml:"type" json:"type"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// RAGConfig lists the named databases a project exposes for retrieval.
type RAGConfig struct {
	Databases []DatabaseConfig `yaml:"databases" json:"databases"`
}

// DatabaseConfig binds a vector store to an embedding strategy and a
// retrieval strategy, either inline or by reference into Components.
type DatabaseConfig struct {
	Name                string             `yaml:"name" json:"name"`
	VectorStore         VectorStoreConfig  `yaml:"vector_store" json:"vector_store"`
	EmbeddingStrategyRef string            `yaml:"embedding_strategy,omitempty" json:"embedding_strategy,omitempty"`
	EmbeddingStrategy    *EmbeddingStrategy `yaml:"embedding_strategy_inline,omitempty" json:"embedding_strategy_inline,omitempty"`
	RetrievalStrategyRef string            `yaml:"retrieval_strategy,omitempty" json:"retrieval_strategy,omitempty"`
	RetrievalStrategy    *RetrievalStrategy `yaml:"retrieval_strategy_inline,omitempty" json:"retrieval_strategy_inline,omitempty"`
}

// VectorStoreConfig is the (external-collaborator) vector store binding;
// the concrete client protocol is out of scope per spec §1, this only
// carries the addressing information a store adapter needs.
type VectorStoreConfig struct {
	Provider string         `yaml:"provider" json:"provider"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// DatasetConfig binds a data-processing strategy to a database and a
// list of already-uploaded file hashes.
type DatasetConfig struct {
	Name                     string   `yaml:"name" json:"name"`
	Database                 string   `yaml:"database" json:"database"`
	DataProcessingStrategyRef string  `yaml:"data_processing_strategy" json:"data_processing_strategy"`
	FileHashes               []string `yaml:"file_hashes,omitempty" json:"file_hashes,omitempty"`
}
