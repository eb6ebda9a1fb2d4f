// Package strategy implements the three-level config cascade (built-in
// defaults -> strategy config -> request override) used to resolve
// parser configuration and database component references (spec §4.7).
package strategy

import (
	"github.com/rs/zerolog"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// builtinDefaults holds the built-in default config layer per parser
// type. Unknown types get an empty layer (a warning, not an error).
var builtinDefaults = map[string]map[string]any{
	"text": {"chunk_size": 1000, "chunk_overlap": 200, "chunk_strategy": "paragraphs"},
	"markdown": {"chunk_size": 1000, "chunk_overlap": 200, "chunk_strategy": "paragraphs"},
	"html": {"chunk_size": 1000, "chunk_overlap": 200, "chunk_strategy": "paragraphs"},
	"pdf": {"chunk_size": 800, "chunk_overlap": 150, "chunk_strategy": "paragraphs"},
	"docx": {"chunk_size": 800, "chunk_overlap": 150, "chunk_strategy": "paragraphs"},
	"csv":  {"chunk_size": 2000, "chunk_overlap": 0, "chunk_strategy": "characters"},
	"json": {"chunk_size": 2000, "chunk_overlap": 0, "chunk_strategy": "characters"},
}

var resolverLog = func() zerolog.Logger { return logging.Logger.With().Str("component", "strategy").Logger() }()

// ResolveParserConfig merges built-in defaults for parser.Type with
// parser.Config and then override, in that precedence order. The
// source maps are never mutated (deep-copy semantics).
func ResolveParserConfig(parser types.ParserConfig, override map[string]any) map[string]any {
	defaults, known := builtinDefaults[parser.Type]
	if parser.Type == "" {
		resolverLog.Warn().Msg("parser entry has no type; skipping")
		return map[string]any{}
	}
	if !known {
		resolverLog.Warn().Str("type", parser.Type).Msg("unknown parser type; using empty defaults layer")
		defaults = map[string]any{}
	}

	merged := deepCopyMap(defaults)
	merged = deepMerge(merged, parser.Config)
	merged = deepMerge(merged, override)
	return merged
}

// deepMerge recursively merges src into a copy of dst: for keys present
// in src, if both sides are maps they are merged recursively, otherwise
// src's value replaces dst's. Neither dst nor src is mutated.
func deepMerge(dst, src map[string]any) map[string]any {
	out := deepCopyMap(dst)
	for k, sv := range src {
		if dvMap, dstIsMap := out[k].(map[string]any); dstIsMap {
			if svMap, srcIsMap := sv.(map[string]any); srcIsMap {
				out[k] = deepMerge(dvMap, svMap)
				continue
			}
		}
		out[k] = deepCopyValue(sv)
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return deepCopyMap(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// ResolveDatabase inlines a referenced embedding/retrieval strategy from
// components into db, or validates an already-inline definition.
// Supplying both a reference and an inline definition for the same slot
// is an error; supplying neither falls back to components.Defaults;
// if that is also absent, resolution fails.
func ResolveDatabase(db types.DatabaseConfig, components types.Components) (types.DatabaseConfig, error) {
	resolved := db

	emb, err := resolveEmbeddingSlot(db, components)
	if err != nil {
		return types.DatabaseConfig{}, err
	}
	resolved.EmbeddingStrategy = emb
	resolved.EmbeddingStrategyRef = ""

	ret, err := resolveRetrievalSlot(db, components)
	if err != nil {
		return types.DatabaseConfig{}, err
	}
	resolved.RetrievalStrategy = ret
	resolved.RetrievalStrategyRef = ""

	return resolved, nil
}

func resolveEmbeddingSlot(db types.DatabaseConfig, components types.Components) (*types.EmbeddingStrategy, error) {
	hasRef := db.EmbeddingStrategyRef != ""
	hasInline := db.EmbeddingStrategy != nil

	if hasRef && hasInline {
		return nil, apperr.New(apperr.InvalidArgument, "database supplies both a reference and an inline embedding strategy")
	}
	if hasInline {
		return db.EmbeddingStrategy, nil
	}
	name := db.EmbeddingStrategyRef
	if name == "" {
		name = components.Defaults.EmbeddingStrategy
	}
	if name == "" {
		return nil, apperr.New(apperr.InvalidArgument, "no embedding strategy specified and no default configured")
	}
	s, ok := components.EmbeddingStrategies[name]
	if !ok {
		return nil, apperr.New(apperr.InvalidArgument, "embedding strategy not found: "+name)
	}
	cp := s
	return &cp, nil
}

func resolveRetrievalSlot(db types.DatabaseConfig, components types.Components) (*types.RetrievalStrategy, error) {
	hasRef := db.RetrievalStrategyRef != ""
	hasInline := db.RetrievalStrategy != nil

	if hasRef && hasInline {
		return nil, apperr.New(apperr.InvalidArgument, "database supplies both a reference and an inline retrieval strategy")
	}
	if hasInline {
		return db.RetrievalStrategy, nil
	}
	name := db.RetrievalStrategyRef
	if name == "" {
		name = components.Defaults.RetrievalStrategy
	}
	if name == "" {
		return nil, apperr.New(apperr.InvalidArgument, "no retrieval strategy specified and no default configured")
	}
	s, ok := components.RetrievalStrategies[name]
	if !ok {
		return nil, apperr.New(apperr.InvalidArgument, "retrieval strategy not found: "+name)
	}
	cp := s
	return &cp, nil
}
