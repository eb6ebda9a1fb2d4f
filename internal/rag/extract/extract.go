// Package extract implements the RAG ingestion pipeline's extractor
// step (spec §4.5 step 5): document -> document transforms such as
// redaction or metadata enrichment, run after parsing and before
// chunking. An extractor failure is logged by the caller and skipped;
// this package only implements the transforms themselves.
package extract

import (
	"regexp"
	"strings"

	"github.com/llamafarm/llamafarm-core/internal/rag"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Extractor transforms a list of documents into a list of documents.
type Extractor interface {
	Extract(docs []rag.Document, config map[string]any) ([]rag.Document, error)
}

// Registry maps an ExtractorConfig's Type to a concrete Extractor.
type Registry map[string]Extractor

// DefaultRegistry returns the built-in extractors.
func DefaultRegistry() Registry {
	return Registry{
		"normalize_whitespace": normalizeWhitespaceExtractor{},
		"redact_pii":           redactPIIExtractor{},
	}
}

// Run applies each configured extractor to docs in order, skipping (not
// aborting on) an extractor whose Type is not registered.
func Run(registry Registry, extractors []types.ExtractorConfig, docs []rag.Document) ([]rag.Document, error) {
	for _, cfg := range extractors {
		ex, ok := registry[cfg.Type]
		if !ok {
			continue
		}
		var err error
		docs, err = ex.Extract(docs, cfg.Config)
		if err != nil {
			return docs, err
		}
	}
	return docs, nil
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// normalizeWhitespaceExtractor collapses runs of horizontal whitespace
// and excess blank lines, a common cleanup pass after lossy parsing.
type normalizeWhitespaceExtractor struct{}

func (normalizeWhitespaceExtractor) Extract(docs []rag.Document, config map[string]any) ([]rag.Document, error) {
	out := make([]rag.Document, len(docs))
	for i, d := range docs {
		content := whitespaceRun.ReplaceAllString(d.Content, " ")
		content = blankLines.ReplaceAllString(content, "\n\n")
		d.Content = strings.TrimSpace(content)
		out[i] = d
	}
	return out, nil
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
var phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)

// redactPIIExtractor replaces email addresses and US-style phone
// numbers with a fixed placeholder.
type redactPIIExtractor struct{}

func (redactPIIExtractor) Extract(docs []rag.Document, config map[string]any) ([]rag.Document, error) {
	out := make([]rag.Document, len(docs))
	for i, d := range docs {
		content := emailPattern.ReplaceAllString(d.Content, "[REDACTED_EMAIL]")
		content = phonePattern.ReplaceAllString(content, "[REDACTED_PHONE]")
		d.Content = content
		out[i] = d
	}
	return out, nil
}
