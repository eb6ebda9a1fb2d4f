// Package parse implements the RAG ingestion pipeline's parser step
// (spec §4.5 step 4): raw bytes in, a list of rag.Document out. Parsers
// are selected by file extension/MIME type/filename pattern from a
// data-processing strategy's parser list (spec §4.7).
package parse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/rag"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Parser converts one file's raw bytes into one or more documents.
// config is the strategy-resolved, merged parser config (spec §4.7).
type Parser interface {
	Parse(raw []byte, filename string, config map[string]any) ([]rag.Document, error)
}

// Registry maps a ParserConfig's Type to a concrete Parser.
type Registry map[string]Parser

// DefaultRegistry returns the built-in parsers this repo ships with:
// plain text, Markdown (treated identically to text — chunking does the
// real work), HTML (via goquery text extraction and
// html-to-markdown, matching the teacher's web-fetch tool), a CSV
// parser (one document per row) and a JSON parser (one document per
// top-level array element). PDF/DOCX are external-collaborator
// parsers per scope and are not registered here.
func DefaultRegistry() Registry {
	return Registry{
		"text":     textParser{},
		"markdown": textParser{},
		"html":     htmlParser{},
		"csv":      csvParser{},
		"json":     jsonParser{},
	}
}

// Select picks the first parser entry in parsers whose Extensions,
// MimeTypes, or Patterns match filename/mimeType, per spec §4.5 step 2.
// Returns false if no entry matches.
func Select(parsers []types.ParserConfig, filename, mimeType string) (types.ParserConfig, bool) {
	for _, p := range parsers {
		if matches(p, filename, mimeType) {
			return p, true
		}
	}
	return types.ParserConfig{}, false
}

func matches(p types.ParserConfig, filename, mimeType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range p.Extensions {
		if strings.EqualFold(e, ext) || strings.EqualFold(e, strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	for _, m := range p.MimeTypes {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	for _, pat := range p.Patterns {
		if ok, _ := filepath.Match(pat, filepath.Base(filename)); ok {
			return true
		}
	}
	return false
}

// textParser treats the whole file as one document's content.
type textParser struct{}

func (textParser) Parse(raw []byte, filename string, config map[string]any) ([]rag.Document, error) {
	return []rag.Document{{
		ID:      filename,
		Source:  filename,
		Content: string(raw),
		Metadata: map[string]any{
			"filename": filename,
		},
	}}, nil
}

// htmlParser extracts readable text (and, when the config requests it,
// Markdown) from an HTML file, dropping script/style/iframe noise.
type htmlParser struct{}

func (htmlParser) Parse(raw []byte, filename string, config map[string]any) ([]rag.Document, error) {
	html := string(raw)

	if asMarkdown, _ := config["as_markdown"].(bool); asMarkdown {
		content, err := convertHTMLToMarkdown(html)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to convert HTML to markdown", err)
		}
		return []rag.Document{{ID: filename, Source: filename, Content: content, Metadata: map[string]any{"filename": filename, "format": "markdown"}}}, nil
	}

	text, err := extractText(html)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to extract text from HTML", err)
	}
	return []rag.Document{{ID: filename, Source: filename, Content: text, Metadata: map[string]any{"filename": filename, "format": "text"}}}, nil
}

func extractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}

// csvParser treats each data row as its own document, so chunking
// downstream operates row-by-row rather than splitting mid-record.
type csvParser struct{}

func (csvParser) Parse(raw []byte, filename string, config map[string]any) ([]rag.Document, error) {
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 0 {
		return nil, nil
	}
	header := lines[0]
	docs := make([]rag.Document, 0, len(lines)-1)
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		docs = append(docs, rag.Document{
			ID:      fmt.Sprintf("%s#row-%d", filename, i),
			Source:  filename,
			Content: line,
			Metadata: map[string]any{
				"filename": filename,
				"header":   header,
				"row":      i,
			},
		})
	}
	return docs, nil
}

// jsonParser treats a top-level JSON array as one document per element
// and anything else as a single document of the pretty-printed whole.
type jsonParser struct{}

func (jsonParser) Parse(raw []byte, filename string, config map[string]any) ([]rag.Document, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		docs := make([]rag.Document, len(arr))
		for i, elem := range arr {
			docs[i] = rag.Document{
				ID:       fmt.Sprintf("%s#%d", filename, i),
				Source:   filename,
				Content:  string(elem),
				Metadata: map[string]any{"filename": filename, "index": i},
			}
		}
		return docs, nil
	}
	return []rag.Document{{ID: filename, Source: filename, Content: string(raw), Metadata: map[string]any{"filename": filename}}}, nil
}
