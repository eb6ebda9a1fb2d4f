// Package rag holds the types shared by the ingestion (§4.5) and
// retrieval (§4.6) pipelines: the document shape parsers/extractors
// operate on, and a chunk ready for embedding.
package rag

// Document is one parsed or extracted unit of content, before chunking.
// A parser may emit several Documents per file (e.g. one per page); an
// extractor consumes and re-emits Documents of the same shape.
type Document struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]any
}

// Chunk is one content-addressable slice of a Document, ready for
// embedding.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}
