// Package store defines the vector store contract the RAG ingestion
// and retrieval pipelines write to and query (spec §4.5 step 8, §4.6
// step 3). The concrete client protocol for a production vector
// database is an external collaborator per scope; this package also
// ships a single-node, bbolt-backed reference implementation so the
// pipelines are runnable and testable without one.
package store

import "context"

// Record is one embedded chunk written to a database.
type Record struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Candidate is one retrieval result: a stored Record plus its
// similarity score against a query vector.
type Candidate struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Mode selects how Query compares vectors (spec §4.6 step 3).
type Mode string

const (
	Similarity Mode = "similarity"
	Hybrid     Mode = "hybrid"
	Rerank     Mode = "rerank"
)

// VectorStore is the per-database storage and similarity-search
// contract every RAG database binds to (types.VectorStoreConfig).
type VectorStore interface {
	// Upsert writes or replaces records in database db.
	Upsert(ctx context.Context, db string, records []Record) error
	// Query returns up to topK candidates ordered by descending score.
	// filters restricts candidates to those whose Metadata matches
	// every key/value pair given.
	Query(ctx context.Context, db string, vector []float32, topK int, filters map[string]any) ([]Candidate, error)
	// DeleteByFileHash removes every record whose metadata carries
	// file_hash == fileHash (spec §4.5 cancellation cleanup).
	DeleteByFileHash(ctx context.Context, db, fileHash string) error
}
