package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is the reference VectorStore: one bbolt file per dataset's
// stores/ directory (spec §4.8 layout), one bucket per database,
// brute-force cosine similarity on Query. Grounded on
// internal/taskbroker's durableStore wrapper (same
// open/bucket-per-kind/JSON-value shape) — bbolt is a natural fit for a
// single-node store that must survive a process restart without
// depending on an external vector database.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if needed) the vector store file under
// root, the dataset's stores/ directory.
func OpenBoltStore(root string) (*BoltStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vector store directory: %w", err)
	}
	db, err := bolt.Open(filepath.Join(root, "vectors.bolt"), 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type storedRecord struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *BoltStore) Upsert(ctx context.Context, db string, records []Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(db))
		if err != nil {
			return err
		}
		for _, rec := range records {
			data, err := json.Marshal(storedRecord{ID: rec.ID, Content: rec.Content, Vector: rec.Vector, Metadata: rec.Metadata})
			if err != nil {
				return fmt.Errorf("failed to marshal vector record %q: %w", rec.ID, err)
			}
			if err := bucket.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Query(ctx context.Context, db string, vector []float32, topK int, filters map[string]any) ([]Candidate, error) {
	var candidates []Candidate
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(db))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal vector record %q: %w", k, err)
			}
			if !matchesFilters(rec.Metadata, filters) {
				return nil
			}
			candidates = append(candidates, Candidate{
				ID:       rec.ID,
				Content:  rec.Content,
				Metadata: rec.Metadata,
				Score:    cosineSimilarity(vector, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *BoltStore) DeleteByFileHash(ctx context.Context, db, fileHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(db))
		if bucket == nil {
			return nil
		}
		var toDelete [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if fh, _ := rec.Metadata["file_hash"].(string); fh == fileHash {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func matchesFilters(metadata map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
