// Package taskbroker implements job dispatch and polling (spec §4.4):
// durable task submission, a pending/started/{success,failure,revoked}
// state machine, group tasks, cooperative revocation, and a
// non-blocking wait_async poll that never uses blocking sleep.
package taskbroker

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const tasksBucket = "tasks"

// durableStore persists TaskRecords to a bbolt database so submitted
// work survives a process restart.
type durableStore struct {
	db *bolt.DB
}

func openDurableStore(path string) (*durableStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open task broker database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(tasksBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks bucket: %w", err)
	}
	return &durableStore{db: db}, nil
}

func (s *durableStore) put(taskID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal task record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(tasksBucket)).Put([]byte(taskID), data)
	})
}

func (s *durableStore) get(taskID string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(tasksBucket)).Get([]byte(taskID))
		if data == nil {
			return errNotFound
		}
		return json.Unmarshal(data, v)
	})
}

func (s *durableStore) close() error {
	return s.db.Close()
}
