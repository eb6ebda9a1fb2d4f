// Package session manages the process-wide session map keyed by
// "<namespace>:<project>:<session_id>" (spec §4.9). Map mutation is
// serialized by a single mutex; each session's conversation history is
// guarded by its own per-session mutex, since at most one request per
// session is expected to be in flight at a time.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/storage"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Factory builds the initial agent state for a newly created session.
type Factory func() types.AgentState

// record pairs a session with the mutex serializing mutation of its
// conversation history.
type record struct {
	mu      sync.Mutex
	session types.Session
}

// Manager holds the process-wide session map.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*record
	fs       *storage.Storage
	now      func() time.Time
}

// New returns a Manager persisting sessions via fs.
func New(fs *storage.Storage) *Manager {
	return &Manager{
		sessions: make(map[string]*record),
		fs:       fs,
		now:      time.Now,
	}
}

func key(namespace, project, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", namespace, project, sessionID)
}

func sessionPath(namespace, project, sessionID string) []string {
	return []string{namespace, project, "sessions", sessionID, "history"}
}

// GetOrCreate returns the existing session for sessionID, or creates
// one (generating a UUID when sessionID is empty) by calling factory.
// factory runs at most once, while the map lock is held, so two
// concurrent get-or-creates for the same new id never race the
// factory call.
func (m *Manager) GetOrCreate(ctx context.Context, namespace, project, sessionID string, factory Factory) (string, types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	k := key(namespace, project, sessionID)

	if rec, ok := m.sessions[k]; ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return sessionID, rec.session, nil
	}

	now := m.now().UnixMilli()
	sess := types.Session{
		Namespace:  namespace,
		Project:    project,
		SessionID:  sessionID,
		AgentState: factory(),
		CreatedAt:  now,
		LastUsed:   now,
	}
	if err := m.fs.Put(ctx, sessionPath(namespace, project, sessionID), sess); err != nil {
		return "", types.Session{}, apperr.Wrap(apperr.Internal, "failed to persist new session", err)
	}
	m.sessions[k] = &record{session: sess}
	return sessionID, sess, nil
}

// Mutate applies fn to a session's state under its per-session lock and
// persists the result. fn must not call back into the Manager.
func (m *Manager) Mutate(ctx context.Context, namespace, project, sessionID string, fn func(*types.Session)) error {
	m.mu.Lock()
	rec, ok := m.sessions[key(namespace, project, sessionID)]
	m.mu.Unlock()
	if !ok {
		return apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.session)
	rec.session.LastUsed = m.now().UnixMilli()
	rec.session.RequestCount++

	if err := m.fs.Put(ctx, sessionPath(namespace, project, sessionID), rec.session); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to persist session mutation", err)
	}
	return nil
}

// Get returns a snapshot of one session.
func (m *Manager) Get(namespace, project, sessionID string) (types.Session, error) {
	m.mu.Lock()
	rec, ok := m.sessions[key(namespace, project, sessionID)]
	m.mu.Unlock()
	if !ok {
		return types.Session{}, apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.session, nil
}

// List returns a snapshot of every in-memory session for a project.
func (m *Manager) List(namespace, project string) []types.Session {
	prefix := fmt.Sprintf("%s:%s:", namespace, project)

	m.mu.Lock()
	matches := make([]*record, 0)
	for k, rec := range m.sessions {
		if hasPrefix(k, prefix) {
			matches = append(matches, rec)
		}
	}
	m.mu.Unlock()

	out := make([]types.Session, 0, len(matches))
	for _, rec := range matches {
		rec.mu.Lock()
		out = append(out, rec.session)
		rec.mu.Unlock()
	}
	return out
}

// Evict removes every in-memory session for a project and deletes its
// on-disk session directory. Called on project delete.
func (m *Manager) Evict(ctx context.Context, namespace, project string) error {
	prefix := fmt.Sprintf("%s:%s:", namespace, project)

	m.mu.Lock()
	for k := range m.sessions {
		if hasPrefix(k, prefix) {
			delete(m.sessions, k)
		}
	}
	m.mu.Unlock()

	if err := m.fs.DeleteDir(ctx, []string{namespace, project, "sessions"}); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to remove on-disk session directory", err)
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
