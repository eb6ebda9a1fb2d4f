// Package eventlog implements the append-only per-project activity log
// (spec §4.13): every chat/RAG/task operation records one EventLogEntry,
// optionally carrying timed SubEvents, and the log supports
// reverse-chronological listing with type/time filters.
package eventlog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/event"
	"github.com/llamafarm/llamafarm-core/internal/storage"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Store persists EventLogEntry records under
// <namespace>/<project>/event_logs/<eventID>.json using the shared
// file-backed storage layer.
type Store struct {
	fs *storage.Storage
}

// New returns a Store rooted at the given storage instance.
func New(fs *storage.Storage) *Store {
	return &Store{fs: fs}
}

// NewEventID formats an id as evt_<type>_<yyyymmdd>_<hhmmss>_<rand>,
// where rand is the last 10 characters of a fresh ULID (taken from its
// random component, so collision-resistant), lowercased.
func NewEventID(eventType string, at time.Time) string {
	id := ulid.Make().String()
	rand := strings.ToLower(id[len(id)-10:])
	return fmt.Sprintf("evt_%s_%s_%s_%s", eventType, at.Format("20060102"), at.Format("150405"), rand)
}

func path(namespace, project, eventID string) []string {
	return []string{namespace, project, "event_logs", eventID}
}

// Append writes entry to the log, assigning an EventID if unset.
func (s *Store) Append(ctx context.Context, entry types.EventLogEntry) (types.EventLogEntry, error) {
	if entry.EventID == "" {
		entry.EventID = NewEventID(entry.EventType, time.UnixMilli(entry.Timestamp))
	}
	if entry.EventID == "" {
		return entry, apperr.New(apperr.InvalidArgument, "event log entry requires a timestamp to derive an id")
	}
	if err := s.fs.Put(ctx, path(entry.Namespace, entry.Project, entry.EventID), entry); err != nil {
		return entry, apperr.Wrap(apperr.Internal, "failed to persist event log entry", err)
	}
	event.Publish(event.Event{Type: event.EventLogAppended, Data: entry})
	return entry, nil
}

// Get retrieves a single entry by id.
func (s *Store) Get(ctx context.Context, namespace, project, eventID string) (types.EventLogEntry, error) {
	var entry types.EventLogEntry
	if err := s.fs.Get(ctx, path(namespace, project, eventID), &entry); err != nil {
		if err == storage.ErrNotFound {
			return entry, apperr.New(apperr.NotFound, "event log entry not found: "+eventID)
		}
		return entry, apperr.Wrap(apperr.Internal, "failed to read event log entry", err)
	}
	return entry, nil
}

// Filter narrows a List query.
type Filter struct {
	EventType string
	Since     int64 // inclusive, unix ms; 0 = no lower bound
	Until     int64 // inclusive, unix ms; 0 = no upper bound
	Limit     int   // 0 = unbounded
	Offset    int
}

// List returns entries for a project in reverse-chronological order
// (most recent first), applying Filter.
func (s *Store) List(ctx context.Context, namespace, project string, filter Filter) ([]types.EventLogEntry, error) {
	ids, err := s.fs.List(ctx, []string{namespace, project, "event_logs"})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list event log entries", err)
	}

	entries := make([]types.EventLogEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.Get(ctx, namespace, project, id)
		if err != nil {
			continue // entry removed between List and Get; skip
		}
		if filter.EventType != "" && entry.EventType != filter.EventType {
			continue
		}
		if filter.Since != 0 && entry.Timestamp < filter.Since {
			continue
		}
		if filter.Until != 0 && entry.Timestamp > filter.Until {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })

	if filter.Offset > 0 {
		if filter.Offset >= len(entries) {
			return []types.EventLogEntry{}, nil
		}
		entries = entries[filter.Offset:]
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}
