package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/llamafarm/llamafarm-core/internal/event"
	"github.com/llamafarm/llamafarm-core/internal/eventlog"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// handleListEventLogs lists a project's activity log, reverse
// chronological, honouring type/time/pagination query params (spec §6
// GET .../event_logs, §4.13).
func (s *Server) handleListEventLogs(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")
	q := r.URL.Query()

	filter := eventLogFilterFromQuery(q)
	entries, err := s.events.List(r.Context(), ns, id, filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

// handleGetEventLog returns a single event log entry by id (spec §6 GET
// .../event_logs/{event_id}).
func (s *Server) handleGetEventLog(w http.ResponseWriter, r *http.Request) {
	ns, id, eventID := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "event_id")

	entry, err := s.events.Get(r.Context(), ns, id, eventID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &entry)
}

// handleStreamEventLogs tails a project's activity log over SSE,
// reusing the teacher's event bus for fan-out rather than polling the
// on-disk log (spec §11 supplemented feature).
func (s *Server) handleStreamEventLogs(w http.ResponseWriter, r *http.Request) {
	ns, id := chi.URLParam(r, "ns"), chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan types.EventLogEntry, 16)
	unsubscribe := event.Subscribe(event.EventLogAppended, func(ev event.Event) {
		entry, ok := ev.Data.(types.EventLogEntry)
		if !ok || entry.Namespace != ns || entry.Project != id {
			return
		}
		select {
		case events <- entry:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case entry := <-events:
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func eventLogFilterFromQuery(q map[string][]string) eventlog.Filter {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	toInt64 := func(s string) int64 {
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	}
	toInt := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	return eventlog.Filter{
		EventType: get("event_type"),
		Since:     toInt64(get("since")),
		Until:     toInt64(get("until")),
		Limit:     toInt(get("limit")),
		Offset:    toInt(get("offset")),
	}
}
