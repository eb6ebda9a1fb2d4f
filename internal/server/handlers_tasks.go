package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

type taskStatusResponse struct {
	TaskID string          `json:"task_id"`
	State  types.TaskState `json:"state"`
	Result any             `json:"result,omitempty"`
}

// handleGetTask reports a submitted task's current state, including its
// result once terminal (spec §6 GET .../tasks/{task_id}, §4.4).
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ns, id, taskID := chi.URLParam(r, "ns"), chi.URLParam(r, "id"), chi.URLParam(r, "task_id")

	pr, err := s.projects.get(ns, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	state, err := pr.tasks.Status(taskID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := taskStatusResponse{TaskID: taskID, State: state}
	if state.Terminal() {
		result, err := pr.tasks.Result(taskID)
		if err != nil && !apperr.Is(err, apperr.InvalidArgument) {
			writeAppError(w, err)
			return
		}
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, &resp)
}
