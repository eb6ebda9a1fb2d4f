package taskbroker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

var errNotFound = errors.New("task not found")

// Dispatcher hands a submitted task off to a worker. The in-process
// implementation runs it on a goroutine pool; the NATS-backed
// implementation (natsdispatch.go) publishes it for out-of-process
// workers pulled via a queue subscription, matching the spec's "run in
// separate worker processes" framing.
type Dispatcher interface {
	Dispatch(taskID, taskName string, args map[string]any) error
}

// Broker owns the task state machine and its durable backing store.
// Task state mutation is synchronized by mu; the durable store is
// written on every transition so an in-flight task's last known state
// survives a restart.
type Broker struct {
	mu         sync.Mutex
	tasks      map[string]*types.TaskRecord
	store      *durableStore
	dispatcher Dispatcher
	now        func() time.Time
}

// Open returns a Broker whose durable state lives at dbPath.
func Open(dbPath string, dispatcher Dispatcher) (*Broker, error) {
	store, err := openDurableStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Broker{
		tasks:      make(map[string]*types.TaskRecord),
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
	}, nil
}

// Close releases the durable store.
func (b *Broker) Close() error {
	return b.store.close()
}

// SetDispatcher binds the dispatcher a broker hands submitted tasks to.
// Exists because LocalDispatcher itself needs a constructed *Broker
// (it calls back into CanProceed/MarkStarted/MarkSuccess), so the two
// are built in two steps: Open(dbPath, nil) then SetDispatcher(local).
func (b *Broker) SetDispatcher(d Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatcher = d
}

func (b *Broker) newTaskID() string {
	return "task_" + ulid.Make().String()
}

// Submit enqueues a task durably and hands it to the dispatcher,
// returning immediately (spec §4.4 submit).
func (b *Broker) Submit(ctx context.Context, taskName string, args map[string]any) (string, error) {
	taskID := b.newTaskID()
	rec := &types.TaskRecord{
		TaskID:      taskID,
		Kind:        taskName,
		State:       types.TaskPending,
		Meta:        args,
		SubmittedAt: b.now().UnixMilli(),
	}

	b.mu.Lock()
	b.tasks[taskID] = rec
	b.mu.Unlock()

	if err := b.store.put(taskID, rec); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to persist submitted task", err)
	}
	if err := b.dispatcher.Dispatch(taskID, taskName, args); err != nil {
		return "", apperr.Wrap(apperr.Unavailable, "failed to dispatch task", err)
	}
	return taskID, nil
}

// SubmitGroup submits every child and returns a group id whose status
// and result are computed from the children (spec §4.4 group tasks).
// The group itself is never dispatched; it has no independent state.
func (b *Broker) SubmitGroup(ctx context.Context, children []ChildSpec) (string, error) {
	groupID := "group_" + ulid.Make().String()
	childIDs := make([]string, 0, len(children))
	for _, c := range children {
		id, err := b.Submit(ctx, c.TaskName, c.Args)
		if err != nil {
			return "", err
		}
		childIDs = append(childIDs, id)
	}

	rec := &types.TaskRecord{
		TaskID:        groupID,
		Kind:          "group",
		State:         types.TaskStarted,
		SubmittedAt:   b.now().UnixMilli(),
		ChildTaskIDs:  childIDs,
	}
	b.mu.Lock()
	b.tasks[groupID] = rec
	b.mu.Unlock()
	if err := b.store.put(groupID, rec); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to persist task group", err)
	}
	return groupID, nil
}

// ChildSpec is one task to enqueue as part of a group.
type ChildSpec struct {
	TaskName string
	Args     map[string]any
}

func (b *Broker) lookup(taskID string) (*types.TaskRecord, error) {
	b.mu.Lock()
	rec, ok := b.tasks[taskID]
	b.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "task not found: "+taskID)
	}
	return rec, nil
}

// Status returns a task's current state. For a group, this is derived
// from its children: started while any child is non-terminal, success
// once every child is success, failure once every child is terminal
// but at least one is not success.
func (b *Broker) Status(taskID string) (types.TaskState, error) {
	rec, err := b.lookup(taskID)
	if err != nil {
		return "", err
	}
	if rec.Kind == "group" {
		return b.groupState(rec)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return rec.State, nil
}

func (b *Broker) groupState(group *types.TaskRecord) (types.TaskState, error) {
	allSuccess := true
	anyNonTerminal := false
	for _, childID := range group.ChildTaskIDs {
		child, err := b.lookup(childID)
		if err != nil {
			return "", err
		}
		b.mu.Lock()
		state := child.State
		b.mu.Unlock()
		if !state.Terminal() {
			anyNonTerminal = true
		}
		if state != types.TaskSuccess {
			allSuccess = false
		}
	}
	if anyNonTerminal {
		return types.TaskStarted, nil
	}
	if allSuccess {
		return types.TaskSuccess, nil
	}
	return types.TaskFailure, nil
}

// Result returns a task's value. Valid only once the task is terminal
// (spec §4.4 result). For a group, the result is the ordered tuple of
// child results, and is only available once every child is success.
func (b *Broker) Result(taskID string) (any, error) {
	rec, err := b.lookup(taskID)
	if err != nil {
		return nil, err
	}
	if rec.Kind == "group" {
		return b.groupResult(rec)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !rec.State.Terminal() {
		return nil, apperr.New(apperr.InvalidArgument, "task result requested before task reached a terminal state")
	}
	return rec.Result, nil
}

func (b *Broker) groupResult(group *types.TaskRecord) (any, error) {
	state, err := b.groupState(group)
	if err != nil {
		return nil, err
	}
	if state != types.TaskSuccess {
		return nil, apperr.New(apperr.InvalidArgument, "group result requested before every child task succeeded")
	}
	results := make([]any, len(group.ChildTaskIDs))
	for i, childID := range group.ChildTaskIDs {
		r, err := b.Result(childID)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

// MarkStarted transitions a task from pending to started. A task
// already revoked stays revoked: a worker observing revocation before
// starting must not execute (spec §4.4 cancellation).
func (b *Broker) MarkStarted(taskID string) error {
	return b.transition(taskID, func(rec *types.TaskRecord) error {
		if rec.State == types.TaskRevoked {
			return apperr.New(apperr.Conflict, "task was revoked before it started")
		}
		if rec.State != types.TaskPending {
			return apperr.New(apperr.Conflict, "task is not pending")
		}
		rec.State = types.TaskStarted
		return nil
	})
}

// MarkSuccess transitions a started task to success with result.
// A revoked task is left revoked; the caller's handler is expected to
// check CanProceed mid-execution and return cooperatively instead of
// calling this.
func (b *Broker) MarkSuccess(taskID string, result any) error {
	return b.transition(taskID, func(rec *types.TaskRecord) error {
		if rec.State == types.TaskRevoked {
			return nil
		}
		rec.State = types.TaskSuccess
		rec.Result = result
		rec.CompletedAt = b.now().UnixMilli()
		return nil
	})
}

// MarkFailure transitions a started task to failure.
func (b *Broker) MarkFailure(taskID, errMsg, traceback string) error {
	return b.transition(taskID, func(rec *types.TaskRecord) error {
		if rec.State == types.TaskRevoked {
			return nil
		}
		rec.State = types.TaskFailure
		rec.Error = errMsg
		rec.Traceback = traceback
		rec.CompletedAt = b.now().UnixMilli()
		return nil
	})
}

// Revoke transitions a non-terminal task to revoked (spec §4.4).
func (b *Broker) Revoke(taskID string) error {
	rec, err := b.lookup(taskID)
	if err != nil {
		return err
	}
	if rec.Kind == "group" {
		var firstErr error
		for _, childID := range rec.ChildTaskIDs {
			if err := b.Revoke(childID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return b.transition(taskID, func(rec *types.TaskRecord) error {
		if rec.State.Terminal() {
			return apperr.New(apperr.Conflict, "task already reached a terminal state")
		}
		rec.State = types.TaskRevoked
		rec.CompletedAt = b.now().UnixMilli()
		return nil
	})
}

// CanProceed reports whether a worker may still execute or continue
// executing taskID; false means the task was revoked and the handler
// must cooperatively return (spec §4.4).
func (b *Broker) CanProceed(taskID string) bool {
	state, err := b.Status(taskID)
	if err != nil {
		return false
	}
	return state != types.TaskRevoked
}

func (b *Broker) transition(taskID string, fn func(*types.TaskRecord) error) error {
	b.mu.Lock()
	rec, ok := b.tasks[taskID]
	if !ok {
		b.mu.Unlock()
		return apperr.New(apperr.NotFound, "task not found: "+taskID)
	}
	if err := fn(rec); err != nil {
		b.mu.Unlock()
		return err
	}
	snapshot := *rec
	b.mu.Unlock()

	if err := b.store.put(taskID, &snapshot); err != nil {
		logging.Logger.Error().Err(err).Str("task_id", taskID).Msg("failed to persist task state transition")
	}
	return nil
}

// QueueDepth reports how many tasks are still pending dispatch pickup
// (spec §4.4 backpressure). Submitters may, but are not required to,
// honour it.
func (b *Broker) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	depth := 0
	for _, rec := range b.tasks {
		if rec.Kind != "group" && rec.State == types.TaskPending {
			depth++
		}
	}
	return depth
}

// WaitAsync polls until taskID reaches a terminal state, the timeout
// elapses, or ctx is cancelled. It never uses a blocking sleep: the
// wait between polls is a time.Timer observed via select alongside
// ctx.Done(), so the calling goroutine yields to the scheduler between
// checks instead of blocking it (spec §4.4 forbidden poll loop).
func (b *Broker) WaitAsync(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (types.TaskState, any, error) {
	deadline := b.now().Add(timeout)

	for {
		state, err := b.Status(taskID)
		if err != nil {
			return "", nil, err
		}
		if state.Terminal() {
			result, err := b.Result(taskID)
			return state, result, err
		}
		if !b.now().Before(deadline) {
			return types.TaskTimeout, nil, nil
		}

		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", nil, ctx.Err()
		case <-timer.C:
		}
	}
}
