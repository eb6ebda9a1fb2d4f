package taskbroker

import (
	"context"
	"encoding/json"
	"fmt"

	nc "github.com/nats-io/nats.go"
)

// natsTaskMessage is the wire envelope published for a dispatched task.
type natsTaskMessage struct {
	TaskID   string         `json:"taskID"`
	TaskName string         `json:"taskName"`
	Args     map[string]any `json:"args"`
}

// NATSDispatcher publishes tasks to "tasks.<name>" subjects for
// out-of-process workers pulled via a load-balanced queue
// subscription, the multi-worker-process deployment shape (spec §4.4).
type NATSDispatcher struct {
	conn      *nc.Conn
	queueName string
}

// NewNATSDispatcher wraps an existing connection. queueName is the
// shared queue group name every worker process subscribes under, so
// exactly one worker picks up each task.
func NewNATSDispatcher(conn *nc.Conn, queueName string) *NATSDispatcher {
	return &NATSDispatcher{conn: conn, queueName: queueName}
}

func subjectFor(taskName string) string {
	return "tasks." + taskName
}

// Dispatch publishes the task envelope; it does not wait for a worker
// to pick it up (spec §4.4 submit returns immediately).
func (d *NATSDispatcher) Dispatch(taskID, taskName string, args map[string]any) error {
	data, err := json.Marshal(natsTaskMessage{TaskID: taskID, TaskName: taskName, Args: args})
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}
	if err := d.conn.Publish(subjectFor(taskName), data); err != nil {
		return fmt.Errorf("failed to publish task %s: %w", taskID, err)
	}
	return nil
}

// Worker subscribes to a task name's subject as part of the dispatcher's
// queue group and runs h for every message it receives.
func (d *NATSDispatcher) Worker(taskName string, h Handler, broker *Broker) (*nc.Subscription, error) {
	return d.conn.QueueSubscribe(subjectFor(taskName), d.queueName, func(msg *nc.Msg) {
		var env natsTaskMessage
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		if !broker.CanProceed(env.TaskID) {
			return
		}
		if err := broker.MarkStarted(env.TaskID); err != nil {
			return
		}
		result, err := h(context.Background(), env.TaskID, env.Args)
		if err != nil {
			_ = broker.MarkFailure(env.TaskID, err.Error(), "")
			return
		}
		_ = broker.MarkSuccess(env.TaskID, result)
	})
}
