package types

// Session is a per-(namespace, project, session) conversation state
// record (spec §3, §4.9). It is persisted to
// sessions/<session_id>/history.json on every mutation.
type Session struct {
	Namespace    string      `json:"namespace"`
	Project      string      `json:"project"`
	SessionID    string      `json:"sessionID"`
	AgentState   AgentState  `json:"agentState"`
	CreatedAt    int64       `json:"createdAt"`
	LastUsed     int64       `json:"lastUsed"`
	RequestCount int64       `json:"requestCount"`
}

// AgentState holds the conversation history and the active model
// selection for a session.
type AgentState struct {
	History      []ChatMessage `json:"history"`
	ActiveModel  ModelRef      `json:"activeModel"`
}

// ModelRef names the (family, id, quantization) a session is currently
// bound to.
type ModelRef struct {
	Family        string `json:"family"`
	ID            string `json:"id"`
	Quantization  string `json:"quantization,omitempty"`
}

// VisionStreamingSession is a TTL-evicted per-connection state record for
// the vision streaming WebSocket surface (spec §3).
type VisionStreamingSession struct {
	SessionID       string `json:"sessionID"`
	CascadeConfig   map[string]any `json:"cascadeConfig,omitempty"`
	LastFrameAt     int64  `json:"lastFrameAt"`
	FramesProcessed int64  `json:"framesProcessed"`
}
