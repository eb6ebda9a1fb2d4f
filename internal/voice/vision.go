package voice

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// visionSessionTTL and visionSessionCap implement spec §3/§5's vision
// streaming-session limits: TTL-evicted at 60s idle, capped at the
// default 100 concurrent streaming sessions shared across SSE/WS
// surfaces.
const (
	visionSessionTTL = 60 * time.Second
	visionSessionCap = 100
)

// VisionSessionStore is the TTL-evicted map of active vision
// streaming sessions (spec §3's VisionStreamingSession record),
// grounded on the expirable LRU already used for similar ephemeral
// session state in the corpus.
type VisionSessionStore struct {
	cache *lru.LRU[string, *types.VisionStreamingSession]
}

// NewVisionSessionStore builds a VisionSessionStore with the spec's
// default TTL and capacity.
func NewVisionSessionStore() *VisionSessionStore {
	return &VisionSessionStore{
		cache: lru.NewLRU[string, *types.VisionStreamingSession](visionSessionCap, nil, visionSessionTTL),
	}
}

// Open registers a new vision streaming session.
func (s *VisionSessionStore) Open(sessionID string, cascadeConfig map[string]any, nowUnix int64) *types.VisionStreamingSession {
	session := &types.VisionStreamingSession{
		SessionID:     sessionID,
		CascadeConfig: cascadeConfig,
		LastFrameAt:   nowUnix,
	}
	s.cache.Add(sessionID, session)
	return session
}

// RecordFrame touches a session's LastFrameAt (resetting its TTL) and
// increments its processed-frame counter. Returns false if the session
// is unknown (already evicted or never opened).
func (s *VisionSessionStore) RecordFrame(sessionID string, nowUnix int64) bool {
	session, ok := s.cache.Get(sessionID)
	if !ok {
		return false
	}
	session.LastFrameAt = nowUnix
	session.FramesProcessed++
	s.cache.Add(sessionID, session) // re-add to refresh the TTL window
	return true
}

// Get returns the current state of a session, if still live.
func (s *VisionSessionStore) Get(sessionID string) (*types.VisionStreamingSession, bool) {
	return s.cache.Get(sessionID)
}

// Close removes a session immediately (client disconnect), rather than
// waiting for TTL eviction.
func (s *VisionSessionStore) Close(sessionID string) {
	s.cache.Remove(sessionID)
}

// Len reports the number of currently tracked sessions.
func (s *VisionSessionStore) Len() int {
	return s.cache.Len()
}
