// Package modeladapter implements the Model Adapter Contract (spec
// §4.3): a uniform idempotent load/unload lifecycle plus family-specific
// operations (language, encoder, anomaly/drift/timeseries/adtk), wired
// behind internal/modelcache so the router (§6) only ever sees the
// result object shapes this package returns, never a backend's internal
// types.
package modeladapter

import "sync/atomic"

// Family identifies which operation set a ModelRecord's backend exposes.
type Family string

const (
	FamilyLanguage   Family = "language"
	FamilyEncoder    Family = "encoder"
	FamilyAnomaly    Family = "anomaly"
	FamilyDrift      Family = "drift"
	FamilyTimeseries Family = "timeseries"
	FamilyADTK       Family = "adtk"
)

// Backend is the contract every family implements: an idempotent
// load/unload lifecycle. Concrete backends embed lifecycle to get this
// for free and layer family-specific methods on top.
type Backend interface {
	Load() error
	Unload() error
}

// lifecycle tracks ready state so Load/Unload are idempotent and Unload
// is always safe to call, including after a failed Load. Embed this in
// every concrete backend instead of hand-rolling a bool.
type lifecycle struct {
	ready int32 // atomic: 0 = not loaded, 1 = loaded
}

// markLoaded records a successful load. Returns false if already loaded
// (the caller's load() is then a no-op, per the idempotency contract).
func (l *lifecycle) markLoaded() bool {
	return atomic.CompareAndSwapInt32(&l.ready, 0, 1)
}

// isLoaded reports whether the backend is currently loaded.
func (l *lifecycle) isLoaded() bool {
	return atomic.LoadInt32(&l.ready) == 1
}

// markUnloaded records an unload. Returns false if already unloaded (or
// never loaded), so Unload can short-circuit and stay idempotent.
func (l *lifecycle) markUnloaded() bool {
	return atomic.CompareAndSwapInt32(&l.ready, 1, 0)
}
