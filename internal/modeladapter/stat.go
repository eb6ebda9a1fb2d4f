package modeladapter

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sync"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
)

// Status reports a StatBackend's fitted state (spec §4.3 status()).
type Status struct {
	Fitted     bool   `json:"fitted"`
	NumSamples int    `json:"num_samples"`
	SavedPath  string `json:"saved_path,omitempty"`
}

// StatBackend is the Model Adapter Contract's shared shape for the
// anomaly, drift, timeseries and adtk families: fit, a family-specific
// score/detect/predict (unified here as Score, since all four families
// reduce to "a per-point real-valued signal over data"), save,
// load_from and status.
type StatBackend interface {
	Backend
	Fit(ctx context.Context, data []float64, autosave bool, path string) error
	Score(ctx context.Context, data []float64) ([]float64, error)
	Save(path string) error
	LoadFrom(path string) error
	Status() Status
}

// ewmaState is the persisted model: a running mean/variance, the only
// state an exponentially-weighted anomaly/drift detector needs.
type ewmaState struct {
	Alpha      float64 `json:"alpha"`
	Mean       float64 `json:"mean"`
	Variance   float64 `json:"variance"`
	NumSamples int     `json:"num_samples"`
}

// EWMABackend is a dependency-free anomaly/drift/timeseries/adtk
// backend: an exponentially weighted moving average and variance,
// scoring each point by how many standard deviations it falls from the
// running mean. No statistical-modeling or anomaly-detection library
// exists anywhere in the corpus this module was built from (the
// examples' ML-adjacent dependencies are all LLM-provider SDKs), so
// this stdlib implementation is the grounded fallback; see DESIGN.md.
type EWMABackend struct {
	lifecycle
	mu    sync.Mutex
	alpha float64
	state ewmaState
}

// NewEWMABackend builds a backend with the given smoothing factor
// (0 < alpha <= 1; smaller alpha weighs history more heavily).
func NewEWMABackend(alpha float64) *EWMABackend {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &EWMABackend{alpha: alpha}
}

func (b *EWMABackend) Load() error   { b.markLoaded(); return nil }
func (b *EWMABackend) Unload() error { b.markUnloaded(); return nil }

// Fit updates the running mean/variance over data. If autosave is true,
// the model is persisted to path before Fit returns; a persistence
// failure makes Fit itself fail (the auto-save invariant: partial or
// missing persistence is never reported as success).
func (b *EWMABackend) Fit(ctx context.Context, data []float64, autosave bool, path string) error {
	if len(data) == 0 {
		return apperr.New(apperr.InvalidArgument, "fit requires at least one data point")
	}

	b.mu.Lock()
	state := b.state
	if state.Alpha == 0 {
		state.Alpha = b.alpha
	}
	for _, x := range data {
		state.NumSamples++
		if state.NumSamples == 1 {
			state.Mean = x
			state.Variance = 0
			continue
		}
		delta := x - state.Mean
		state.Mean += state.Alpha * delta
		state.Variance = (1 - state.Alpha) * (state.Variance + state.Alpha*delta*delta)
	}
	b.state = state
	b.mu.Unlock()

	if autosave {
		if err := b.Save(path); err != nil {
			return apperr.Wrap(apperr.Internal, "autosave failed after fit", err)
		}
	}
	return nil
}

// Score returns, for each point, the number of standard deviations it
// falls from the running mean (the anomaly/drift/timeseries/adtk
// families' shared score|detect|predict signal).
func (b *EWMABackend) Score(ctx context.Context, data []float64) ([]float64, error) {
	b.mu.Lock()
	state := b.state
	b.mu.Unlock()
	if state.NumSamples == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "score requires a fitted model")
	}

	stddev := math.Sqrt(state.Variance)
	scores := make([]float64, len(data))
	for i, x := range data {
		if stddev == 0 {
			if x == state.Mean {
				scores[i] = 0
			} else {
				scores[i] = math.Inf(1)
			}
			continue
		}
		scores[i] = math.Abs(x-state.Mean) / stddev
	}
	return scores, nil
}

// Save persists the fitted model atomically: a temp file is written and
// renamed into place, so a crash mid-write never leaves a partially
// written model at path (spec §4.3 auto-save invariant).
func (b *EWMABackend) Save(path string) error {
	b.mu.Lock()
	state := b.state
	b.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to marshal model state", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to write model state", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperr.Wrap(apperr.Internal, "failed to commit model state", err)
	}

	b.mu.Lock()
	b.state.NumSamples = state.NumSamples
	b.mu.Unlock()
	return nil
}

// LoadFrom restores a previously saved model.
func (b *EWMABackend) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.NotFound, "no saved model at "+path)
		}
		return apperr.Wrap(apperr.Internal, "failed to read model state", err)
	}
	var state ewmaState
	if err := json.Unmarshal(data, &state); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to parse model state", err)
	}
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()
	return nil
}

// Status reports whether the model has been fitted and how many
// samples it has seen.
func (b *EWMABackend) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Fitted:     b.state.NumSamples > 0,
		NumSamples: b.state.NumSamples,
	}
}
