package modeladapter

import (
	"fmt"
	"strings"

	"github.com/llamafarm/llamafarm-core/internal/modelcache"
	"github.com/llamafarm/llamafarm-core/internal/provider"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Manager resolves a project's declared runtime ModelRecord entries
// (types.Runtime) to live family backends, sharing one
// modelcache.Cache across every family so the cache's idle-TTL reaper
// and per-key load serialization (spec §4.2) cover all of them
// uniformly.
type Manager struct {
	cache       *modelcache.Cache
	providers   *provider.Registry
	encoderDims int
	ewmaAlpha   float64
}

// NewManager builds a Manager. providers resolves which concrete
// provider serves a given language model ID; cache owns the
// load/evict lifecycle for every resolved backend.
func NewManager(cache *modelcache.Cache, providers *provider.Registry) *Manager {
	return &Manager{cache: cache, providers: providers, encoderDims: 256, ewmaAlpha: 0.1}
}

// cacheKey scopes a model cache entry by family so the same model ID
// declared under two families (unusual, but not forbidden) never
// collides.
func cacheKey(rec types.ModelRecord) string {
	return string(rec.Family) + ":" + rec.ID
}

// baseModelID strips the ":<quantization>" suffix from a ModelRecord's
// wire-form ID.
func baseModelID(id string) string {
	base, _, _ := strings.Cut(id, ":")
	return base
}

// Language resolves rec to a LanguageBackend, loading (and caching) it
// if this is the first request for rec.ID. The serving provider is
// found by matching rec's base model ID against every registered
// provider's catalog — ModelRecord only declares which model a
// project wants to run, not which provider backs it.
func (m *Manager) Language(rec types.ModelRecord) (LanguageBackend, error) {
	ref, err := m.cache.GetOrLoad(cacheKey(rec), func() (modelcache.ModelRef, error) {
		modelID := baseModelID(rec.ID)
		for _, p := range m.providers.List() {
			for _, info := range p.Models() {
				if info.ID == modelID {
					backend := NewChatBackend(p, modelID)
					if err := backend.Load(); err != nil {
						return nil, err
					}
					return backend, nil
				}
			}
		}
		return nil, fmt.Errorf("no registered provider serves model %q", modelID)
	})
	if err != nil {
		return nil, err
	}
	backend, ok := ref.(LanguageBackend)
	if !ok {
		return nil, fmt.Errorf("cached entry for %q is not a language backend", rec.ID)
	}
	return backend, nil
}

// Encoder resolves rec to an EncoderBackend.
func (m *Manager) Encoder(rec types.ModelRecord) (EncoderBackend, error) {
	ref, err := m.cache.GetOrLoad(cacheKey(rec), func() (modelcache.ModelRef, error) {
		backend := NewHashingEncoderBackend(m.encoderDims)
		if err := backend.Load(); err != nil {
			return nil, err
		}
		return backend, nil
	})
	if err != nil {
		return nil, err
	}
	backend, ok := ref.(EncoderBackend)
	if !ok {
		return nil, fmt.Errorf("cached entry for %q is not an encoder backend", rec.ID)
	}
	return backend, nil
}

// Stat resolves rec to a StatBackend; rec.Family must be one of
// anomaly, drift, timeseries or adtk.
func (m *Manager) Stat(rec types.ModelRecord) (StatBackend, error) {
	switch Family(rec.Family) {
	case FamilyAnomaly, FamilyDrift, FamilyTimeseries, FamilyADTK:
	default:
		return nil, fmt.Errorf("family %q is not a stat family", rec.Family)
	}

	ref, err := m.cache.GetOrLoad(cacheKey(rec), func() (modelcache.ModelRef, error) {
		backend := NewEWMABackend(m.ewmaAlpha)
		if err := backend.Load(); err != nil {
			return nil, err
		}
		return backend, nil
	})
	if err != nil {
		return nil, err
	}
	backend, ok := ref.(StatBackend)
	if !ok {
		return nil, fmt.Errorf("cached entry for %q is not a stat backend", rec.ID)
	}
	return backend, nil
}

// Evict drops rec's cached backend, unloading it.
func (m *Manager) Evict(rec types.ModelRecord) {
	m.cache.Drop(cacheKey(rec))
}
