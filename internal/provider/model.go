package provider

// ModelInfo describes one model a Provider can serve: its capabilities,
// context window, and published pricing. This is the provider registry's
// own catalog shape, distinct from types.ModelRecord (a project manifest's
// declared runtime model) — a modeladapter language backend resolves a
// ModelRecord to the ModelInfo of whichever provider actually serves it.
type ModelInfo struct {
	ID                string
	Name              string
	ProviderID        string
	ContextLength     int
	MaxOutputTokens   int
	SupportsTools     bool
	SupportsVision    bool
	SupportsReasoning bool
	InputPrice        float64
	OutputPrice       float64
	Options           ModelOptions
}

// ModelOptions carries provider-specific capability flags that don't fit
// the common ModelInfo fields.
type ModelOptions struct {
	PromptCaching  bool
	ExtendedOutput bool
}
