// Package config loads and persists project manifests: the
// llamafarm.yaml file that describes a project's runtime models,
// prompts, RAG databases, datasets and reusable strategy components
// (spec §6's on-disk layout, one manifest per <namespace>/<project>).
//
// # Manifest loading
//
// Load resolves <data_root>/<namespace>/<project>/llamafarm.yaml,
// expands {env:VAR} and {file:path} placeholders against the raw YAML
// bytes, parses the result into a types.ProjectConfig, and stamps a
// ConfigHash (sha256 of the pre-interpolation bytes) so event log
// entries can be correlated to the exact manifest snapshot that
// produced them.
//
// # Data root
//
// The data root is LLAMAFARM_DATA_ROOT, or ~/.local/share/llamafarm
// when unset. Paths exposes the full on-disk layout: manifest path,
// sessions dir, dataset storage dir, event log dir.
package config
