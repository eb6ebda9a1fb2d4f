package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// interpolationPattern matches {env:VAR} and {file:path} placeholders,
// kept from the teacher's JSONC interpolation scheme and applied to the
// raw YAML bytes before parsing so either form may appear anywhere in
// the manifest, including inside quoted scalars.
var interpolationPattern = regexp.MustCompile(`\{(env|file):([^}]+)\}`)

// Load reads and parses a project's llamafarm.yaml manifest, applying
// {env:VAR}/{file:path} interpolation and env var overrides, then
// stamps the resulting ConfigHash.
func Load(namespace, project string) (*types.ProjectConfig, error) {
	return LoadFrom(GetPaths(), namespace, project)
}

// LoadFrom is Load parameterized over an explicit Paths, for tests and
// callers operating against a non-default data root.
func LoadFrom(paths *Paths, namespace, project string) (*types.ProjectConfig, error) {
	path := paths.ManifestPath(namespace, project)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read manifest %s: %w", path, err)
	}

	interpolated := interpolate(raw, filepath.Dir(path))

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(interpolated, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse manifest %s: %w", path, err)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = namespace
	}
	if cfg.Name == "" {
		cfg.Name = project
	}

	applyEnvOverrides(&cfg)
	cfg.ConfigHash = hashConfig(raw)

	return &cfg, nil
}

// Save writes a project manifest back to its canonical location,
// recomputing nothing (ConfigHash is a load-time derivation, never
// persisted as part of the manifest itself).
func Save(paths *Paths, namespace, project string, cfg *types.ProjectConfig) error {
	dir := paths.ProjectDir(namespace, project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create project dir %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal manifest: %w", err)
	}

	return os.WriteFile(paths.ManifestPath(namespace, project), data, 0644)
}

// List returns the project names found directly under a namespace dir
// (each a directory containing an llamafarm.yaml).
func List(paths *Paths, namespace string) ([]string, error) {
	entries, err := os.ReadDir(paths.NamespaceDir(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: list namespace %s: %w", namespace, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(paths.ManifestPath(namespace, e.Name())); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a project's entire on-disk tree.
func Delete(paths *Paths, namespace, project string) error {
	return os.RemoveAll(paths.ProjectDir(namespace, project))
}

// interpolate expands {env:VAR} and {file:path} placeholders. A missing
// env var expands to the empty string; a missing file leaves the
// placeholder untouched, matching the teacher's JSONC interpolation
// behaviour.
func interpolate(data []byte, baseDir string) []byte {
	return interpolationPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := interpolationPattern.FindSubmatch(match)
		kind, arg := string(groups[1]), string(groups[2])

		switch kind {
		case "env":
			return []byte(os.Getenv(arg))
		case "file":
			path := arg
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			contents, err := os.ReadFile(path)
			if err != nil {
				return match
			}
			return contents
		default:
			return match
		}
	})
}

// applyEnvOverrides applies the data-root-wide environment overrides
// named in spec §6 (model-cache timing aside, the only override that
// makes sense scoped to a single project's manifest is its default
// model selection).
func applyEnvOverrides(cfg *types.ProjectConfig) {
	if model := os.Getenv("LLAMAFARM_DEFAULT_MODEL"); model != "" {
		cfg.Runtime.DefaultModel = model
	}
}

func hashConfig(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
