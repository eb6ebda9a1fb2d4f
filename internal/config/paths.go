package config

import (
	"os"
	"path/filepath"
)

// Paths mirrors the on-disk layout of spec §6: one data root holding a
// namespace/project tree, each project carrying its manifest, session
// histories, dataset storage and event logs.
type Paths struct {
	DataRoot string
}

// GetPaths resolves the data root from LLAMAFARM_DATA_ROOT, falling back
// to ~/.local/share/llamafarm when unset.
func GetPaths() *Paths {
	root := os.Getenv("LLAMAFARM_DATA_ROOT")
	if root == "" {
		root = filepath.Join(defaultDataHome(), "llamafarm")
	}
	return &Paths{DataRoot: root}
}

func defaultDataHome() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "share")
	}
	return os.TempDir()
}

// EnsurePaths creates the data root directory.
func (p *Paths) EnsurePaths() error {
	return os.MkdirAll(p.DataRoot, 0755)
}

// ProjectDir returns <data_root>/<namespace>/<project>.
func (p *Paths) ProjectDir(namespace, project string) string {
	return filepath.Join(p.DataRoot, namespace, project)
}

// ManifestPath returns <data_root>/<namespace>/<project>/llamafarm.yaml.
func (p *Paths) ManifestPath(namespace, project string) string {
	return filepath.Join(p.ProjectDir(namespace, project), "llamafarm.yaml")
}

// SessionsDir returns <data_root>/<namespace>/<project>/sessions.
func (p *Paths) SessionsDir(namespace, project string) string {
	return filepath.Join(p.ProjectDir(namespace, project), "sessions")
}

// DatasetsDir returns <data_root>/<namespace>/<project>/lf_data/datasets.
func (p *Paths) DatasetsDir(namespace, project string) string {
	return filepath.Join(p.ProjectDir(namespace, project), "lf_data", "datasets")
}

// EventLogsDir returns <data_root>/<namespace>/<project>/event_logs.
func (p *Paths) EventLogsDir(namespace, project string) string {
	return filepath.Join(p.ProjectDir(namespace, project), "event_logs")
}

// StatModelsDir returns <data_root>/<namespace>/<project>/lf_data/stat_models,
// where fitted anomaly/drift/timeseries/adtk models are persisted.
func (p *Paths) StatModelsDir(namespace, project string) string {
	return filepath.Join(p.ProjectDir(namespace, project), "lf_data", "stat_models")
}

// NamespaceDir returns <data_root>/<namespace>, used when listing projects.
func (p *Paths) NamespaceDir(namespace string) string {
	return filepath.Join(p.DataRoot, namespace)
}
