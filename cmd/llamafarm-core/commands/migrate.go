package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/llamafarm/llamafarm-core/internal/config"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	ragstore "github.com/llamafarm/llamafarm-core/internal/rag/store"
	"github.com/llamafarm/llamafarm-core/internal/taskbroker"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring every project's bbolt databases up to the current schema",
	Long: `migrate walks the data root's namespace/project tree and opens each
project's task broker and vector store bbolt files, creating any
buckets a newer llamafarm-core version expects but an older one never
wrote. Safe to run repeatedly; a project with nothing to migrate is a
no-op open/close.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	namespaces, err := os.ReadDir(paths.DataRoot)
	if err != nil {
		return fmt.Errorf("failed to read data root: %w", err)
	}

	migrated := 0
	for _, nsEntry := range namespaces {
		if !nsEntry.IsDir() {
			continue
		}
		ns := nsEntry.Name()

		projects, err := config.List(paths, ns)
		if err != nil {
			logging.Warn().Err(err).Str("namespace", ns).Msg("failed to list projects")
			continue
		}

		for _, project := range projects {
			projectDir := paths.ProjectDir(ns, project)

			broker, err := taskbroker.Open(filepath.Join(projectDir, "lf_data", "tasks.db"), nil)
			if err != nil {
				logging.Warn().Err(err).Str("namespace", ns).Str("project", project).Msg("failed to migrate task broker database")
				continue
			}
			broker.Close()

			vectors, err := ragstore.OpenBoltStore(filepath.Join(projectDir, "lf_data", "stores"))
			if err != nil {
				logging.Warn().Err(err).Str("namespace", ns).Str("project", project).Msg("failed to migrate vector store database")
				continue
			}
			vectors.Close()

			migrated++
			fmt.Printf("migrated %s/%s\n", ns, project)
		}
	}

	fmt.Printf("done: %d project(s) migrated\n", migrated)
	return nil
}
