// Package commands provides the CLI commands for llamafarm-core.
package commands

import (
	"fmt"
	"os"

	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags.
var (
	printLogs bool
	logLevel  string
	logFile   bool
	dataRoot  string
)

var rootCmd = &cobra.Command{
	Use:   "llamafarm-core",
	Short: "llamafarm-core - self-hosted AI application orchestration server",
	Long: `llamafarm-core loads project manifests, resolves models and RAG
pipelines, and serves chat completions, retrieval, dataset ingestion
and voice chat over HTTP.

Run 'llamafarm-core serve' to start the server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if logFile {
			logging.Info().
				Str("version", Version).
				Str("logFile", logging.GetLogFilePath()).
				Msg("llamafarm-core started with file logging")
		}

		if dataRoot != "" {
			os.Setenv("LLAMAFARM_DATA_ROOT", dataRoot)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to /tmp/llamafarm-core-YYYYMMDD-HHMMSS.log")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "Override the data root (env LLAMAFARM_DATA_ROOT)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("llamafarm-core %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
