package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/llamafarm/llamafarm-core/internal/config"
	"github.com/llamafarm/llamafarm-core/internal/logging"
	"github.com/llamafarm/llamafarm-core/internal/provider"
	"github.com/llamafarm/llamafarm-core/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort     int
	serveHostname string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the llamafarm-core HTTP/WebSocket server",
	Long: `Start llamafarm-core as a server that exposes the project,
chat, RAG, dataset, task and voice chat HTTP API.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to advertise in startup logs")
}

func runServe(cmd *cobra.Command, args []string) error {
	logging.Info().Str("version", Version).Msg("Starting llamafarm-core server")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}
	logging.Info().Str("dataRoot", paths.DataRoot).Msg("Data root")

	ctx := context.Background()
	providerReg, err := provider.InitializeFromEnv(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to initialize some providers")
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	srv := server.New(serverConfig, paths, providerReg)

	go func() {
		logging.Info().
			Str("hostname", serveHostname).
			Int("port", servePort).
			Str("url", fmt.Sprintf("http://%s:%d", serveHostname, servePort)).
			Msg("Server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown error")
	}

	logging.Info().Msg("Server stopped")
	return nil
}
