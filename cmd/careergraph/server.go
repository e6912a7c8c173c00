package careergraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/careergraph/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the CareerGraph HTTP server",
	Long: `Start the HTTP server to provide REST access to the graph.

The server provides endpoints for:
- Ingesting resumes and job postings (PUT /api/v1/resumes/:id, /api/v1/jobs/:id)
- Resume summaries, skills and job matches
- Skill demand and graph statistics
- Health and readiness checks`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")
	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for error telemetry files")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}

	a, err := newAppWithConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.client.CreateIndices(cmd.Context()); err != nil {
		a.logger.Warn("index creation failed", "error", err)
	}

	srv := server.New(cfg, a.client, a.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.logger.Info("received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		a.logger.Info("server stopped gracefully")
		return nil
	}
}
