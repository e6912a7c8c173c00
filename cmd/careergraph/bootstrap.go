package careergraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/careergraph"
	"github.com/soundprediction/careergraph/pkg/config"
	"github.com/soundprediction/careergraph/pkg/driver"
	cglogger "github.com/soundprediction/careergraph/pkg/logger"
	"github.com/soundprediction/careergraph/pkg/telemetry"
)

// app bundles what every command needs: configuration, the logger and an
// open client.
type app struct {
	cfg       *config.Config
	client    *careergraph.Client
	logger    *slog.Logger
	telemetry *telemetry.ParquetHandler
}

// loadConfig loads configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		cfg.Database.Driver, _ = flags.GetString("db-driver")
	}
	if flags.Changed("db-uri") {
		cfg.Database.URI, _ = flags.GetString("db-uri")
	}
	if flags.Changed("db-username") {
		cfg.Database.Username, _ = flags.GetString("db-username")
	}
	if flags.Changed("db-password") {
		cfg.Database.Password, _ = flags.GetString("db-password")
	}
	if flags.Changed("db-database") {
		cfg.Database.Database, _ = flags.GetString("db-database")
	}
	return cfg, nil
}

// newLogger builds the console handler and, when a telemetry path is set,
// tees error records into Parquet files.
func newLogger(cfg *config.Config) (*slog.Logger, *telemetry.ParquetHandler, error) {
	handler := cglogger.NewHandler(os.Stderr, cglogger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	if cfg.Telemetry.ParquetPath == "" {
		return slog.New(handler), nil, nil
	}

	ph, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize error tracking: %w", err)
	}
	return slog.New(ph), ph, nil
}

// openDriver opens the configured backend behind the circuit breaker.
func openDriver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driver.GraphDriver, error) {
	var (
		d   driver.GraphDriver
		err error
	)
	switch cfg.Database.Driver {
	case "neo4j":
		d, err = driver.NewNeo4jDriver(ctx, driver.Neo4jConfig{
			URI:            cfg.Database.URI,
			Username:       cfg.Database.Username,
			Password:       cfg.Database.Password,
			Database:       cfg.Database.Database,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			ConnectTimeout: time.Duration(cfg.Database.ConnectTimeout) * time.Second,
		}, logger)
	case "badger":
		d, err = driver.NewBadgerDriver(driver.BadgerOptions{
			Dir:      cfg.Database.URI,
			InMemory: cfg.Database.InMemory,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}
	return driver.WithCircuitBreaker(d, cfg.CircuitBreaker, logger), nil
}

// newApp loads configuration and connects to the graph.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(cmd.Context(), cfg)
}

func newAppWithConfig(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, ph, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	d, err := openDriver(ctx, cfg, logger)
	if err != nil {
		if ph != nil {
			_ = ph.Close()
		}
		return nil, err
	}

	client, err := careergraph.NewClient(d, &careergraph.Config{
		EdgePolicy: careergraph.EdgePolicy(cfg.Graph.EdgePolicy),
		StepCommit: !cfg.Graph.AtomicIngest,
		Aliases:    cfg.Graph.Aliases,
	}, logger)
	if err != nil {
		_ = d.Close(ctx)
		if ph != nil {
			_ = ph.Close()
		}
		return nil, err
	}

	logger.Debug("graph client ready",
		"driver", cfg.Database.Driver,
		"edge_policy", cfg.Graph.EdgePolicy,
		"atomic_ingest", cfg.Graph.AtomicIngest)

	return &app{cfg: cfg, client: client, logger: logger, telemetry: ph}, nil
}

// Close closes the client and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	err := a.client.Close(ctx)
	if a.telemetry != nil {
		if terr := a.telemetry.Close(); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}
