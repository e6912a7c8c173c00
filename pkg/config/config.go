package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Graph construction policy
	Graph GraphConfig `mapstructure:"graph"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Ingest configuration for batch CLI ingestion
	Ingest IngestConfig `mapstructure:"ingest"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	// ParquetPath is the directory error records are written to. Empty
	// disables the sink.
	ParquetPath string `mapstructure:"parquet_path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"` // neo4j, badger
	URI            string `mapstructure:"uri"`    // bolt URI, or data directory for badger
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    int    `mapstructure:"max_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
	InMemory       bool   `mapstructure:"in_memory"`       // badger only
}

// GraphConfig holds the graph construction policy
type GraphConfig struct {
	// EdgePolicy is "idempotent" or "legacy".
	EdgePolicy string `mapstructure:"edge_policy"`
	// AtomicIngest runs each ingestion in a single transaction.
	AtomicIngest bool `mapstructure:"atomic_ingest"`
	// Aliases maps alternative spellings to a preferred canonical name.
	Aliases map[string]string `mapstructure:"aliases"`
}

// IngestConfig holds batch ingestion settings
type IngestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "neo4j":
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for neo4j")
		}
	case "badger":
		if c.Database.URI == "" && !c.Database.InMemory {
			return fmt.Errorf("database.uri (data directory) is required for badger")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Graph.EdgePolicy {
	case "idempotent", "legacy":
	default:
		return fmt.Errorf("invalid graph.edge_policy %q (want idempotent or legacy)", c.Graph.EdgePolicy)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("invalid ingest.concurrency: %d", c.Ingest.Concurrency)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "badger")
	viper.SetDefault("database.uri", "./careergraph_db")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")
	viper.SetDefault("database.max_pool_size", 50)
	viper.SetDefault("database.connect_timeout", 10)
	viper.SetDefault("database.in_memory", false)

	// Graph defaults
	viper.SetDefault("graph.edge_policy", "idempotent")
	viper.SetDefault("graph.atomic_ingest", true)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("ingest.concurrency", 4)

	// Telemetry is off unless a path is configured
	viper.SetDefault("telemetry.parquet_path", "")
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) error {
	// Neo4j credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
		config.Database.Driver = "neo4j"
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	// Generic database settings take precedence
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = strings.ToLower(dbDriver)
	}
	if dbURI := os.Getenv("DB_URI"); dbURI != "" {
		config.Database.URI = dbURI
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	return nil
}
