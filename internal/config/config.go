package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Storage StorageConfig
	Graph   GraphConfig
	Logging LoggingConfig
	Import  ImportConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port              int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout       time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"` // imports run inside the request
	IdleTimeout       time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout   time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOriginsCSV string        `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
	AllowCredentials  bool          `envconfig:"SERVER_ALLOW_CREDENTIALS" default:"false"`
}

// StorageConfig selects the timeline store backend.
type StorageConfig struct {
	Driver     string `envconfig:"STORAGE_DRIVER" default:"sqlite"` // sqlite|graph
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./data/lifetrace.db"`
}

// GraphConfig describes connectivity to the graph database (Neo4j).
type GraphConfig struct {
	URI            string `envconfig:"GRAPH_URI"`
	Database       string `envconfig:"GRAPH_DATABASE"`
	Username       string `envconfig:"GRAPH_USERNAME"`
	Password       string `envconfig:"GRAPH_PASSWORD"`
	MaxConnections int    `envconfig:"GRAPH_MAX_CONNECTIONS" default:"10"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `envconfig:"LOG_LEVEL" default:"info"`
	Format        string `envconfig:"LOG_FORMAT" default:"text"` // text|json
	IncludeCaller bool   `envconfig:"LOG_INCLUDE_CALLER" default:"false"`
}

// ImportConfig locates takeout exports on disk.
type ImportConfig struct {
	TakeoutDir string `envconfig:"TAKEOUT_DIR" default:"./takeout"`
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverGraph  = "graph"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.HTTP.Port)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverGraph:
		if c.Graph.URI == "" {
			return fmt.Errorf("GRAPH_URI is required for the graph driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// AllowedOrigins splits the CORS origin list.
func (c HTTPConfig) AllowedOrigins() []string {
	if c.AllowedOriginsCSV == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(c.AllowedOriginsCSV, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
