package cfg

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// StorageConfiguration controls how encoded documents are laid out in the
// host column: inline, zstd-compressed, or moved out of line.
type StorageConfiguration struct {
	CompressThresholdBytes int    `toml:"compress_threshold_bytes"` // Encoded size above which compression is attempted
	ExternalThresholdBytes int    `toml:"external_threshold_bytes"` // Stored size above which the value moves out of line
	CompressionLevel       int    `toml:"compression_level"`        // 1 (fastest) .. 4 (best)
	ExternalDir            string `toml:"external_dir"`             // Pebble directory, relative to data_dir
	PebbleCacheMB          int    `toml:"pebble_cache_mb"`
	DisableWAL             bool   `toml:"disable_wal"`
}

// SQLiteConfiguration controls the host database
type SQLiteConfiguration struct {
	Path       string `toml:"path"` // Relative to data_dir unless absolute
	DriverName string `toml:"driver_name"`
}

// AdminConfiguration for the HTTP inspection endpoints
type AdminConfiguration struct {
	Enabled       bool     `toml:"enabled"`
	BindAddress   string   `toml:"bind_address"`
	Port          int      `toml:"port"`
	AllowedTables []string `toml:"allowed_tables"` // Glob patterns; empty allows none
	AuthToken     string   `toml:"auth_token"`     // Empty disables authentication
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// Configuration is the main configuration structure
type Configuration struct {
	DataDir string `toml:"data_dir"`

	Storage    StorageConfiguration    `toml:"storage"`
	SQLite     SQLiteConfiguration     `toml:"sqlite"`
	Admin      AdminConfiguration      `toml:"admin"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	DBPathFlag     = flag.String("db", "", "SQLite database path (overrides config)")
	HTTPPortFlag   = flag.Int("http-port", 0, "Admin HTTP port (overrides config)")
)

// Default configuration
var Config = &Configuration{
	DataDir: "./sqlbson-data",

	Storage: StorageConfiguration{
		CompressThresholdBytes: 2048,      // Same order as the TOAST threshold
		ExternalThresholdBytes: 64 * 1024, // Keep SQLite pages small
		CompressionLevel:       1,
		ExternalDir:            "external",
		PebbleCacheMB:          32,
	},

	SQLite: SQLiteConfiguration{
		Path:       "documents.db",
		DriverName: "sqlite3_bson",
	},

	Admin: AdminConfiguration{
		Enabled:       true,
		BindAddress:   "127.0.0.1",
		Port:          8089,
		AllowedTables: []string{},
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *DBPathFlag != "" {
		Config.SQLite.Path = *DBPathFlag
	}
	if *HTTPPortFlag != 0 {
		Config.Admin.Port = *HTTPPortFlag
	}

	if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// Validate checks configuration for errors
func Validate() error {
	if Config.Storage.CompressThresholdBytes < 0 {
		return fmt.Errorf("compress threshold must be >= 0")
	}

	if Config.Storage.ExternalThresholdBytes < 1 {
		return fmt.Errorf("external threshold must be >= 1 byte")
	}

	if Config.Storage.CompressionLevel < 1 || Config.Storage.CompressionLevel > 4 {
		return fmt.Errorf("invalid compression level: %d (expected 1-4)", Config.Storage.CompressionLevel)
	}

	if Config.Storage.PebbleCacheMB < 1 {
		return fmt.Errorf("pebble cache must be >= 1 MB")
	}

	if Config.SQLite.Path == "" {
		return fmt.Errorf("sqlite path must be set")
	}

	if Config.SQLite.DriverName == "" {
		return fmt.Errorf("sqlite driver name must be set")
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	for _, pattern := range Config.Admin.AllowedTables {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid allowed table pattern %q: %w", pattern, err)
		}
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	return nil
}

// IsAdminAuthEnabled returns true if admin endpoints require a token
func IsAdminAuthEnabled() bool {
	return Config.Admin.AuthToken != ""
}

// GetSQLitePath returns the database path resolved against the data directory
func GetSQLitePath() string {
	return resolve(Config.SQLite.Path)
}

// GetExternalStorePath returns the out-of-line store directory
func GetExternalStorePath() string {
	return resolve(Config.Storage.ExternalDir)
}

func resolve(p string) string {
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(Config.DataDir, p)
}
