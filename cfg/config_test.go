package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig(dataDir string) *Configuration {
	return &Configuration{
		DataDir: dataDir,
		Storage: StorageConfiguration{
			CompressThresholdBytes: 2048,
			ExternalThresholdBytes: 65536,
			CompressionLevel:       1,
			ExternalDir:            "external",
			PebbleCacheMB:          8,
		},
		SQLite: SQLiteConfiguration{
			Path:       "documents.db",
			DriverName: "sqlite3_bson",
		},
		Admin: AdminConfiguration{
			Enabled:       true,
			Port:          8089,
			AllowedTables: []string{"docs_*"},
		},
		Logging: LoggingConfiguration{
			Format: "console",
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig("./test-data")

	if err := Validate(); err != nil {
		t.Errorf("Expected no error for valid config, got: %v", err)
	}
}

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(); err != nil {
		t.Errorf("Default configuration should validate, got: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"negative compress threshold", func(c *Configuration) { c.Storage.CompressThresholdBytes = -1 }},
		{"zero external threshold", func(c *Configuration) { c.Storage.ExternalThresholdBytes = 0 }},
		{"compression level too low", func(c *Configuration) { c.Storage.CompressionLevel = 0 }},
		{"compression level too high", func(c *Configuration) { c.Storage.CompressionLevel = 5 }},
		{"no pebble cache", func(c *Configuration) { c.Storage.PebbleCacheMB = 0 }},
		{"empty sqlite path", func(c *Configuration) { c.SQLite.Path = "" }},
		{"empty driver name", func(c *Configuration) { c.SQLite.DriverName = "" }},
		{"admin port zero", func(c *Configuration) { c.Admin.Port = 0 }},
		{"admin port too high", func(c *Configuration) { c.Admin.Port = 70000 }},
		{"bad table glob", func(c *Configuration) { c.Admin.AllowedTables = []string{"docs_[a"} }},
		{"bad log format", func(c *Configuration) { c.Logging.Format = "xml" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			Config = validConfig("./test-data")
			tc.mutate(Config)
			if err := Validate(); err == nil {
				t.Errorf("Expected error for %s", tc.name)
			}
		})
	}
}

func TestValidate_AdminPortIgnoredWhenDisabled(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig("./test-data")
	Config.Admin.Enabled = false
	Config.Admin.Port = 0

	if err := Validate(); err != nil {
		t.Errorf("Expected no error with admin disabled, got: %v", err)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := t.TempDir()
	Config = validConfig(tempDir)

	if err := Load("non-existent-file.toml"); err != nil {
		t.Errorf("Expected no error for non-existent file, got: %v", err)
	}
	if Config.Storage.CompressThresholdBytes != 2048 {
		t.Errorf("Defaults should be kept, got compress threshold %d", Config.Storage.CompressThresholdBytes)
	}
}

func TestLoad_CreateDataDir(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := filepath.Join(t.TempDir(), "nested", "data")
	Config = &Configuration{DataDir: tempDir}

	if err := Load(""); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Error("Data directory was not created")
	}
}

func TestLoad_FromFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := t.TempDir()
	Config = validConfig(tempDir)

	configPath := filepath.Join(tempDir, "config.toml")
	content := `
data_dir = "` + filepath.ToSlash(tempDir) + `"

[storage]
compress_threshold_bytes = 512
external_threshold_bytes = 4096
compression_level = 3

[admin]
allowed_tables = ["docs", "archive_*"]

[logging]
format = "json"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := Load(configPath); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if Config.Storage.CompressThresholdBytes != 512 {
		t.Errorf("Expected compress threshold 512, got %d", Config.Storage.CompressThresholdBytes)
	}
	if Config.Storage.ExternalThresholdBytes != 4096 {
		t.Errorf("Expected external threshold 4096, got %d", Config.Storage.ExternalThresholdBytes)
	}
	if Config.Storage.CompressionLevel != 3 {
		t.Errorf("Expected compression level 3, got %d", Config.Storage.CompressionLevel)
	}
	if Config.Storage.PebbleCacheMB != 8 {
		t.Errorf("Unset keys should keep prior values, got pebble cache %d", Config.Storage.PebbleCacheMB)
	}
	if len(Config.Admin.AllowedTables) != 2 {
		t.Errorf("Expected 2 allowed table patterns, got %v", Config.Admin.AllowedTables)
	}
	if Config.Logging.Format != "json" {
		t.Errorf("Expected json log format, got %s", Config.Logging.Format)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := t.TempDir()
	Config = validConfig(tempDir)

	configPath := filepath.Join(tempDir, "broken.toml")
	if err := os.WriteFile(configPath, []byte("[storage\ncompression_level = "), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := Load(configPath); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := t.TempDir()

	*DataDirFlag = tempDir
	*DBPathFlag = "override.db"
	*HTTPPortFlag = 9999

	defer func() {
		*DataDirFlag = ""
		*DBPathFlag = ""
		*HTTPPortFlag = 0
	}()

	Config = validConfig("./default-data")

	if err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if Config.DataDir != tempDir {
		t.Errorf("Expected data dir %s, got %s", tempDir, Config.DataDir)
	}
	if Config.SQLite.Path != "override.db" {
		t.Errorf("Expected db override.db, got %s", Config.SQLite.Path)
	}
	if Config.Admin.Port != 9999 {
		t.Errorf("Expected admin port 9999, got %d", Config.Admin.Port)
	}
	if got := GetSQLitePath(); got != filepath.Join(tempDir, "override.db") {
		t.Errorf("Expected resolved db path under data dir, got %s", got)
	}
}

func TestResolvePaths(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig("/var/lib/sqlbson")

	if got := GetExternalStorePath(); got != filepath.Join("/var/lib/sqlbson", "external") {
		t.Errorf("Unexpected external path %s", got)
	}

	Config.SQLite.Path = ":memory:"
	if got := GetSQLitePath(); got != ":memory:" {
		t.Errorf("In-memory path must not be joined, got %s", got)
	}

	abs := filepath.Join(t.TempDir(), "abs.db")
	Config.SQLite.Path = abs
	if got := GetSQLitePath(); got != abs {
		t.Errorf("Absolute path must be kept, got %s", got)
	}
}
