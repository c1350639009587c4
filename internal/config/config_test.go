package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rvsoni/hornetq/internal/config"
)

func TestDefault_HasSensibleValues(t *testing.T) {
	cfg := config.Default()

	if cfg.Node.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Node.Port)
	}
	if cfg.Node.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Node.Host)
	}
	if cfg.Node.DataDir != "./data" {
		t.Errorf("expected default data_dir ./data, got %s", cfg.Node.DataDir)
	}
	if cfg.Paging.FullSize != 75_000 {
		t.Errorf("expected default full_size 75000, got %d", cfg.Paging.FullSize)
	}
	if cfg.Paging.PageSize != 2_000 || cfg.Paging.DownCacheSize != 2_000 {
		t.Errorf("expected default page_size and down_cache_size 2000, got %d/%d",
			cfg.Paging.PageSize, cfg.Paging.DownCacheSize)
	}
	if !cfg.Paging.Recoverable {
		t.Error("expected default channel to be recoverable")
	}
	if cfg.Store.Path != "./data/channels.db" {
		t.Errorf("expected default store path ./data/channels.db, got %s", cfg.Store.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("/tmp/hornetq_nonexistent_config_12345.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Node.Port != 8080 {
		t.Errorf("expected default port for missing file, got %d", cfg.Node.Port)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	yaml := `
node:
  port: 9999
  host: "127.0.0.1"
  data_dir: "/tmp/hornetq_test"
paging:
  full_size: 10000
  page_size: 500
  down_cache_size: 250
store:
  path: "/tmp/hornetq_test/channels.db"
`
	path := writeTempYAML(t, yaml)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Node.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Node.Port)
	}
	if cfg.Node.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Node.Host)
	}
	if cfg.Paging.FullSize != 10000 || cfg.Paging.PageSize != 500 || cfg.Paging.DownCacheSize != 250 {
		t.Errorf("unexpected paging overrides: %+v", cfg.Paging)
	}
	if cfg.Store.Path != "/tmp/hornetq_test/channels.db" {
		t.Errorf("expected store path override, got %s", cfg.Store.Path)
	}
	// Unset fields keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level (unchanged), got %s", cfg.Logging.Level)
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	path := writeTempYAML(t, "node: [invalid: yaml: {{{}}")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := config.Default()
	cfg.Node.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 0")
	}

	cfg.Node.Port = 99999
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 99999")
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.Node.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty data_dir")
	}
}

func TestValidate_PagingParamOrdering(t *testing.T) {
	cfg := config.Default()
	cfg.Paging.PageSize = cfg.Paging.FullSize // page_size must be < full_size
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when page_size >= full_size")
	}
}

func TestValidate_EmptyStorePath(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty store.path")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown log level")
	}
}

// writeTempYAML writes content to a temp file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTempYAML: %v", err)
	}
	return path
}
