package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOMELEDGER_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Sync.PageSize != 50 || c.Sync.BatchLimit != 450 {
		t.Fatalf("sync defaults = %+v", c.Sync)
	}
	if c.Sync.Staleness != 5*time.Minute {
		t.Fatalf("staleness = %v, want 5m", c.Sync.Staleness)
	}
	if c.BigQuery.DatasetID != "ledger" {
		t.Fatalf("dataset = %q, want ledger", c.BigQuery.DatasetID)
	}
	if c.LogLevel != "info" {
		t.Fatalf("log level = %q, want info", c.LogLevel)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
user = "alice"
log_level = "debug"

[bigquery]
project_id = "household-ledger"
dataset_id = "main"

[sync]
page_size = 25
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOMELEDGER_CONFIG", path)
	t.Setenv("HOMELEDGER_SYNC_PAGE_SIZE", "80")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.User != "alice" || c.LogLevel != "debug" {
		t.Fatalf("config = %+v", c)
	}
	if c.BigQuery.ProjectID != "household-ledger" || c.BigQuery.DatasetID != "main" {
		t.Fatalf("bigquery = %+v", c.BigQuery)
	}
	// Environment wins over the file.
	if c.Sync.PageSize != 80 {
		t.Fatalf("page size = %d, want env override 80", c.Sync.PageSize)
	}
}
