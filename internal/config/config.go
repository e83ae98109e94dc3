// Package config loads application settings from a TOML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	User     string
	LogLevel string `mapstructure:"log_level"`
	Cache    CacheConfig
	BigQuery BigQueryConfig
	Sync     SyncConfig
	LLM      LLMConfig
}

// CacheConfig holds local snapshot store settings.
type CacheConfig struct {
	Path string
}

// BigQueryConfig holds the remote store location.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	DatasetID string `mapstructure:"dataset_id"`
}

// SyncConfig tunes the engine.
type SyncConfig struct {
	PageSize    int           `mapstructure:"page_size"`
	PagePadding int           `mapstructure:"page_padding"`
	BatchLimit  int           `mapstructure:"batch_limit"`
	Staleness   time.Duration `mapstructure:"staleness"`
}

// LLMConfig holds category-suggestion settings.
type LLMConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string
}

// Load reads configuration from file and env. Env var overrides use prefix
// HOMELEDGER_, e.g. HOMELEDGER_BIGQUERY_PROJECT_ID.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("user", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("cache.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "homeledger", "cache.db"))
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset_id", "ledger")
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.page_padding", 10)
	v.SetDefault("sync.batch_limit", 450)
	v.SetDefault("sync.staleness", 5*time.Minute)
	v.SetDefault("llm.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("llm.model", "gemini-2.5-flash")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("HOMELEDGER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "homeledger"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("HOMELEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
