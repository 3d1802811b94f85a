// Package config loads the store's few scalar settings: defaults in code,
// optionally overridden by a kvstore.yaml in the working directory or by
// KVSTORE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultStorePath is where the page file lands when no path is given;
	// the value heap lands next to it at DefaultStorePath + "-entries".
	DefaultStorePath = "simpleKVStore"
	// DefaultBufferMaxEntries is the write buffer's capacity, counted in
	// entries.
	DefaultBufferMaxEntries = 100
)

// Config holds every tunable the store exposes.
type Config struct {
	StorePath        string
	BufferMaxEntries int
	Debug            bool
}

// Load reads kvstore.yaml (if present) and the environment on top of the
// built-in defaults. A missing config file is not an error.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("buffer.max_entries", DefaultBufferMaxEntries)
	v.SetDefault("log.debug", false)

	v.SetConfigName("kvstore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KVSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read kvstore.yaml: %w", err)
		}
	}

	cfg := Config{
		StorePath:        v.GetString("store.path"),
		BufferMaxEntries: v.GetInt("buffer.max_entries"),
		Debug:            v.GetBool("log.debug"),
	}
	if cfg.BufferMaxEntries < 1 {
		return Config{}, fmt.Errorf("config: buffer.max_entries must be positive, got %d", cfg.BufferMaxEntries)
	}
	return cfg, nil
}
