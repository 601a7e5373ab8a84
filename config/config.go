// Package config loads divine's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ast-ral/divine/application/validation"
	"github.com/ast-ral/divine/domain/entities"
	"gopkg.in/yaml.v3"
)

// Record store backends.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Config is the top-level configuration document.
type Config struct {
	// Owner is the only caller allowed to clear or upload the artifact.
	Owner   string        `yaml:"owner" json:"owner" validate:"required"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Chunks  ChunkConfig   `yaml:"chunks" json:"chunks"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`
}

// StoreConfig selects where the artifact record is persisted.
type StoreConfig struct {
	Backend  string `yaml:"backend" json:"backend" validate:"oneof=file bolt memory"`
	Path     string `yaml:"path" json:"path" validate:"required_unless=Backend memory"`
	RecordID string `yaml:"record_id" json:"record_id" validate:"required"`
}

// ChunkConfig describes the packaged chunk directory.
type ChunkConfig struct {
	Dir   string `yaml:"dir" json:"dir" validate:"required"`
	Sweep bool   `yaml:"sweep" json:"sweep"`
}

// RuntimeConfig tunes the guest executor.
type RuntimeConfig struct {
	CacheDir         string        `yaml:"cache_dir" json:"cache_dir"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	MemoryLimitPages uint32        `yaml:"memory_limit_pages" json:"memory_limit_pages" validate:"lte=65536"`
	CacheCompiled    bool          `yaml:"cache_compiled" json:"cache_compiled"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Owner: "local",
		Store: StoreConfig{
			Backend:  BackendFile,
			Path:     ".divine/records.yaml",
			RecordID: entities.DefaultRecordID,
		},
		Runtime: RuntimeConfig{
			CacheCompiled: true,
		},
		Chunks: ChunkConfig{Dir: "."},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over Default and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field rule.
func (c Config) Validate() error {
	return validation.Struct(c)
}
