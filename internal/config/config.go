// Package config provides configuration management for pagedbctl.
// It defines configuration structures and default values for the store,
// the ingestion pipeline, and logging.
package config

import "time"

// StoreConfig controls how the on-disk PageDB is opened.
type StoreConfig struct {
	Dir             string `mapstructure:"dir" yaml:"dir"`                             // Store directory
	InitialMmapSize int64  `mapstructure:"initial_mmap_size" yaml:"initial_mmap_size"` // Initial mmap size in bytes
	MaxMmapSize     int64  `mapstructure:"max_mmap_size" yaml:"max_mmap_size"`         // Mmap growth ceiling in bytes
	HashAlgorithm   string `mapstructure:"hash_algorithm" yaml:"hash_algorithm"`       // Currently only "xxhash64"
}

// IngestConfig controls the ingestion worker pool that feeds CrawledPage
// records into the store.
type IngestConfig struct {
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`           // Number of ingest workers
	PerHostDelay   time.Duration `mapstructure:"per_host_delay" yaml:"per_host_delay"`     // Minimum delay between pages from the same host
	Limit          int           `mapstructure:"limit" yaml:"limit"`                       // Stop after N pages, 0 = unlimited
	ReadAheadEdges int           `mapstructure:"read_ahead_edges" yaml:"read_ahead_edges"` // Link-stream read-ahead buffer size
}

// LoggingConfig controls the slog handler and the rotating file writer.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	File       string `mapstructure:"file" yaml:"file"`               // Path to log file, empty disables file logging
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Max log file size in MB before rotation
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Number of rotated files to keep
	Console    bool   `mapstructure:"console" yaml:"console"`         // Also log to stdout
}

// Config is the top-level configuration for pagedbctl.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Ingest  IngestConfig  `mapstructure:"ingest" yaml:"ingest"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:             "./pagedb-data",
			InitialMmapSize: 100 << 20,
			MaxMmapSize:     32 << 30,
			HashAlgorithm:   "xxhash64",
		},
		Ingest: IngestConfig{
			Concurrency:    2,
			PerHostDelay:   100 * time.Millisecond,
			Limit:          0,
			ReadAheadEdges: 256,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  100,
			MaxBackups: 5,
			Console:    true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return ErrEmptyStoreDir
	}
	if c.Store.MaxMmapSize > 0 && c.Store.InitialMmapSize > c.Store.MaxMmapSize {
		return ErrInitialExceedsMax
	}
	if c.Ingest.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Ingest.PerHostDelay < 0 {
		return ErrInvalidPerHostDelay
	}
	if c.Ingest.ReadAheadEdges < 0 {
		return ErrInvalidReadAheadEdges
	}
	switch c.Store.HashAlgorithm {
	case "", "xxhash64":
	default:
		return ErrUnknownHashAlgorithm
	}
	return nil
}
