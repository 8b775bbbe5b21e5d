// Package config loads the engine configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/corvusdb/corvusdb/index"
)

// Defaults.
const (
	DefaultDataFileSize      = uint32(512 * 1024)
	DefaultNodeCacheCapacity = 16
	DefaultFileCacheCapacity = 20
)

// Config holds the storage engine settings.
type Config struct {
	// DataDir is the root directory index data directories live under.
	DataDir string `yaml:"data_dir"`

	// DataFileSize is the size of each index data file. Must be a multiple
	// of the node size and hold at least one data node.
	DataFileSize uint32 `yaml:"data_file_size"`

	// NodeCacheCapacity bounds each node cache.
	NodeCacheCapacity int `yaml:"node_cache_capacity"`

	// FileCacheCapacity bounds the number of simultaneously open data
	// files per linear index.
	FileCacheCapacity int `yaml:"file_cache_capacity"`

	// MessageCatalog is the path of the message catalog file.
	MessageCatalog string `yaml:"message_catalog"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataFileSize:      DefaultDataFileSize,
		NodeCacheCapacity: DefaultNodeCacheCapacity,
		FileCacheCapacity: DefaultFileCacheCapacity,
	}
}

// Load reads a YAML configuration file on top of the defaults and validates
// the result.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err = yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	if err = c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.DataFileSize%index.NodeSize != 0 || c.DataFileSize < 2*index.NodeSize {
		return fmt.Errorf("data_file_size %d must be a multiple of %d and hold at least one node",
			c.DataFileSize, index.NodeSize)
	}
	if c.NodeCacheCapacity <= 0 {
		return fmt.Errorf("node_cache_capacity must be positive")
	}
	if c.FileCacheCapacity <= 0 {
		return fmt.Errorf("file_cache_capacity must be positive")
	}
	return nil
}
