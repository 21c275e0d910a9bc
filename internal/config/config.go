// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"partquote/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Catalog locates the HCL catalog
	Catalog CatalogConfig `json:"catalog"`

	// Pricing contains pricing configuration
	Pricing PricingConfig `json:"pricing"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// CatalogConfig points at the finish operation and cost model definitions
type CatalogConfig struct {
	// Path is a directory (searched recursively) or a single .hcl file
	Path string `json:"path"`

	// CostModel names the cost_model block used when a request doesn't pick one
	CostModel string `json:"cost_model"`
}

// PricingConfig contains pricing-related settings
type PricingConfig struct {
	// Currency is reported on quotes; all drivers are assumed to share it
	Currency string `json:"currency"`

	// PrerequisitePolicy is "before" or "present"
	PrerequisitePolicy string `json:"prerequisite_policy"`

	// FormulaCacheSize bounds the parsed formula cache
	FormulaCacheSize int `json:"formula_cache_size"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Catalog: CatalogConfig{
			Path:      "catalog",
			CostModel: "default",
		},
		Pricing: PricingConfig{
			Currency:           "USD",
			PrerequisitePolicy: "before",
			FormulaCacheSize:   512,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
