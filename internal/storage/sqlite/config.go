package sqlite

import "fmt"

// Config holds SQLite adapter settings.
type Config struct {
	DatabasePath string
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// GetType returns the backend type key.
func (c *Config) GetType() string {
	return "sqlite"
}

// DefaultConfig returns a config pointing at the working directory.
func DefaultConfig() *Config {
	return &Config{DatabasePath: "./parcel_sorter.db"}
}
