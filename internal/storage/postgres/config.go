package postgres

import "fmt"

// Config holds PostgreSQL adapter settings.
type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// GetType returns the backend type key.
func (c *Config) GetType() string {
	return "postgres"
}

// ConnectionString builds the keyword/value DSN the pgx driver accepts.
func (c *Config) ConnectionString() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.Host, port, c.Database, c.Username, c.Password, sslMode)
}
