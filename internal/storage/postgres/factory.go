package postgres

import (
	"fmt"

	"parcel-sorter/internal/storage"
)

// Factory creates PostgreSQL stores from typed or generic configuration.
type Factory struct{}

// Create builds an Adapter.
func (f *Factory) Create(config storage.StoreConfig) (storage.Store, error) {
	switch c := config.(type) {
	case *Config:
		return NewAdapter(c)
	case storage.GenericConfig:
		return NewAdapter(&Config{
			Host:     c["host"],
			Port:     c["port"],
			Database: c["database"],
			Username: c["username"],
			Password: c["password"],
			SSLMode:  c["sslmode"],
		})
	default:
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}
}

// GetType returns the backend type key.
func (f *Factory) GetType() string {
	return "postgres"
}

func init() {
	storage.Register("postgres", &Factory{})
}
