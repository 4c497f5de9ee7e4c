package sqlite

import (
	"fmt"

	"parcel-sorter/internal/storage"
)

// Factory creates SQLite stores from typed or generic configuration.
type Factory struct{}

// Create builds an Adapter.
func (f *Factory) Create(config storage.StoreConfig) (storage.Store, error) {
	switch c := config.(type) {
	case *Config:
		return NewAdapter(c)
	case storage.GenericConfig:
		return NewAdapter(&Config{DatabasePath: c["path"]})
	default:
		return nil, fmt.Errorf("invalid config type for SQLite storage")
	}
}

// GetType returns the backend type key.
func (f *Factory) GetType() string {
	return "sqlite"
}

func init() {
	storage.Register("sqlite", &Factory{})
}
