package storage

import (
	"fmt"

	"parcel-sorter/internal/common/errors"
	"parcel-sorter/internal/config"
)

// GenericConfig is a loosely-typed backend configuration, used when the
// caller only has flat key/value settings. Backend factories convert it to
// their typed config.
type GenericConfig map[string]string

// Validate is deferred to the backend's typed config.
func (c GenericConfig) Validate() error { return nil }

// GetType returns the backend type key.
func (c GenericConfig) GetType() string { return c["type"] }

// NewStore creates a store from application configuration via the default
// registry. The backend packages must be imported for their factories to be
// registered.
func NewStore(cfg *config.Config) (Store, error) {
	var storeConfig StoreConfig

	switch cfg.DatabaseType {
	case "sqlite":
		storeConfig = GenericConfig{
			"type": "sqlite",
			"path": cfg.DatabasePath,
		}
	case "postgres", "postgresql":
		storeConfig = GenericConfig{
			"type":     "postgres",
			"host":     cfg.PostgresHost,
			"port":     cfg.PostgresPort,
			"database": cfg.PostgresDB,
			"username": cfg.PostgresUser,
			"password": cfg.PostgresPassword,
			"sslmode":  cfg.PostgresSSLMode,
		}
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	return Create(storeConfig.GetType(), storeConfig)
}
