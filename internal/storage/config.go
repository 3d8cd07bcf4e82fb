package storage

import (
	"time"

	"github.com/kyleking/timesheet-sql/internal/config"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
)

// NewDuckDBStoreFromConfig creates a store with the pool and timeout settings from config
func NewDuckDBStoreFromConfig(cfg *config.Config) (*DuckDBStore, error) {
	lifetime, err := time.ParseDuration(cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid conn_max_lifetime: "+err.Error(), "database.conn_max_lifetime")
	}

	return NewDuckDBStore(cfg.Database.Path, cfg.Database.Table, Options{
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: lifetime,
		QueryTimeout:    cfg.QueryTimeout(),
	})
}
