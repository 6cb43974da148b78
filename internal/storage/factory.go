package storage

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/internal/database"
	"github.com/sabers-go/sabers/internal/logging"
	"github.com/sabers-go/sabers/internal/storage/gormstore"
	"github.com/sabers-go/sabers/internal/storage/memory"
)

// Dependencies holds what database-backed storage needs besides configuration
type Dependencies struct {
	DB         config.DBConfig
	DBLogger   zerolog.Logger
	LogManager *logging.SlogManager
}

// NewBackend creates a storage backend based on configuration. The backend
// is not initialized; callers must call Init.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		m := database.NewManager(deps.DBLogger)
		if err := m.ConnectSQLite(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		return gormstore.New(gormstore.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, gormstore.Dependencies{Manager: m, LogManager: deps.LogManager}), nil
	case "postgres":
		m := database.NewManager(deps.DBLogger)
		if err := m.ConnectPostgres(deps.DB); err != nil {
			return nil, err
		}
		return gormstore.New(gormstore.Config{}, gormstore.Dependencies{Manager: m, LogManager: deps.LogManager}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
