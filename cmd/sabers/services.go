package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/sabers-go/sabers/internal/cache"
	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/internal/influx"
	"github.com/sabers-go/sabers/internal/storage"
	"github.com/sabers-go/sabers/internal/worker"
)

// services are the long-lived collaborators of the ingest and watch commands.
type services struct {
	backend storage.Backend
	influx  *influx.Manager
	worker  *worker.Manager
}

func zerologOutput() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

func newServices(ctx context.Context) (*services, error) {
	ingestCfg := config.GetIngestConfig()
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		DB:         config.GetDBConfig(),
		DBLogger:   zerolog.New(zerologOutput()).With().Timestamp().Str("component", "database").Logger(),
		LogManager: SlogManager,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	s := &services{backend: backend}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		s.influx = influx.NewManager(
			zerolog.New(zerologOutput()).With().Timestamp().Str("component", "influx").Logger(),
			influxCfg,
		)
		if err := s.influx.Connect(ctx); err != nil {
			Logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			s.influx = nil
		}
	}

	loader, err := newLoader(ingestCfg.Strict)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.worker = worker.NewManager(worker.Dependencies{
		Loader:         loader,
		HashCache:      cache.NewHashCache(),
		LogManager:     SlogManager,
		Influx:         s.influx,
		SkipDuplicates: ingestCfg.SkipDuplicates,
		FailureLimit:   1000,
	}, backend)

	// Re-run setup so every record carries the current run id.
	SlogManager.SetAttrSource(s.worker.LogContext)
	SlogManager.Setup(logWriter(), config.GetString("logLevel"), otelLogProvider())
	Logger = SlogManager.Logger()

	return s, nil
}

func (s *services) Close() {
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB", "error", err)
		}
	}
	if err := s.backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
	if exp, ok := s.backend.(storage.Exporter); ok {
		Logger.Info("Exported files", "count", len(exp.ExportedFiles()))
	}
}
