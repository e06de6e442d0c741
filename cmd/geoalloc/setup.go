package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/TomasB/geoalloc/internal/config"
	"github.com/TomasB/geoalloc/internal/data"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogger installs a JSON slog logger writing to out, or to a rotated
// file when LOG_FILE is set. The returned closer releases the file.
func setupLogger(cfg *config.Config, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		out, closer = rotator, rotator
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: getLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return logger, closer
}

// getLogLevel converts string log level to slog.Level
func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore creates the configured backend and loads the dataset into it.
func openStore(ctx context.Context, cfg *config.Config) (*data.AllocationStore, error) {
	var backend data.Backend
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := data.OpenSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		sqlBackend, err := data.NewSQLBackend(db, data.WithCacheSize(cfg.Store.CacheSize))
		if err != nil {
			return nil, err
		}
		backend = sqlBackend
	default:
		backend = data.NewMemoryBackend()
	}

	store := data.NewAllocationStore(backend)
	n, err := store.LoadFile(ctx, cfg.Dataset.Path)
	if err != nil {
		store.Close()
		return nil, err
	}

	slog.Info("dataset loaded", "path", cfg.Dataset.Path, "records", n, "driver", cfg.Store.Driver)
	return store, nil
}

// openFallback opens the MMDB file when one is configured. It returns nil
// when MMDB_PATH is unset.
func openFallback(cfg *config.Config) (data.LocationLookup, error) {
	if cfg.MMDBPath == "" {
		return nil, nil
	}
	reader, err := data.NewMmdbReader(cfg.MMDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB %q: %w", cfg.MMDBPath, err)
	}
	slog.Info("MMDB loaded", "path", cfg.MMDBPath)
	return reader, nil
}
