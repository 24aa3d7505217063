package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/database"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/internal/storage/file"
	"github.com/adventurelime/explorer/internal/storage/gormstore"
)

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "file":
		Logger.Info("File storage backend initialized", "dir", storageCfg.File.Dir)
		return file.New(storageCfg.File), nil

	case "sqlite", "postgres":
		manager := database.NewManager(ZLogger.With().Str("component", "database").Logger())
		db, err := manager.Open(storageCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", storageCfg.Type, err)
		}
		Logger.Info("Database storage backend initialized", "type", storageCfg.Type)
		return gormstore.New(db), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
}

// runMigrate copies the snapshots of a file backend directory into the configured database backend.
func runMigrate(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: explorer migrate <snapshot dir>")
	}
	storageCfg := config.Storage()
	if storageCfg.Type == "file" {
		return errors.New("migrate needs storage.type sqlite or postgres")
	}

	src := file.New(config.FileConfig{Dir: args[0], Compress: storageCfg.File.Compress})
	dst, err := createStorageBackend(storageCfg)
	if err != nil {
		return err
	}
	if err := dst.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer closeBackend(dst)

	return migrateSnapshots(context.Background(), src, dst)
}

func migrateSnapshots(ctx context.Context, src, dst storage.Backend) error {
	expl, err := src.LoadExploration(ctx)
	switch {
	case errors.Is(err, storage.ErrNoPriorState):
		Logger.Warn("No exploration snapshot to migrate", "error", err)
	case err != nil:
		return err
	default:
		if err := dst.SaveExploration(ctx, expl); err != nil {
			return err
		}
		Logger.Info("Migrated exploration snapshot", "points", len(expl.Path), "unlocked", len(expl.UnlockedTileIDs))
	}

	prog, err := src.LoadProgression(ctx)
	switch {
	case errors.Is(err, storage.ErrNoPriorState):
		Logger.Warn("No progression snapshot to migrate", "error", err)
	case err != nil:
		return err
	default:
		if err := dst.SaveProgression(ctx, prog); err != nil {
			return err
		}
		Logger.Info("Migrated progression snapshot", "xp", prog.XP)
	}
	return nil
}
