package db

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"hbnb/src/config"
	"hbnb/src/logger"
	"hbnb/src/types"
)

// Open returns the storage engine selected by cfg.StorageType.
func Open(ctx context.Context, cfg config.Config, lggr logger.Logger) (types.Engine, error) {
	switch cfg.StorageType {
	case config.StorageFile:
		return OpenFile(cfg.FilePath)
	case config.StorageSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.StorageElastic:
		return OpenElastic(ctx, cfg.ElasticURL, cfg.ElasticIndex, lggr)
	}
	return nil, fmt.Errorf("unsupported storage type %q", cfg.StorageType)
}

// LoadData seeds engine from a JSON dump keyed "Class.id", the same layout
// FileEngine writes. Plaintext user passwords are hashed before storing.
// It returns the number of objects loaded.
func LoadData(ctx context.Context, engine types.Engine, path string, lggr logger.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	docs := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	loaded := 0
	for key, raw := range docs {
		obj, err := decodeKeyed(key, raw)
		if err != nil {
			lggr.Warnw("Skipping seed entry", "key", key, "err", err)
			continue
		}
		base := obj.Base()
		if base.ID == "" {
			lggr.Warnw("Skipping seed entry without id", "key", key)
			continue
		}
		if base.CreatedAt.IsZero() {
			base.CreatedAt = types.Now()
		}
		if base.UpdatedAt.IsZero() {
			base.UpdatedAt = base.CreatedAt
		}
		if u, ok := obj.(*types.User); ok && u.Password != "" && !u.HasHashedPassword() {
			if err := u.SetPassword(u.Password); err != nil {
				return loaded, fmt.Errorf("hash password for %s: %w", key, err)
			}
		}
		if err := engine.New(ctx, obj); err != nil {
			return loaded, fmt.Errorf("stage %s: %w", key, err)
		}
		loaded++
	}

	if err := engine.Save(ctx); err != nil {
		return loaded, err
	}
	lggr.Infow("Seed data loaded", "path", path, "objects", loaded)
	return loaded, nil
}
