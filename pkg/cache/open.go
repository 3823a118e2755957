package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by [Open].
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config selects and configures a storage backend.
type Config struct {
	Backend string `toml:"backend"`
	// Dir is the file backend's directory. Empty uses [DefaultDir].
	Dir string `toml:"dir"`
	// URL is the Redis or MongoDB connection string.
	URL string `toml:"url"`
	// Database and Collection name the MongoDB collection.
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
	// KeyPrefix is prepended to Redis keys.
	KeyPrefix string `toml:"key_prefix"`
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case BackendNone:
		return NewNullCache(), nil
	case "", BackendFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return NewFileCache(dir)
	case BackendMemory:
		return NewMemoryCache(), nil
	case BackendRedis:
		return NewRedisCache(ctx, cfg.URL, cfg.KeyPrefix)
	case BackendMongo:
		db, coll := cfg.Database, cfg.Collection
		if db == "" {
			db = "linkcard"
		}
		if coll == "" {
			coll = "cache"
		}
		return NewMongoCache(ctx, cfg.URL, db, coll)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

// DefaultDir returns the per-user cache directory, ~/.cache/linkcard on Linux.
func DefaultDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(dir, "linkcard"), nil
}
