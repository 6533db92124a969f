package cache

import (
	"fmt"
	"os"

	"github.com/tbourn/go-flight-scraper/internal/config"
)

// Open builds the backend selected by cfg.Backend.
func Open(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(cfg.TTL, nil), nil
	case config.BackendSQLite:
		return OpenSQLiteStore(cfg.DBPath, cfg.TTL)
	case config.BackendLevelDB:
		if err := os.MkdirAll(cfg.LevelDBPath, 0o755); err != nil {
			return nil, err
		}
		return OpenLevelDBStore(cfg.LevelDBPath, cfg.TTL)
	case config.BackendValkey:
		return NewValkeyStore(ValkeyConfig{
			Address:   cfg.ValkeyAddr,
			Password:  cfg.ValkeyPassword,
			DB:        cfg.ValkeyDB,
			KeyPrefix: cfg.ValkeyPrefix,
		}, cfg.TTL)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
