package storage

import (
	"fmt"

	"github.com/contentlab/seo-assistant/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the backend selected by cfg.StorageBackend
func New(cfg *config.Config) (StorageInterface, error) {
	logrus.Infof("Using %s storage backend", cfg.StorageBackend)

	switch cfg.StorageBackend {
	case config.StorageFile:
		return NewFileStorage(cfg.StateDir)
	case config.StorageMemory:
		return NewMemoryStorage(), nil
	case config.StorageAzure:
		return NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	case config.StorageRedis:
		return NewRedisStorage(cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
