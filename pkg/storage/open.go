package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// Open builds the term store selected by cfg.Backend.
// cfg is expected to have been validated.
func Open(ctx context.Context, cfg config.StoreConfig, logger *logrus.Entry) (Store, error) {
	logger = logger.WithField("backend", cfg.Backend)
	switch cfg.Backend {
	case config.StoreBackendBadger, "":
		s, err := NewBadgerStore(cfg.StateDir, logger)
		if err != nil {
			return nil, err
		}
		if cfg.GCInterval > 0 {
			go s.RunGC(ctx, cfg.GCInterval)
		}
		return s, nil
	case config.StoreBackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case config.StoreBackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", utils.ErrConfigValidation, cfg.Backend)
	}
}
