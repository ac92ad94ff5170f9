package store

import (
	"context"
	"fmt"

	"github.com/vogiaan1904/vcping/config"
	redisInfra "github.com/vogiaan1904/vcping/internal/infra/redis"
	sqliteInfra "github.com/vogiaan1904/vcping/internal/infra/sqlite"
	redisRepo "github.com/vogiaan1904/vcping/internal/repository/redis"
	sqliteRepo "github.com/vogiaan1904/vcping/internal/repository/sqlite"
	"github.com/vogiaan1904/vcping/internal/repository/sqlite/migrations"
	"github.com/vogiaan1904/vcping/internal/subscription"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

// Open connects the subscription store selected by cfg.Store.Backend. The
// returned func releases the connection.
func Open(ctx context.Context, cfg *config.Config, l logger.Logger) (subscription.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		cli, err := redisInfra.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redisRepo.NewRedisSubscriptionRepository(cli, l), func() { redisInfra.Disconnect(cli) }, nil

	case config.StoreBackendSQLite:
		db, err := sqliteInfra.Connect(ctx, cfg.SQLite, migrations.FS)
		if err != nil {
			return nil, nil, err
		}
		return sqliteRepo.NewSQLiteSubscriptionRepository(db, l), func() { sqliteInfra.Disconnect(db) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}
