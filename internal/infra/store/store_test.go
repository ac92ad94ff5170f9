package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/vcping/config"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

func TestOpenBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := map[string]*config.Config{
		"redis": {
			Store: config.StoreConfig{Backend: config.StoreBackendRedis},
			Redis: config.RedisConfig{Addr: mr.Addr(), PoolSize: 2},
		},
		"sqlite": {
			Store:  config.StoreConfig{Backend: config.StoreBackendSQLite},
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "vcping.db")},
		},
	}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, closeFn, err := Open(ctx, cfg, logger.InitializeTestZapLogger())
			require.NoError(t, err)
			defer closeFn()

			require.NoError(t, s.Upsert(ctx, domain.Subscription{UserID: "u1", CommunityID: "g1", NotifyOnLeave: true}))
			subs, err := s.ListSubscribers(ctx, "g1")
			require.NoError(t, err)
			assert.Len(t, subs, 1)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Backend: "mongo"}}, logger.InitializeTestZapLogger())
	assert.Error(t, err)
}
