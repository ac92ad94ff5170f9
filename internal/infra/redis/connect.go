package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/vcping/config"
	pkgRedis "github.com/vogiaan1904/vcping/pkg/redis"
)

const retryBackoff = 500 * time.Millisecond

// Connect pings until Redis answers or cfg.ConnectAttempts is used up. The
// subscription store is the only Redis user, so the bot refuses to start
// without it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli, err := pkgRedis.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	attempts := max(cfg.ConnectAttempts, 1)
	for i := 1; ; i++ {
		err = cli.Ping(ctx).Err()
		if err == nil {
			break
		}
		if i == attempts {
			cli.Close()
			return nil, fmt.Errorf("failed to ping Redis at %s after %d attempts: %w", cfg.Addr, attempts, err)
		}

		log.Printf("Redis not ready (attempt %d/%d): %v\n", i, attempts, err)
		select {
		case <-ctx.Done():
			cli.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(i) * retryBackoff):
		}
	}

	log.Printf("Connected to Redis at %s (db %d).\n", cfg.Addr, cfg.DB)

	return cli, nil
}

func Disconnect(cli *redis.Client) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		log.Printf("Failed to close Redis connection: %v\n", err)
		return
	}

	log.Println("Connection to Redis closed.")
}
