// Package redis wraps go-redis for a read-through wallet-balance cache. It
// also offers best-effort idempotency-key helpers (CheckIdempotency/
// SetIdempotency), which no service currently calls. Correctness of wallet
// mutations never depends on Redis — see SPEC_FULL.md §1.4.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/logger"
)

type Client struct {
	rdb    *goredis.Client
	logger *logger.Logger
}

func Connect(cfg config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infof("connected to redis %s", cfg.Addr)
	return &Client{rdb: rdb, logger: log}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func walletBalanceKey(walletID string) string {
	return fmt.Sprintf("wallet:balance:%s", walletID)
}

func (c *Client) CacheWalletBalance(ctx context.Context, walletID, balance string, ttl time.Duration) error {
	return c.rdb.Set(ctx, walletBalanceKey(walletID), balance, ttl).Err()
}

func (c *Client) GetCachedWalletBalance(ctx context.Context, walletID string) (string, error) {
	val, err := c.rdb.Get(ctx, walletBalanceKey(walletID)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) InvalidateWalletBalance(ctx context.Context, walletID string) error {
	return c.rdb.Del(ctx, walletBalanceKey(walletID)).Err()
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, key)
}

// CheckIdempotency reports whether key has already been recorded for scope.
func (c *Client) CheckIdempotency(ctx context.Context, scope, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, idempotencyKey(scope, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) SetIdempotency(ctx context.Context, scope, key string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(scope, key), "1", ttl).Err()
}
