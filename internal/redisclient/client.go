package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-service/internal/cart"
)

// cartKeyTTL bounds abandoned carts. The cart itself has no expiry policy;
// this only reclaims keys nobody has touched for a long time.
const cartKeyTTL = 90 * 24 * time.Hour

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CartStorage returns the persisted key for one cart. Every cart lives
// under a single key holding the serialized line list.
func (c *Client) CartStorage(cartID string) cart.Storage {
	return &cartKey{rdb: c.rdb, key: fmt.Sprintf("cart:%s", cartID)}
}

type cartKey struct {
	rdb *redis.Client
	key string
}

func (k *cartKey) Read(ctx context.Context) ([]byte, bool, error) {
	payload, err := k.rdb.Get(ctx, k.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cart read failed: %w", err)
	}
	return payload, true, nil
}

func (k *cartKey) Write(ctx context.Context, payload []byte) error {
	if err := k.rdb.Set(ctx, k.key, payload, cartKeyTTL).Err(); err != nil {
		return fmt.Errorf("cart write failed: %w", err)
	}
	return nil
}

func (k *cartKey) Delete(ctx context.Context) error {
	if err := k.rdb.Del(ctx, k.key).Err(); err != nil {
		return fmt.Errorf("cart delete failed: %w", err)
	}
	return nil
}
