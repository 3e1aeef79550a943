// Package cache keeps hot collection documents in Redis in front of the
// record store. The cache is never the source of truth: reads fall through to
// storage on a miss, mutations write storage first and then refresh the entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"collection-runner/internal/logger"
	"collection-runner/internal/models"
)

const keyPrefix = "collection:"

// CollectionCache is consulted by the collection service around every
// collection read and mutation.
type CollectionCache interface {
	Get(ctx context.Context, id string) (*models.Collection, bool)
	Set(ctx context.Context, c *models.Collection)
	Invalidate(ctx context.Context, id string)
}

// Redis is the production cache. Errors are logged and treated as misses so a
// degraded Redis never fails a request.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log logger.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, log: log}
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*models.Collection, bool) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache read failed", logger.String("collection_id", id), logger.Error(err))
		}
		return nil, false
	}
	var c models.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		r.log.Warn("cache entry corrupt, dropping", logger.String("collection_id", id), logger.Error(err))
		r.Invalidate(ctx, id)
		return nil, false
	}
	return &c, true
}

func (r *Redis) Set(ctx context.Context, c *models.Collection) {
	data, err := json.Marshal(c)
	if err != nil {
		r.log.Warn("cache encode failed", logger.String("collection_id", c.ID), logger.Error(err))
		return
	}
	if err := r.client.Set(ctx, keyPrefix+c.ID, data, r.ttl).Err(); err != nil {
		r.log.Warn("cache write failed", logger.String("collection_id", c.ID), logger.Error(err))
	}
}

func (r *Redis) Invalidate(ctx context.Context, id string) {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		r.log.Warn("cache invalidate failed", logger.String("collection_id", id), logger.Error(err))
	}
}

// Disabled is used when no Redis address is configured.
type Disabled struct{}

func (Disabled) Get(context.Context, string) (*models.Collection, bool) { return nil, false }
func (Disabled) Set(context.Context, *models.Collection)                {}
func (Disabled) Invalidate(context.Context, string)                     {}
