package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implementa un cache distribuito usando Redis
type RedisCache struct {
	client  *redis.Client
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// NewRedisCache crea un nuovo cache Redis e verifica la connessione
func NewRedisCache(host, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         host,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get recupera un valore da Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	r.hits.Add(1)
	return val, nil
}

// Set salva un valore in Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return err
	}

	r.sets.Add(1)
	return nil
}

// Delete rimuove un valore da Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return err
	}

	r.deletes.Add(1)
	return nil
}

// Clear svuota il database Redis
func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

// Stats restituisce le statistiche
func (r *RedisCache) Stats() CacheStats {
	return CacheStats{
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
		Sets:    r.sets.Load(),
		Deletes: r.deletes.Load(),
	}
}

// Ping verifica la connessione a Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close chiude la connessione Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}
