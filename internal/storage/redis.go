package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisOpTimeout = 5 * time.Second

// RedisStorage keeps each key as a string value under a common prefix
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ StorageInterface = (*RedisStorage)(nil)

// NewRedisStorage connects to redisURL and verifies the connection
func NewRedisStorage(redisURL, prefix string) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.Infof("Connected to redis at %s", opt.Addr)
	return &RedisStorage{client: client, prefix: prefix}, nil
}

// NewRedisStorageWithClient wraps an existing client
func NewRedisStorageWithClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (r *RedisStorage) Store(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Retrieve(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisStorage) List(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
