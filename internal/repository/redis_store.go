package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions mirrors the connection settings from config.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// CloudStore keeps records in one Redis hash, so every device pointing at the
// same namespace shares them.
type CloudStore struct {
	rdb *redis.Client
	key string
}

// NewRedisClient connects and pings.
func NewRedisClient(opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewCloudStore(rdb *redis.Client, namespace string) *CloudStore {
	if namespace == "" {
		namespace = "default"
	}
	return &CloudStore{rdb: rdb, key: "weekplan:" + namespace}
}

func (s *CloudStore) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("load "+key, err)
	}
	return v, true, nil
}

func (s *CloudStore) Save(ctx context.Context, key, value string) error {
	if err := s.rdb.HSet(ctx, s.key, key, value).Err(); err != nil {
		return unavailable("save "+key, err)
	}
	return nil
}

func (s *CloudStore) ListAll(ctx context.Context) ([]string, error) {
	keys, err := s.rdb.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, unavailable("list keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}
