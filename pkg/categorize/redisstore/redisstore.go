// Package redisstore persists the category-cache snapshot under a single
// redis key, for server deployments where grouping state is shared across
// instances.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "toolgroups:category-cache"

type Store struct {
	client *redis.Client
	key    string
}

// New creates a store over an existing redis client. key may be empty to use
// the default.
func New(client *redis.Client, key string) *Store {
	if key == "" {
		key = defaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read category cache: %w", err)
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write category cache: %w", err)
	}
	return nil
}
