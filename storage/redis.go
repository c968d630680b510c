// MIT License
//
// Copyright (c) 2022-2026 Arsene Tochemey Gandote
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/profilestore/errors"
)

// RedisStore implements Store on top of a Redis server or cluster.
//
// Layout per store name:
//   - values live under "<name>:doc:<key>" as plain strings
//   - insertion order lives in the sorted set "<name>:index", scored with a
//     monotonically increasing sequence from "<name>:seq"
//
// Put uses a pipeline so the value write and the index entry land together;
// the index entry is added with NX so overwriting a value keeps the key's
// original position in the ordered list.
type RedisStore struct {
	client redis.UniversalClient
	closed atomic.Bool
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates an instance of RedisStore from the given client.
// The caller keeps ownership of client configuration; Close closes the client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the value stored under the given name and key
func (s *RedisStore) Get(ctx context.Context, name, key string) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	value, err := s.client.Get(ctx, docKey(name, key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, gerrors.ErrKeyNotFound
	case err != nil:
		return nil, fmt.Errorf("storage: redis get: %w", err)
	default:
		return value, nil
	}
}

// Put stores the value under the given name and key
func (s *RedisStore) Put(ctx context.Context, name, key string, value []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	seq, err := s.client.Incr(ctx, name+":seq").Result()
	if err != nil {
		return fmt.Errorf("storage: redis sequence: %w", err)
	}

	pipeline := s.client.TxPipeline()
	pipeline.Set(ctx, docKey(name, key), value, 0)
	pipeline.ZAddNX(ctx, name+":index", redis.Z{Score: float64(seq), Member: key})
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("storage: redis put: %w", err)
	}
	return nil
}

// ListKeys returns the keys of the given name in insertion order
func (s *RedisStore) ListKeys(ctx context.Context, name string, descending bool, pageSize int) ([]string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	stop := int64(-1)
	if pageSize > 0 {
		stop = int64(pageSize) - 1
	}

	var cmd *redis.StringSliceCmd
	if descending {
		cmd = s.client.ZRevRange(ctx, name+":index", 0, stop)
	} else {
		cmd = s.client.ZRange(ctx, name+":index", 0, stop)
	}

	keys, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("storage: redis list keys: %w", err)
	}
	return keys, nil
}

// Ping reports whether the Redis server is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) ensureOpen() error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}

func docKey(name, key string) string {
	return name + ":doc:" + key
}
