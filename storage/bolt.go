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
	"fmt"
	"os"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/profilestore/errors"
)

const boltFileMode os.FileMode = 0o600

var (
	boltTimeout        = 5 * time.Second
	defaultBoltOptions = &bbolt.Options{Timeout: boltTimeout, NoGrowSync: true}
)

// BoltStore implements Store using go.etcd.io/bbolt for durable embedded
// persistence. Each store name maps to its own bucket.
//
// Concurrency:
//   - bbolt provides single-writer/multi-reader semantics. We only guard the
//     close state to prevent operations once the store is shut down.
//
// Ordering:
//   - Bucket iteration is lexical by key. The profile store writes fixed-width
//     version-id keys, so lexical order matches append order and ListKeys can
//     be served straight from a cursor.
type BoltStore struct {
	db     *bbolt.DB
	path   string
	closed atomic.Bool
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) a BoltDB-backed Store at the given path.
// The database is configured with production defaults (short open timeout,
// NoGrowSync). Closing the store closes the underlying Bolt database; the
// backing file is kept so the data survives restarts.
func NewBoltStore(path string) (*BoltStore, error) {
	optionsCopy := *defaultBoltOptions
	db, err := bbolt.Open(path, boltFileMode, &optionsCopy)
	if err != nil {
		return nil, fmt.Errorf("storage: opening boltdb: %w", err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Get returns the value stored under the given name and key
func (s *BoltStore) Get(ctx context.Context, name, key string) ([]byte, error) {
	if err := s.ensureUsable(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return gerrors.ErrKeyNotFound
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return gerrors.ErrKeyNotFound
		}
		value = make([]byte, len(raw))
		copy(value, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores the value under the given name and key
func (s *BoltStore) Put(ctx context.Context, name, key string, value []byte) error {
	if err := s.ensureUsable(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("storage: initializing boltdb bucket %q: %w", name, err)
		}
		return bucket.Put([]byte(key), value)
	})
}

// ListKeys returns the keys of the given name in key order, which for
// fixed-width keys equals insertion order
func (s *BoltStore) ListKeys(ctx context.Context, name string, descending bool, pageSize int) ([]string, error) {
	if err := s.ensureUsable(ctx); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		next := cursor.Next
		k, _ := cursor.First()
		if descending {
			next = cursor.Prev
			k, _ = cursor.Last()
		}
		for ; k != nil; k, _ = next() {
			keys = append(keys, string(k))
			if pageSize > 0 && len(keys) == pageSize {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping reports whether the underlying database is usable
func (s *BoltStore) Ping(ctx context.Context) error {
	if err := s.ensureUsable(ctx); err != nil {
		return err
	}
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

// Close releases the underlying BoltDB handle
func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) ensureUsable(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
