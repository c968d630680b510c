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
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/profilestore/errors"
)

// MemoryStore implements Store with plain in-process maps. It backs tests and
// local development; nothing survives a process restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
	// keys holds the insertion order of the keys per name
	keys   map[string][]string
	closed atomic.Bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an instance of MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]map[string][]byte),
		keys:   make(map[string][]string),
	}
}

// Get returns the value stored under the given name and key
func (s *MemoryStore) Get(ctx context.Context, name, key string) ([]byte, error) {
	if err := s.ensureUsable(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[name][key]
	if !ok {
		return nil, gerrors.ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores the value under the given name and key
func (s *MemoryStore) Put(ctx context.Context, name, key string, value []byte) error {
	if err := s.ensureUsable(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kv, ok := s.values[name]
	if !ok {
		kv = make(map[string][]byte)
		s.values[name] = kv
	}
	if _, exists := kv[key]; !exists {
		s.keys[name] = append(s.keys[name], key)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	kv[key] = stored
	return nil
}

// ListKeys returns the keys of the given name in insertion order
func (s *MemoryStore) ListKeys(ctx context.Context, name string, descending bool, pageSize int) ([]string, error) {
	if err := s.ensureUsable(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.keys[name]
	out := make([]string, len(ordered))
	copy(out, ordered)
	if descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if pageSize > 0 && len(out) > pageSize {
		out = out[:pageSize]
	}
	return out, nil
}

// Ping reports whether the store is reachable
func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.ensureUsable(ctx)
}

// Close releases the store
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	s.values = make(map[string]map[string][]byte)
	s.keys = make(map[string][]string)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ensureUsable(ctx context.Context) error {
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
