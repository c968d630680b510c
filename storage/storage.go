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

// Package storage defines the remote key-value store abstraction the profile
// store persists to, together with the built-in backends.
//
// A Store is a set of named keyspaces. Within one name, Put never mutates an
// existing version in place from the profile store's point of view: the write
// protocol only ever creates new keys and appends to an ordered index, so a
// backend only needs per-key atomicity, not cross-key transactions.
package storage

import "context"

// Store is the remote key-value store consumed by the profile manager.
//
// Individual calls may fail transiently; callers wrap them with bounded
// retries. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under the given name and key.
	// It returns errors.ErrKeyNotFound when the key does not exist.
	Get(ctx context.Context, name, key string) ([]byte, error)
	// Put stores the value under the given name and key. Keys written for the
	// first time join the name's ordered key list in insertion order.
	Put(ctx context.Context, name, key string, value []byte) error
	// ListKeys returns up to pageSize keys of the given name in insertion
	// order, or in reverse insertion order when descending is true.
	// A pageSize of zero or less means no limit.
	ListKeys(ctx context.Context, name string, descending bool, pageSize int) ([]string, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the resources held by the store.
	Close() error
}
