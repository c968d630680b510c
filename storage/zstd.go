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

	"github.com/klauspost/compress/zstd"
)

// Compressed decorates a Store with transparent Zstandard compression of the
// stored values. Keys and key ordering are untouched, so it can wrap any
// backend without changing the write protocol.
type Compressed struct {
	next    Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ Store = (*Compressed)(nil)

// NewCompressed wraps the given store with zstd compression.
func NewCompressed(next Store) (*Compressed, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("storage: creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	if err != nil {
		return nil, fmt.Errorf("storage: creating zstd decoder: %w", err)
	}
	return &Compressed{next: next, encoder: encoder, decoder: decoder}, nil
}

// Get returns the decompressed value stored under the given name and key
func (s *Compressed) Get(ctx context.Context, name, key string) ([]byte, error) {
	value, err := s.next.Get(ctx, name, key)
	if err != nil {
		return nil, err
	}
	out, err := s.decoder.DecodeAll(value, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: zstd decompress: %w", err)
	}
	return out, nil
}

// Put compresses the value and stores it under the given name and key
func (s *Compressed) Put(ctx context.Context, name, key string, value []byte) error {
	return s.next.Put(ctx, name, key, s.encoder.EncodeAll(value, nil))
}

// ListKeys returns the keys of the given name in insertion order
func (s *Compressed) ListKeys(ctx context.Context, name string, descending bool, pageSize int) ([]string, error) {
	return s.next.ListKeys(ctx, name, descending, pageSize)
}

// Ping reports whether the decorated store is reachable
func (s *Compressed) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the decorated store and releases the codecs
func (s *Compressed) Close() error {
	s.decoder.Close()
	_ = s.encoder.Close()
	return s.next.Close()
}
