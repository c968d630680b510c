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

package profile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/profilestore/log"
	"github.com/tochemey/profilestore/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("golang.org/x/net/http2.(*serverConn).serve"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

// testManager starts a manager with short timings suitable for tests.
func testManager(t *testing.T, store storage.Store, opts ...Option) *Manager {
	t.Helper()
	base := []Option{
		WithLogger(log.DiscardLogger),
		WithConnectionRetry(2, 10*time.Millisecond),
		WithSessionLockTimeout(150 * time.Millisecond),
		WithSessionCheckInterval(20 * time.Millisecond),
		WithSaveInterval(time.Minute),
	}
	manager, err := NewManager(store, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, manager.Start(context.TODO()))
	return manager
}

// seedDocument writes a document version and its ledger entry directly to the
// store, as a previous process would have left it.
func seedDocument(t *testing.T, store storage.Store, namespace, ownerID string, meta *Metadata) {
	t.Helper()
	ctx := context.TODO()
	docName := namespace + "/" + ownerID
	payload, err := encodeMetadata(meta, nil)
	require.NoError(t, err)
	version := fmt.Sprintf("%020d", time.Now().UnixNano())
	require.NoError(t, store.Put(ctx, docName, version, payload))
	require.NoError(t, newVersionLedger(store, docName+"/versions").Append(ctx, version))
}

// latestDocument reads and decodes the latest stored version of the owner's
// document.
func latestDocument(t *testing.T, store storage.Store, namespace, ownerID string) *Metadata {
	t.Helper()
	ctx := context.TODO()
	docName := namespace + "/" + ownerID
	version, err := newVersionLedger(store, docName+"/versions").Latest(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, version)
	payload, err := store.Get(ctx, docName, version)
	require.NoError(t, err)
	meta, err := decodeMetadata(payload)
	require.NoError(t, err)
	return meta
}

// versionCount returns the number of versions recorded in the owner's ledger.
func versionCount(t *testing.T, store storage.Store, namespace, ownerID string) int {
	t.Helper()
	keys, err := store.ListKeys(context.TODO(), namespace+"/"+ownerID+"/versions", false, 0)
	require.NoError(t, err)
	return len(keys)
}

// faultStore wraps a store and fails writes whose namespace matches a
// registered suffix.
type faultStore struct {
	storage.Store

	mu       sync.RWMutex
	putFault error
	suffix   string
}

func newFaultStore(inner storage.Store) *faultStore {
	return &faultStore{Store: inner}
}

// failPuts makes every Put whose namespace ends with the suffix fail.
func (f *faultStore) failPuts(suffix string, err error) {
	f.mu.Lock()
	f.suffix = suffix
	f.putFault = err
	f.mu.Unlock()
}

func (f *faultStore) clearFaults() {
	f.mu.Lock()
	f.putFault = nil
	f.suffix = ""
	f.mu.Unlock()
}

func (f *faultStore) Put(ctx context.Context, name, key string, value []byte) error {
	f.mu.RLock()
	fault := f.putFault
	suffix := f.suffix
	f.mu.RUnlock()
	if fault != nil && strings.HasSuffix(name, suffix) {
		return fault
	}
	return f.Store.Put(ctx, name, key, value)
}
