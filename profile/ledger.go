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
	"strconv"
	"time"

	"github.com/tochemey/profilestore/storage"
)

// versionLedger wraps the remote store's ordered key list as the append-only
// index of version ids for one owner. The ledger's append order, not
// wall-clock time, decides which version the next loader sees as latest.
type versionLedger struct {
	store storage.Store
	name  string
}

func newVersionLedger(store storage.Store, name string) *versionLedger {
	return &versionLedger{store: store, name: name}
}

// Latest returns the most recently appended version id, or an empty string
// when no version has ever been appended.
func (l *versionLedger) Latest(ctx context.Context) (string, error) {
	keys, err := l.store.ListKeys(ctx, l.name, true, 1)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0], nil
}

// Append records the given version id as the new latest.
func (l *versionLedger) Append(ctx context.Context, version string) error {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return l.store.Put(ctx, l.name, version, []byte(stamp))
}
