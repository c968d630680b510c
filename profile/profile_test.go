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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/profilestore/errors"
	"github.com/tochemey/profilestore/eventstream"
	"github.com/tochemey/profilestore/internal/util"
	"github.com/tochemey/profilestore/storage"
)

func testTemplate() map[string]any {
	return map[string]any{
		"coins": 100,
		"inventory": map[string]any{
			"items": []any{},
		},
		"settings": map[string]any{
			"music": true,
		},
	}
}

func TestAttach(t *testing.T) {
	t.Run("With new owner", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		require.Equal(t, Locked, p.State())
		assert.False(t, p.Loaded())
		assert.EqualValues(t, 1, p.Sessions())

		doc, ok := p.Get("")
		require.True(t, ok)
		assert.Equal(t, true, doc.(map[string]any)["settings"].(map[string]any)["music"])

		stored := latestDocument(t, store, manager.cfg.namespace(), "owner-1")
		require.NotNil(t, stored.Session)
		assert.NotEmpty(t, stored.Session.OwnerToken)
		assert.EqualValues(t, 1, stored.Sessions)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With existing document", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		require.True(t, p.Set("coins", 250))
		require.NoError(t, p.Save(ctx))
		require.NoError(t, manager.Detach(ctx, "owner-1"))

		p, err = manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		assert.True(t, p.Loaded())
		assert.EqualValues(t, 2, p.Sessions())

		coins, ok := p.Get("coins")
		require.True(t, ok)
		assert.EqualValues(t, 250, coins)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With lease released on detach", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		require.NoError(t, manager.Detach(ctx, "owner-1"))
		assert.Equal(t, Unlocked, p.State())

		stored := latestDocument(t, store, manager.cfg.namespace(), "owner-1")
		assert.Nil(t, stored.Session)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With empty owner id", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store)

		_, err := manager.Attach(ctx, "")
		assert.ErrorIs(t, err, gerrors.ErrOwnerRequired)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With duplicate attach", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store)

		_, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		_, err = manager.Attach(ctx, "owner-1")
		assert.ErrorIs(t, err, gerrors.ErrAlreadyAttached)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})
}

func TestSessionLock(t *testing.T) {
	t.Run("With abandoned lease taken over", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		stale := time.Now().Add(-time.Hour).UnixMilli()
		seedDocument(t, store, manager.cfg.namespace(), "owner-1", &Metadata{
			Data:     map[string]any{"coins": float64(42)},
			Created:  stale,
			LastSeen: stale,
			Sessions: 3,
			Session:  &SessionData{LastUpdate: stale, OwnerToken: "dead-process"},
		})

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		assert.True(t, p.Loaded())
		assert.EqualValues(t, 4, p.Sessions())

		stored := latestDocument(t, store, manager.cfg.namespace(), "owner-1")
		require.NotNil(t, stored.Session)
		assert.NotEqual(t, "dead-process", stored.Session.OwnerToken)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With busy lease acquired after it goes stale", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		now := time.Now().UnixMilli()
		seedDocument(t, store, manager.cfg.namespace(), "owner-1", &Metadata{
			Data:     map[string]any{},
			Created:  now,
			LastSeen: now,
			Sessions: 1,
			Session:  &SessionData{LastUpdate: now, OwnerToken: "other-process"},
		})

		// the holder never refreshes, so the lease goes stale after the lock
		// timeout and the attach completes on its own
		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, p.Sessions())
		assert.Equal(t, Locked, p.State())

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With acquisition aborted by detach", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithSessionLockTimeout(5*time.Second))

		now := time.Now().UnixMilli()
		seedDocument(t, store, manager.cfg.namespace(), "owner-1", &Metadata{
			Data:     map[string]any{},
			Created:  now,
			LastSeen: now,
			Sessions: 1,
			Session:  &SessionData{LastUpdate: now, OwnerToken: "other-process"},
		})

		errs := make(chan error, 1)
		go func() {
			_, err := manager.Attach(ctx, "owner-1")
			errs <- err
		}()

		// wait for the attach to start polling, then pull it down
		require.Eventually(t, func() bool {
			_, attached := manager.Profile("owner-1")
			return attached
		}, time.Second, 10*time.Millisecond)
		util.Pause(50 * time.Millisecond)
		require.NoError(t, manager.Detach(ctx, "owner-1"))

		select {
		case err := <-errs:
			assert.ErrorIs(t, err, gerrors.ErrAcquisitionAborted)
		case <-time.After(2 * time.Second):
			t.Fatal("attach did not abort")
		}

		_, attached := manager.Profile("owner-1")
		assert.False(t, attached)

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With acquisition aborted by context cancellation", func(t *testing.T) {
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithSessionLockTimeout(5*time.Second))

		now := time.Now().UnixMilli()
		seedDocument(t, store, manager.cfg.namespace(), "owner-1", &Metadata{
			Data:     map[string]any{},
			Created:  now,
			LastSeen: now,
			Sessions: 1,
			Session:  &SessionData{LastUpdate: now, OwnerToken: "other-process"},
		})

		ctx, cancel := context.WithTimeout(context.TODO(), 100*time.Millisecond)
		defer cancel()
		_, err := manager.Attach(ctx, "owner-1")
		assert.ErrorIs(t, err, gerrors.ErrAcquisitionAborted)

		require.NoError(t, manager.Stop(context.TODO()))
		require.NoError(t, store.Close())
	})
}

func TestCorruptedDocument(t *testing.T) {
	ctx := context.TODO()
	store := storage.NewMemoryStore()
	manager := testManager(t, store, WithTemplate(testTemplate()))

	docName := manager.cfg.namespace() + "/owner-1"
	require.NoError(t, store.Put(ctx, docName, "00000000000000000001", []byte("not a document")))
	require.NoError(t, newVersionLedger(store, docName+"/versions").Append(ctx, "00000000000000000001"))

	p, err := manager.Attach(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, p.Degraded())
	assert.False(t, p.Loaded())

	// the profile falls back to a fresh template and stays usable in memory
	coins, ok := p.Get("coins")
	require.True(t, ok)
	assert.EqualValues(t, 100, coins)
	assert.ErrorIs(t, p.Save(ctx), gerrors.ErrDegraded)

	require.NoError(t, manager.Stop(ctx))
	require.NoError(t, store.Close())
}

func TestSave(t *testing.T) {
	t.Run("With ignored keys excluded from writes", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store,
			WithTemplate(testTemplate()),
			WithKeysToIgnore("cache"))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		require.True(t, p.Set("cache", map[string]any{"resolved": true}))
		require.True(t, p.Set("coins", 7))
		require.NoError(t, p.Save(ctx))

		// still readable in memory
		_, ok := p.Get("cache.resolved")
		assert.True(t, ok)

		stored := latestDocument(t, store, manager.cfg.namespace(), "owner-1")
		assert.NotContains(t, stored.Data, "cache")
		assert.EqualValues(t, 7, stored.Data["coins"])

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With every save appending a new version", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		initial := versionCount(t, store, manager.cfg.namespace(), "owner-1")

		require.NoError(t, p.Save(ctx))
		require.NoError(t, p.Save(ctx))
		assert.Equal(t, initial+2, versionCount(t, store, manager.cfg.namespace(), "owner-1"))

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With document write failure", func(t *testing.T) {
		ctx := context.TODO()
		store := newFaultStore(storage.NewMemoryStore())
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)

		store.failPuts("/owner-1", errors.New("connection reset"))
		require.True(t, p.Set("coins", 9))
		err = p.Save(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gerrors.ErrDegraded)
		assert.False(t, p.Degraded())

		// the failure is transient: the next save goes through untouched
		store.clearFaults()
		require.NoError(t, p.Save(ctx))
		stored := latestDocument(t, store, manager.cfg.namespace(), "owner-1")
		assert.EqualValues(t, 9, stored.Data["coins"])

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With orphaned version disabling persistence", func(t *testing.T) {
		ctx := context.TODO()
		store := newFaultStore(storage.NewMemoryStore())
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)

		// the document write lands but the ledger append does not
		store.failPuts("/versions", errors.New("connection reset"))
		require.True(t, p.Set("coins", 9))
		require.Error(t, p.Save(ctx))
		assert.True(t, p.Degraded())

		store.clearFaults()
		assert.ErrorIs(t, p.Save(ctx), gerrors.ErrDegraded)

		// the last reachable version predates the failed save
		stored := latestDocument(t, store, manager.cfg.namespace(), "owner-1")
		assert.EqualValues(t, 100, stored.Data["coins"])

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With persistence disabled", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store,
			WithTemplate(testTemplate()),
			WithPersistenceDisabled())

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		assert.ErrorIs(t, p.Save(ctx), gerrors.ErrPersistenceDisabled)
		assert.Equal(t, 0, versionCount(t, store, manager.cfg.namespace(), "owner-1"))

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With non-production environment", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store,
			WithTemplate(testTemplate()),
			WithEnvironment(NonProduction))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		assert.ErrorIs(t, p.Save(ctx), gerrors.ErrPersistenceDisabled)
		assert.Equal(t, 0, versionCount(t, store, manager.cfg.namespace(), "owner-1"))

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})
}

func volatileProfile(t *testing.T) (*Manager, *Profile) {
	t.Helper()
	store := storage.NewMemoryStore()
	manager := testManager(t, store,
		WithTemplate(testTemplate()),
		WithPersistenceDisabled())
	p, err := manager.Attach(context.TODO(), "owner-1")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, manager.Stop(context.TODO()))
		require.NoError(t, store.Close())
	})
	return manager, p
}

func TestPathAPI(t *testing.T) {
	t.Run("With nested set and get", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("settings.music", false))
		value, ok := p.Get("settings.music")
		require.True(t, ok)
		assert.Equal(t, false, value)
	})

	t.Run("With missing parent", func(t *testing.T) {
		_, p := volatileProfile(t)
		assert.False(t, p.Set("missing.child", 1))
		_, ok := p.Get("missing.child")
		assert.False(t, ok)
	})

	t.Run("With nil value removing the key", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("coins", nil))
		_, ok := p.Get("coins")
		assert.False(t, ok)
	})

	t.Run("With sequence append", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("inventory.items.++", "sword"))
		require.True(t, p.Set("inventory.items.++", "shield"))
		value, ok := p.Get("inventory.items")
		require.True(t, ok)
		assert.Equal(t, []any{"sword", "shield"}, value)

		// appending to a scalar fails
		assert.False(t, p.Set("coins.++", "x"))
		// appending nil fails
		assert.False(t, p.Set("inventory.items.++", nil))
	})

	t.Run("With sequence index removal", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("inventory.items.++", "sword"))
		require.True(t, p.Set("inventory.items.++", "shield"))

		// indices are one-based
		require.True(t, p.Set("inventory.items.--", 1))
		value, ok := p.Get("inventory.items")
		require.True(t, ok)
		assert.Equal(t, []any{"shield"}, value)

		assert.False(t, p.Set("inventory.items.--", 5))
		assert.False(t, p.Set("inventory.items.--", "first"))
		assert.False(t, p.Set("coins.--", 1))
	})

	t.Run("With insert and remove value", func(t *testing.T) {
		_, p := volatileProfile(t)
		// the node must already be a sequence
		assert.False(t, p.Insert("coins", 1))
		assert.False(t, p.Insert("missing", 1))

		require.True(t, p.Insert("inventory.items", "sword"))
		require.True(t, p.Insert("inventory.items", "sword"))
		require.True(t, p.Insert("inventory.items", "shield"))

		// only the first matching element goes
		require.True(t, p.RemoveValue("inventory.items", "sword"))
		value, ok := p.Get("inventory.items")
		require.True(t, ok)
		assert.Equal(t, []any{"sword", "shield"}, value)

		assert.False(t, p.RemoveValue("inventory.items", "bow"))
		assert.False(t, p.RemoveValue("coins", 1))
	})

	t.Run("With increment", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Increment("coins", 50))
		value, ok := p.Get("coins")
		require.True(t, ok)
		assert.EqualValues(t, 150, value)

		require.True(t, p.Increment("coins", -25))
		value, _ = p.Get("coins")
		assert.EqualValues(t, 125, value)

		// missing or non-numeric targets fail without creating the key
		assert.False(t, p.Increment("score", 1))
		_, ok = p.Get("score")
		assert.False(t, ok)
		assert.False(t, p.Increment("settings.music", 1))
	})

	t.Run("With batch mutations firing one event", func(t *testing.T) {
		_, p := volatileProfile(t)
		sub := p.WatchChanges()

		ok := p.SetMultiple(map[string]any{
			"coins":          500,
			"settings.music": false,
		})
		require.True(t, ok)
		assert.Len(t, drain(sub), 1)

		// a failing path fails the batch but applies the rest
		ok = p.SetMultiple(map[string]any{
			"coins":         600,
			"missing.child": 1,
		})
		assert.False(t, ok)
		assert.Len(t, drain(sub), 1)
		value, _ := p.Get("coins")
		assert.EqualValues(t, 600, value)
	})

	t.Run("With batch removal", func(t *testing.T) {
		_, p := volatileProfile(t)
		sub := p.WatchChanges()

		require.True(t, p.RemoveValues("coins", "settings.music"))
		assert.Len(t, drain(sub), 1)
		_, ok := p.Get("coins")
		assert.False(t, ok)
		_, ok = p.Get("settings.music")
		assert.False(t, ok)
	})

	t.Run("With whole document", func(t *testing.T) {
		_, p := volatileProfile(t)
		doc, ok := p.Get("")
		require.True(t, ok)
		assert.Contains(t, doc.(map[string]any), "coins")
	})
}

func TestReconcile(t *testing.T) {
	t.Run("With missing keys restored", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("settings.music", nil))
		require.True(t, p.Set("coins", nil))

		assert.True(t, p.Reconcile())
		value, ok := p.Get("settings.music")
		require.True(t, ok)
		assert.Equal(t, true, value)
		value, ok = p.Get("coins")
		require.True(t, ok)
		assert.EqualValues(t, 100, value)
	})

	t.Run("With idempotent second pass", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("coins", nil))
		assert.True(t, p.Reconcile())
		assert.False(t, p.Reconcile())
	})

	t.Run("With existing values preserved", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("coins", 999))
		p.Reconcile()
		value, _ := p.Get("coins")
		assert.EqualValues(t, 999, value)
	})

	t.Run("With reset replacing the document", func(t *testing.T) {
		_, p := volatileProfile(t)
		require.True(t, p.Set("coins", 999))
		require.True(t, p.Set("extra", 1))

		p.Reset()
		value, _ := p.Get("coins")
		assert.EqualValues(t, 100, value)
		_, ok := p.Get("extra")
		assert.False(t, ok)
	})
}

func TestEvents(t *testing.T) {
	t.Run("With change events carrying snapshots", func(t *testing.T) {
		_, p := volatileProfile(t)
		sub := p.WatchChanges()

		require.True(t, p.Set("coins", 1))
		messages := drain(sub)
		require.Len(t, messages, 1)

		event, ok := messages[0].Payload().(*Event)
		require.True(t, ok)
		assert.Equal(t, "owner-1", event.OwnerID)
		assert.EqualValues(t, 1, event.Document["coins"])

		// mutating the snapshot never touches the live document
		event.Document["coins"] = 999
		value, _ := p.Get("coins")
		assert.EqualValues(t, 1, value)
	})

	t.Run("With save events", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		sub := p.WatchSaves()

		require.NoError(t, p.Save(ctx))
		messages := drain(sub)
		require.Len(t, messages, 1)
		assert.Equal(t, SavedTopic("owner-1"), messages[0].Topic())

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})

	t.Run("With subscriptions disposed on detach", func(t *testing.T) {
		ctx := context.TODO()
		store := storage.NewMemoryStore()
		manager := testManager(t, store, WithTemplate(testTemplate()))

		p, err := manager.Attach(ctx, "owner-1")
		require.NoError(t, err)
		sub := p.WatchChanges()
		require.True(t, sub.Active())

		require.NoError(t, manager.Detach(ctx, "owner-1"))
		assert.False(t, sub.Active())

		require.NoError(t, manager.Stop(ctx))
		require.NoError(t, store.Close())
	})
}

func TestCleanup(t *testing.T) {
	ctx := context.TODO()
	store := storage.NewMemoryStore()
	manager := testManager(t, store, WithTemplate(testTemplate()))

	p, err := manager.Attach(ctx, "owner-1")
	require.NoError(t, err)

	var order []string
	p.AddCleanupCallback(func() { order = append(order, "first") })
	p.AddCleanupCallback(func() { order = append(order, "second") })

	require.NoError(t, manager.Detach(ctx, "owner-1"))
	// reverse registration order
	assert.Equal(t, []string{"second", "first"}, order)

	require.NoError(t, manager.Stop(ctx))
	require.NoError(t, store.Close())
}

func drain(sub eventstream.Subscriber) []*eventstream.Message {
	var messages []*eventstream.Message
	for message := range sub.Iterator() {
		messages = append(messages, message)
	}
	return messages
}
