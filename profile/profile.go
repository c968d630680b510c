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

// Package profile persists per-owner documents in a remote key-value store
// that offers no native transactions or locking. Exclusive write access is
// coordinated through a soft session lease recorded inside the document
// itself, and every save appends a new version to an ordered ledger instead
// of updating in place.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/profilestore/errors"
	"github.com/tochemey/profilestore/eventstream"
	"github.com/tochemey/profilestore/internal/util"
	"github.com/tochemey/profilestore/log"
	"github.com/tochemey/profilestore/storage"
)

const (
	// appendSentinel marks the final path segment of a Set call as an append
	// to the sequence at the parent path
	appendSentinel = "++"
	// removeSentinel marks the final path segment of a Set call as a removal
	// by one-based index from the sequence at the parent path
	removeSentinel = "--"
)

// Profile is one owner's persisted document plus its session and version
// metadata. Instances are created by a Manager; there is exactly one live
// Profile per owner id per process.
//
// Mutation failures (bad path, type mismatch, missing index) are local and
// non-fatal: they are surfaced as a boolean return, never as an error, so a
// caller driving live state is never halted by a single bad mutation.
type Profile struct {
	ownerID string
	// token uniquely identifies this process's lease claims
	token string

	cfg    *config
	store  storage.Store
	ledger *versionLedger
	stream eventstream.Stream
	logger log.Logger
	sink   *sinkClient

	// docName is the store namespace holding this owner's document versions
	docName string

	state          *atomic.Int32
	loaded         *atomic.Bool
	persistenceOff *atomic.Bool
	lastSave       *atomic.Time

	// mu guards meta and everything reachable from it
	mu   sync.RWMutex
	meta *Metadata

	// saveMu serializes saves; lastVersionNano is guarded by it
	saveMu          sync.Mutex
	lastVersionNano int64

	// lifecycle is canceled on detach, aborting any in-flight acquisition
	lifecycle context.Context
	cancel    context.CancelFunc

	teardown *teardownList
}

func newProfile(ownerID, token string, cfg *config, store storage.Store, stream eventstream.Stream, sink *sinkClient) *Profile {
	docName := cfg.namespace() + "/" + ownerID
	lifecycle, cancel := context.WithCancel(context.Background())
	return &Profile{
		ownerID:        ownerID,
		token:          token,
		cfg:            cfg,
		store:          store,
		ledger:         newVersionLedger(store, docName+"/versions"),
		stream:         stream,
		logger:         cfg.logger,
		sink:           sink,
		docName:        docName,
		state:          atomic.NewInt32(int32(Unlocked)),
		loaded:         atomic.NewBool(false),
		persistenceOff: atomic.NewBool(false),
		lastSave:       atomic.NewTime(time.Time{}),
		lifecycle:      lifecycle,
		cancel:         cancel,
		teardown:       newTeardownList(stream),
	}
}

// load runs the session lock acquisition protocol. It blocks until the lease
// is observed free or abandoned, the profile degrades, or the owner detaches.
// It returns an error only when the acquisition was aborted by detach; every
// other failure leaves a functioning degraded profile behind.
func (p *Profile) load(ctx context.Context) error {
	if !p.cfg.persistenceEnabled {
		// volatile mode skips the protocol entirely
		p.resetToTemplate()
		p.persistenceOff.Store(true)
		return nil
	}

	p.state.Store(int32(Acquiring))

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.lifecycle, cancel)
	defer stop()

	start := time.Now()
	for {
		var latest string
		err := p.retrier().RunContext(loadCtx, func(ctx context.Context) error {
			var err error
			latest, err = p.ledger.Latest(ctx)
			return err
		})
		if aborted := p.checkAborted(loadCtx, err); aborted != nil {
			return aborted
		}
		if err != nil {
			p.degrade(fmt.Sprintf("reading latest version id: %v", err))
			return nil
		}

		if latest == "" {
			// no version ever existed: this is a brand new profile
			p.seedNew()
			if err := p.save(loadCtx, false); err != nil {
				p.degrade(fmt.Sprintf("publishing initial version: %v", err))
			}
			return nil
		}

		var payload []byte
		err = p.retrier().RunContext(loadCtx, func(ctx context.Context) error {
			var err error
			payload, err = p.store.Get(ctx, p.docName, latest)
			return err
		})
		if aborted := p.checkAborted(loadCtx, err); aborted != nil {
			return aborted
		}
		if err != nil {
			p.degrade(fmt.Sprintf("fetching version %s: %v", latest, err))
			return nil
		}

		meta, err := decodeMetadata(payload)
		if err != nil {
			// never trust or partially recover malformed data
			p.degrade(err.Error())
			return nil
		}

		now := time.Now()
		free := meta.Session == nil
		// a stale lease may only be force-acquired once this attempt has
		// itself out-waited the lock timeout, so a holder that is merely slow
		// to refresh keeps its lease
		abandoned := meta.Session != nil &&
			meta.Session.StaleAt(now, p.cfg.sessionLockTimeout) &&
			time.Since(start) > p.cfg.sessionLockTimeout

		if free || abandoned {
			meta.Sessions++
			meta.Session = &SessionData{LastUpdate: now.UnixMilli(), OwnerToken: p.token}
			p.mu.Lock()
			p.meta = meta
			p.mu.Unlock()
			p.loaded.Store(true)
			p.state.Store(int32(Locked))
			// publish the claim before returning control to the caller
			if err := p.save(loadCtx, false); err != nil {
				p.degrade(fmt.Sprintf("publishing lease claim: %v", err))
			}
			return nil
		}

		// the lease is held and fresh: poll until it frees up or the owner
		// detaches
		if err := util.PauseCtx(loadCtx, p.cfg.sessionCheckInterval); err != nil {
			p.degradeAborted()
			return gerrors.ErrAcquisitionAborted
		}
	}
}

// checkAborted distinguishes a detach-triggered cancellation from an ordinary
// store failure.
func (p *Profile) checkAborted(ctx context.Context, err error) error {
	if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return nil
	}
	p.degradeAborted()
	return gerrors.ErrAcquisitionAborted
}

// seedNew installs a fresh template document claiming the lease with
// sessions set to one.
func (p *Profile) seedNew() {
	now := time.Now()
	p.mu.Lock()
	p.meta = &Metadata{
		Data:     p.cfg.template(p.ownerID),
		Created:  now.UnixMilli(),
		LastSeen: now.UnixMilli(),
		Sessions: 1,
		Session:  &SessionData{LastUpdate: now.UnixMilli(), OwnerToken: p.token},
	}
	p.mu.Unlock()
	p.state.Store(int32(Locked))
}

// resetToTemplate installs a fresh template document with no lease.
func (p *Profile) resetToTemplate() {
	now := time.Now()
	p.mu.Lock()
	if p.meta == nil {
		p.meta = &Metadata{
			Data:     p.cfg.template(p.ownerID),
			Created:  now.UnixMilli(),
			LastSeen: now.UnixMilli(),
			Sessions: 1,
		}
	}
	p.mu.Unlock()
}

func (p *Profile) degrade(reason string) {
	p.persistenceOff.Store(true)
	p.state.Store(int32(Degraded))
	p.resetToTemplate()
	p.logger.Warnf("profile owner=%s degraded: %s", p.ownerID, reason)
}

func (p *Profile) degradeAborted() {
	p.persistenceOff.Store(true)
	p.state.Store(int32(Degraded))
	p.resetToTemplate()
	p.logger.Debugf("profile owner=%s acquisition aborted by detach", p.ownerID)
}

func (p *Profile) retrier() *retry.Retrier {
	return retry.NewRetrier(p.cfg.maxConnectionAttempts, p.cfg.connectionAttemptDelay, p.cfg.connectionAttemptDelay)
}

// Save serializes the current document and publishes it as a new version.
// On failure the in-memory document is unaffected: at most the last
// unsuccessful save is ever lost, never older state.
func (p *Profile) Save(ctx context.Context) error {
	return p.save(ctx, false)
}

// save runs the two-phase version-chain write. When release is true the
// serialized document omits the session lease, explicitly publishing "lock
// free" for the next loader.
func (p *Profile) save(ctx context.Context, release bool) error {
	if State(p.state.Load()) == Degraded {
		return gerrors.ErrDegraded
	}
	if !p.persistent() {
		return gerrors.ErrPersistenceDisabled
	}

	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	now := time.Now()

	p.mu.Lock()
	if release {
		p.state.Store(int32(Releasing))
		p.meta.Session = nil
	} else {
		p.meta.Session = &SessionData{LastUpdate: now.UnixMilli(), OwnerToken: p.token}
	}
	payload, err := encodeMetadata(p.meta, p.cfg.keysToIgnore)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	version := p.nextVersion(now)

	// phase one: write the document under the new version id
	err = p.retrier().RunContext(ctx, func(ctx context.Context) error {
		return p.store.Put(ctx, p.docName, version, payload)
	})
	if err != nil {
		return gerrors.NewErrDocumentWrite(err)
	}

	// phase two: advance the ledger so loaders can discover the version
	err = p.retrier().RunContext(ctx, func(ctx context.Context) error {
		return p.ledger.Append(ctx, version)
	})
	if err != nil {
		// the document write succeeded but is unreachable; trusting future
		// reads would silently resurrect stale data
		p.degrade(fmt.Sprintf("version %s is orphaned: %v", version, err))
		return gerrors.NewErrLedgerAppend(err)
	}

	p.mu.Lock()
	p.meta.LastSeen = now.UnixMilli()
	snapshot := deepCopyMap(p.meta.Data)
	p.mu.Unlock()

	if release {
		p.state.Store(int32(Unlocked))
	}
	p.lastSave.Store(now)
	p.stream.Publish(SavedTopic(p.ownerID), &Event{OwnerID: p.ownerID, Document: snapshot})

	if p.sink != nil {
		// best-effort forwarding; a sink failure never fails the save
		go p.sink.Forward(context.WithoutCancel(ctx), p.ownerID, payload)
	}
	return nil
}

// nextVersion returns a fixed-width version id strictly greater than any this
// profile issued before, so ledger order always matches save order.
func (p *Profile) nextVersion(now time.Time) string {
	nano := now.UnixNano()
	if nano <= p.lastVersionNano {
		nano = p.lastVersionNano + 1
	}
	p.lastVersionNano = nano
	return fmt.Sprintf("%020d", nano)
}

// detach aborts any in-flight acquisition, performs the final release-save
// when the lease is held and runs the teardown list.
func (p *Profile) detach(ctx context.Context) {
	p.cancel()
	if State(p.state.Load()) == Locked && p.persistent() {
		if err := p.save(ctx, true); err != nil {
			p.logger.Warnf("profile owner=%s release save failed: %v", p.ownerID, err)
		}
	}
	p.teardown.run(p.logger)
}

func (p *Profile) persistent() bool {
	return p.cfg.persistenceEnabled && !p.persistenceOff.Load()
}

// OwnerID returns the owner the profile belongs to
func (p *Profile) OwnerID() string {
	return p.ownerID
}

// State returns the current session-lock state
func (p *Profile) State() State {
	return State(p.state.Load())
}

// Degraded reports whether persistence has been disabled for this profile
func (p *Profile) Degraded() bool {
	return State(p.state.Load()) == Degraded
}

// Loaded reports whether an existing stored version was claimed at load time.
// It is false for brand new profiles and for degraded template fallbacks.
func (p *Profile) Loaded() bool {
	return p.loaded.Load()
}

// Sessions returns the number of load events across the document's history
func (p *Profile) Sessions() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.Sessions
}

// CreatedAt returns the timestamp of the document's first creation
func (p *Profile) CreatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.UnixMilli(p.meta.Created)
}

// LastSeenAt returns the timestamp of the most recent successful save
func (p *Profile) LastSeenAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.UnixMilli(p.meta.LastSeen)
}

// LastSaveAt returns the wall-clock time of the most recent successful save
// in this process, or the zero time when nothing was saved yet.
func (p *Profile) LastSaveAt() time.Time {
	return p.lastSave.Load()
}

// WatchChanges subscribes to this profile's change events. The subscription
// is disposed automatically on detach.
func (p *Profile) WatchChanges() eventstream.Subscriber {
	sub := p.stream.AddSubscriber()
	p.stream.Subscribe(sub, ChangedTopic(p.ownerID))
	p.teardown.addSubscription(sub)
	return sub
}

// WatchSaves subscribes to this profile's save events. The subscription is
// disposed automatically on detach.
func (p *Profile) WatchSaves() eventstream.Subscriber {
	sub := p.stream.AddSubscriber()
	p.stream.Subscribe(sub, SavedTopic(p.ownerID))
	p.teardown.addSubscription(sub)
	return sub
}

// AddCleanupCallback registers a callback run on detach, after the final
// save. Callbacks run in reverse registration order.
func (p *Profile) AddCleanupCallback(callback func()) {
	p.teardown.addCallback(callback)
}

// AddCleanupResource registers a resource closed on detach, after the final
// save.
func (p *Profile) AddCleanupResource(resource io.Closer) {
	p.teardown.addResource(resource)
}

// Get returns the whole document when path is empty, otherwise the value at
// the dot-separated path. The boolean result is false when any path segment
// is missing.
func (p *Profile) Get(path string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if path == "" {
		return p.meta.Data, true
	}
	return resolve(p.meta.Data, strings.Split(path, "."))
}

// Set assigns the value at the dot-separated path. A final segment of "++"
// appends the value to the sequence at the parent path; "--" treats the value
// as a one-based index to remove from that sequence; a nil value removes the
// key. It reports whether the document changed, and fires one change event
// when it did.
func (p *Profile) Set(path string, value any) bool {
	return p.set(path, value, false)
}

// SetMultiple applies every path/value pair, firing at most one change event
// for the whole batch. It reports whether every assignment succeeded.
func (p *Profile) SetMultiple(values map[string]any) bool {
	all := true
	changed := false
	for path, value := range values {
		if p.set(path, value, true) {
			changed = true
		} else {
			all = false
		}
	}
	if changed {
		p.publishChanged()
	}
	return all
}

// RemoveValues removes the keys at every given path, firing at most one
// change event for the whole batch. It reports whether every removal
// succeeded.
func (p *Profile) RemoveValues(paths ...string) bool {
	all := true
	changed := false
	for _, path := range paths {
		if p.set(path, nil, true) {
			changed = true
		} else {
			all = false
		}
	}
	if changed {
		p.publishChanged()
	}
	return all
}

func (p *Profile) set(path string, value any, silent bool) bool {
	if path == "" {
		return false
	}
	segments := strings.Split(path, ".")
	last := segments[len(segments)-1]

	p.mu.Lock()
	var ok bool
	switch last {
	case appendSentinel:
		ok = p.appendAt(segments[:len(segments)-1], value)
	case removeSentinel:
		ok = p.removeIndexAt(segments[:len(segments)-1], value)
	default:
		var parent map[string]any
		var key string
		if parent, key, ok = resolveParent(p.meta.Data, segments); ok {
			if value == nil {
				delete(parent, key)
			} else {
				parent[key] = value
			}
		}
	}
	p.mu.Unlock()

	if ok && !silent {
		p.publishChanged()
	}
	return ok
}

// Insert appends the value to the sequence at the path. The resolved node
// must already be a sequence.
func (p *Profile) Insert(path string, value any) bool {
	if path == "" {
		return false
	}
	segments := strings.Split(path, ".")

	p.mu.Lock()
	ok := false
	if parent, key, found := resolveParent(p.meta.Data, segments); found {
		if seq, isSeq := parent[key].([]any); isSeq {
			parent[key] = append(seq, value)
			ok = true
		}
	}
	p.mu.Unlock()

	if ok {
		p.publishChanged()
	}
	return ok
}

// RemoveValue removes the first element equal to the value from the sequence
// at the path. The resolved node must already be a sequence.
func (p *Profile) RemoveValue(path string, value any) bool {
	if path == "" {
		return false
	}
	segments := strings.Split(path, ".")

	p.mu.Lock()
	ok := false
	if parent, key, found := resolveParent(p.meta.Data, segments); found {
		if seq, isSeq := parent[key].([]any); isSeq {
			for i, item := range seq {
				if equalValues(item, value) {
					parent[key] = append(seq[:i], seq[i+1:]...)
					ok = true
					break
				}
			}
		}
	}
	p.mu.Unlock()

	if ok {
		p.publishChanged()
	}
	return ok
}

// Increment adds the delta to the numeric value at the path. It fails when
// the existing value is missing or non-numeric, leaving the document
// unchanged.
func (p *Profile) Increment(path string, delta float64) bool {
	if path == "" {
		return false
	}
	segments := strings.Split(path, ".")

	p.mu.Lock()
	ok := false
	if parent, key, found := resolveParent(p.meta.Data, segments); found {
		if current, isNumber := toFloat(parent[key]); isNumber {
			parent[key] = current + delta
			ok = true
		}
	}
	p.mu.Unlock()

	if ok {
		p.publishChanged()
	}
	return ok
}

// Reconcile deep-merges any key present in the template but absent from the
// document. It is additive only: existing values are never overwritten and
// extra keys never removed. It fires one change event when anything was
// added, and reports whether it did. Run it after load and before the first
// mutation to heal documents saved under an older template shape.
func (p *Profile) Reconcile() bool {
	template := p.cfg.template(p.ownerID)

	p.mu.Lock()
	added := deepMerge(p.meta.Data, template)
	p.mu.Unlock()

	if added {
		p.publishChanged()
	}
	return added
}

// Reset replaces the entire document with a fresh template instance and
// fires one change event.
func (p *Profile) Reset() {
	template := p.cfg.template(p.ownerID)

	p.mu.Lock()
	p.meta.Data = template
	p.mu.Unlock()

	p.publishChanged()
}

func (p *Profile) publishChanged() {
	p.mu.RLock()
	snapshot := deepCopyMap(p.meta.Data)
	p.mu.RUnlock()
	p.stream.Publish(ChangedTopic(p.ownerID), &Event{OwnerID: p.ownerID, Document: snapshot})
}

func (p *Profile) appendAt(segments []string, value any) bool {
	if value == nil {
		return false
	}
	parent, key, found := resolveParent(p.meta.Data, segments)
	if !found {
		return false
	}
	seq, isSeq := parent[key].([]any)
	if !isSeq {
		if _, exists := parent[key]; exists {
			return false
		}
		seq = []any{}
	}
	parent[key] = append(seq, value)
	return true
}

func (p *Profile) removeIndexAt(segments []string, value any) bool {
	index, isIndex := toIndex(value)
	if !isIndex {
		return false
	}
	parent, key, found := resolveParent(p.meta.Data, segments)
	if !found {
		return false
	}
	seq, isSeq := parent[key].([]any)
	if !isSeq || index < 1 || index > len(seq) {
		return false
	}
	parent[key] = append(seq[:index-1], seq[index:]...)
	return true
}

// resolve walks the dot-separated path segments through nested mappings.
func resolve(root map[string]any, segments []string) (any, bool) {
	var current any = root
	for _, segment := range segments {
		mapping, isMapping := current.(map[string]any)
		if !isMapping {
			return nil, false
		}
		var found bool
		if current, found = mapping[segment]; !found {
			return nil, false
		}
	}
	return current, true
}

// resolveParent walks to the mapping containing the final path segment and
// returns it together with that segment.
func resolveParent(root map[string]any, segments []string) (map[string]any, string, bool) {
	if len(segments) == 0 {
		return nil, "", false
	}
	parent := root
	for _, segment := range segments[:len(segments)-1] {
		child, found := parent[segment]
		if !found {
			return nil, "", false
		}
		mapping, isMapping := child.(map[string]any)
		if !isMapping {
			return nil, "", false
		}
		parent = mapping
	}
	last := segments[len(segments)-1]
	if last == "" {
		return nil, "", false
	}
	return parent, last, true
}

// toFloat widens the numeric types a document value can carry. JSON decoding
// produces float64; fresh templates may carry untouched Go ints.
func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}

func toIndex(value any) (int, bool) {
	number, isNumber := toFloat(value)
	if !isNumber || number != float64(int(number)) {
		return 0, false
	}
	return int(number), true
}

// equalValues compares document values the way they compare after a JSON
// round trip, so 1 and 1.0 are the same element.
func equalValues(a, b any) bool {
	if na, aNum := toFloat(a); aNum {
		if nb, bNum := toFloat(b); bNum {
			return na == nb
		}
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
