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
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/profilestore/errors"
	"github.com/tochemey/profilestore/eventstream"
	"github.com/tochemey/profilestore/log"
	"github.com/tochemey/profilestore/storage"
)

const (
	// schedulerStopTimeout bounds the wait for in-flight autosave jobs at stop
	schedulerStopTimeout = 3 * time.Second
	// autosaveTimeout bounds one autosave round trip to the store
	autosaveTimeout = 30 * time.Second
)

// Manager owns the per-owner profiles of one process. It attaches and
// detaches profiles, probes store connectivity at startup and drives the
// periodic autosave of every attached profile.
//
// The Manager does not own the store it is given: closing the store after
// Stop is the caller's responsibility.
type Manager struct {
	cfg    *config
	store  storage.Store
	stream eventstream.Stream
	sink   *sinkClient
	logger log.Logger

	quartzScheduler quartz.Scheduler

	mu       sync.Mutex
	profiles map[string]*Profile

	started   *atomic.Bool
	stopped   *atomic.Bool
	connected *atomic.Bool
}

// NewManager creates a profile manager on top of the given store. The store
// must outlive the manager.
func NewManager(store storage.Store, opts ...Option) (*Manager, error) {
	cfg := newConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.environment == NonProduction && !cfg.allowNonProduction && cfg.persistenceEnabled {
		// non-production deployments run volatile unless explicitly allowed,
		// so experiments never pollute live documents
		cfg.persistenceEnabled = false
		cfg.logger.Info("non-production environment: persistence disabled")
	}

	quartzScheduler, err := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if err != nil {
		return nil, err
	}

	var sink *sinkClient
	if cfg.externalSinkURL != "" {
		sink = newSinkClient(cfg.externalSinkURL, cfg.logger)
	}

	return &Manager{
		cfg:             cfg,
		store:           store,
		stream:          eventstream.New(),
		sink:            sink,
		logger:          cfg.logger,
		quartzScheduler: quartzScheduler,
		profiles:        make(map[string]*Profile),
		started:         atomic.NewBool(false),
		stopped:         atomic.NewBool(false),
		connected:       atomic.NewBool(false),
	}, nil
}

// Start probes store connectivity and starts the autosave scheduler. When the
// store cannot be reached within the configured retry budget the manager
// still starts, with persistence disabled for every profile it will attach.
func (x *Manager) Start(ctx context.Context) error {
	if x.stopped.Load() {
		return gerrors.ErrManagerStopped
	}
	if !x.started.CompareAndSwap(false, true) {
		return nil
	}

	x.logger.Info("starting profile manager...")

	if x.cfg.persistenceEnabled {
		retrier := retry.NewRetrier(x.cfg.maxConnectionAttempts, x.cfg.connectionAttemptDelay, x.cfg.connectionAttemptDelay)
		err := retrier.RunContext(ctx, func(ctx context.Context) error {
			return x.store.Ping(ctx)
		})
		if err != nil {
			x.cfg.persistenceEnabled = false
			x.logger.Warnf("profile manager running volatile: %v", gerrors.NewErrConnection(err))
		} else {
			x.connected.Store(true)
		}
	}

	x.quartzScheduler.Start(ctx)
	x.logger.Info("profile manager started")
	return nil
}

// Stop detaches every profile, performing its final release save, and shuts
// down the scheduler and the event stream.
func (x *Manager) Stop(ctx context.Context) error {
	if !x.started.CompareAndSwap(true, false) {
		return gerrors.ErrManagerNotStarted
	}
	x.stopped.Store(true)

	x.logger.Info("stopping profile manager...")

	x.mu.Lock()
	profiles := make([]*Profile, 0, len(x.profiles))
	for _, profile := range x.profiles {
		profiles = append(profiles, profile)
	}
	x.profiles = make(map[string]*Profile)
	x.mu.Unlock()

	for _, profile := range profiles {
		profile.detach(ctx)
	}

	_ = x.quartzScheduler.Clear()
	x.quartzScheduler.Stop()
	waitCtx, cancel := context.WithTimeout(ctx, schedulerStopTimeout)
	x.quartzScheduler.Wait(waitCtx)
	cancel()

	x.stream.Close()
	if x.sink != nil {
		_ = x.sink.Close()
	}

	x.logger.Info("profile manager stopped")
	return nil
}

// Attach loads the profile of the given owner, blocking until its session
// lease is acquired or the load degrades. There is at most one profile per
// owner id per process; a second Attach for the same owner fails until the
// first is detached.
func (x *Manager) Attach(ctx context.Context, ownerID string) (*Profile, error) {
	if ownerID == "" {
		return nil, gerrors.ErrOwnerRequired
	}
	if x.stopped.Load() {
		return nil, gerrors.ErrManagerStopped
	}
	if !x.started.Load() {
		return nil, gerrors.ErrManagerNotStarted
	}

	profile := newProfile(ownerID, uuid.NewString(), x.cfg, x.store, x.stream, x.sink)

	// reserve the owner slot before the blocking load so a concurrent Attach
	// for the same owner fails fast
	x.mu.Lock()
	if _, exists := x.profiles[ownerID]; exists {
		x.mu.Unlock()
		return nil, gerrors.ErrAlreadyAttached
	}
	x.profiles[ownerID] = profile
	x.mu.Unlock()

	if err := profile.load(ctx); err != nil {
		x.mu.Lock()
		delete(x.profiles, ownerID)
		x.mu.Unlock()
		return nil, err
	}

	if profile.persistent() {
		if err := x.scheduleAutosave(profile); err != nil {
			x.logger.Warnf("scheduling autosave for owner=%s: %v", ownerID, err)
		}
	}
	return profile, nil
}

// Detach removes the owner's profile, saving one final version with the
// session lease released and running the profile's cleanup tasks.
func (x *Manager) Detach(ctx context.Context, ownerID string) error {
	x.mu.Lock()
	profile, exists := x.profiles[ownerID]
	if !exists {
		x.mu.Unlock()
		return gerrors.ErrNotAttached
	}
	delete(x.profiles, ownerID)
	x.mu.Unlock()

	_ = x.quartzScheduler.DeleteJob(quartz.NewJobKey(autosaveJobKey(ownerID)))
	profile.detach(ctx)
	return nil
}

// Profile returns the attached profile of the given owner.
func (x *Manager) Profile(ownerID string) (*Profile, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	profile, exists := x.profiles[ownerID]
	return profile, exists
}

// Profiles returns every currently attached profile.
func (x *Manager) Profiles() []*Profile {
	x.mu.Lock()
	defer x.mu.Unlock()
	profiles := make([]*Profile, 0, len(x.profiles))
	for _, profile := range x.profiles {
		profiles = append(profiles, profile)
	}
	return profiles
}

// EventsStream returns the broker carrying every profile's change and save
// events. Prefer Profile.WatchChanges and Profile.WatchSaves for
// per-profile subscriptions tied to the profile's lifetime.
func (x *Manager) EventsStream() eventstream.Stream {
	return x.stream
}

// Connected reports whether the startup connectivity probe reached the store.
func (x *Manager) Connected() bool {
	return x.connected.Load()
}

// scheduleAutosave registers a periodic job saving the profile once its last
// save is older than the configured interval. The job fires at half the
// interval so a save is never overdue by more than half a period.
func (x *Manager) scheduleAutosave(profile *Profile) error {
	task := job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		if profile.State() != Locked {
			return false, nil
		}
		if time.Since(profile.LastSaveAt()) < x.cfg.saveInterval {
			return false, nil
		}
		saveCtx, cancel := context.WithTimeout(ctx, autosaveTimeout)
		defer cancel()
		if err := profile.Save(saveCtx); err != nil {
			x.logger.Warnf("autosave for owner=%s: %v", profile.OwnerID(), err)
			return false, err
		}
		return true, nil
	})

	detail := quartz.NewJobDetail(task, quartz.NewJobKey(autosaveJobKey(profile.OwnerID())))
	return x.quartzScheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(x.cfg.saveInterval/2))
}

func autosaveJobKey(ownerID string) string {
	return "profiles-autosave-" + ownerID
}
