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
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	gerrors "github.com/tochemey/profilestore/errors"
	"github.com/tochemey/profilestore/internal/validation"
	"github.com/tochemey/profilestore/log"
)

// Template produces a fresh document for the given owner. It must return a
// new instance on every call.
type Template func(ownerID string) map[string]any

// Environment identifies the runtime environment the manager operates in.
type Environment int

const (
	// Production is the default environment; persistence is active.
	Production Environment = iota
	// NonProduction marks test or staging deployments. Persistence is
	// disabled there unless explicitly allowed, so experiments never pollute
	// live documents.
	NonProduction
)

// config carries the manager settings, assembled through functional options.
type config struct {
	storeName              string
	storeVersion           string
	saveInterval           time.Duration
	sessionLockTimeout     time.Duration
	sessionCheckInterval   time.Duration
	maxConnectionAttempts  int
	connectionAttemptDelay time.Duration
	keysToIgnore           mapset.Set[string]
	template               Template
	persistenceEnabled     bool
	environment            Environment
	allowNonProduction     bool
	externalSinkURL        string
	logger                 log.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		storeName:              DefaultStoreName,
		saveInterval:           DefaultSaveInterval,
		sessionLockTimeout:     DefaultSessionLockTimeout,
		sessionCheckInterval:   DefaultSessionCheckInterval,
		maxConnectionAttempts:  DefaultMaxConnectionAttempts,
		connectionAttemptDelay: DefaultConnectionAttemptDelay,
		keysToIgnore:           mapset.NewSet[string](),
		template:               func(string) map[string]any { return map[string]any{} },
		persistenceEnabled:     true,
		logger:                 log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate implements validation.Validator
func (c *config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewPatternValidator(storeNamePattern, c.storeName, gerrors.ErrInvalidStoreName)).
		AddAssertion(c.saveInterval > 0, "save interval must be greater than zero").
		AddAssertion(c.sessionLockTimeout > 0, "session lock timeout must be greater than zero").
		AddAssertion(c.sessionCheckInterval > 0, "session check interval must be greater than zero").
		AddAssertion(c.maxConnectionAttempts > 0, "max connection attempts must be greater than zero").
		AddAssertion(c.connectionAttemptDelay > 0, "connection attempt delay must be greater than zero").
		AddAssertion(c.template != nil, "template is required").
		Validate()
}

// namespace returns the store namespace all documents and ledgers live under
func (c *config) namespace() string {
	if c.storeVersion == "" {
		return c.storeName
	}
	return c.storeName + "_" + c.storeVersion
}

// Option configures the profile manager
type Option func(*config)

// WithStoreName sets the logical store name documents are grouped under.
func WithStoreName(name string) Option {
	return func(c *config) { c.storeName = name }
}

// WithStoreVersion suffixes the store namespace, so that incompatible
// document generations never read each other's versions.
func WithStoreVersion(version string) Option {
	return func(c *config) { c.storeVersion = version }
}

// WithSaveInterval sets the autosave period.
func WithSaveInterval(interval time.Duration) Option {
	return func(c *config) { c.saveInterval = interval }
}

// WithSessionLockTimeout sets how old a session lease must be before a loader
// treats it as abandoned.
func WithSessionLockTimeout(timeout time.Duration) Option {
	return func(c *config) { c.sessionLockTimeout = timeout }
}

// WithSessionCheckInterval sets the poll period while waiting for a busy
// session lease.
func WithSessionCheckInterval(interval time.Duration) Option {
	return func(c *config) { c.sessionCheckInterval = interval }
}

// WithConnectionRetry bounds the retries of remote store calls. The delay is
// fixed between attempts, not exponential.
func WithConnectionRetry(maxAttempts int, delay time.Duration) Option {
	return func(c *config) {
		c.maxConnectionAttempts = maxAttempts
		c.connectionAttemptDelay = delay
	}
}

// WithKeysToIgnore excludes the given top-level data keys from every
// serialized write. The keys are retained in memory.
func WithKeysToIgnore(keys ...string) Option {
	return func(c *config) { c.keysToIgnore = mapset.NewSet(keys...) }
}

// WithTemplate sets a static document template. Every attach receives a deep
// copy.
func WithTemplate(template map[string]any) Option {
	return func(c *config) {
		c.template = func(string) map[string]any { return deepCopyMap(template) }
	}
}

// WithTemplateProvider sets a per-owner document template factory.
func WithTemplateProvider(template Template) Option {
	return func(c *config) { c.template = template }
}

// WithPersistenceDisabled makes every profile volatile: documents live in
// memory only and nothing reaches the store.
func WithPersistenceDisabled() Option {
	return func(c *config) { c.persistenceEnabled = false }
}

// WithEnvironment declares the runtime environment.
func WithEnvironment(environment Environment) Option {
	return func(c *config) { c.environment = environment }
}

// WithAllowNonProduction keeps persistence active in non-production
// environments.
func WithAllowNonProduction() Option {
	return func(c *config) { c.allowNonProduction = true }
}

// WithExternalSinkURL forwards every successfully saved document to the given
// URL, best-effort.
func WithExternalSinkURL(url string) Option {
	return func(c *config) { c.externalSinkURL = url }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *config) { c.logger = logger }
}
