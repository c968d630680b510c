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

// Package errors defines the sentinel errors returned by the profile store.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStoreName is returned when the store name contains invalid characters.
	// A valid name must consist of only alphanumeric characters ([a-zA-Z0-9]), with optional
	// hyphens or underscores that are not leading.
	ErrInvalidStoreName = errors.New("invalid store name, must contain only word characters (i.e. [a-zA-Z0-9] plus non-leading '-' or '_')")

	// ErrOwnerRequired is returned when a profile is attached without an owner id.
	ErrOwnerRequired = errors.New("owner id is required")

	// ErrAlreadyAttached is returned when a profile is already attached for the given owner.
	ErrAlreadyAttached = errors.New("profile is already attached")

	// ErrNotAttached is returned when no profile is attached for the given owner.
	ErrNotAttached = errors.New("profile is not attached")

	// ErrManagerStopped indicates an operation was attempted on a stopped manager.
	ErrManagerStopped = errors.New("profile manager is stopped")

	// ErrManagerNotStarted indicates an operation was attempted before the manager was started.
	ErrManagerNotStarted = errors.New("profile manager is not started")

	// ErrPersistenceDisabled is returned by Save when the profile runs in
	// volatile mode, either by configuration or after it has degraded.
	ErrPersistenceDisabled = errors.New("persistence is disabled for the profile")

	// ErrDegraded indicates that the profile could not claim its session lock
	// and now operates as a volatile in-memory document only.
	ErrDegraded = errors.New("profile is degraded")

	// ErrAcquisitionAborted is returned when the owner detaches while the
	// session lock acquisition is still polling.
	ErrAcquisitionAborted = errors.New("session lock acquisition aborted")

	// ErrCorruptedDocument is returned when a stored document fails to decode
	// or its integrity checksum does not match.
	ErrCorruptedDocument = errors.New("stored document is corrupted")

	// ErrKeyNotFound is returned when a key does not exist in the remote store.
	ErrKeyNotFound = errors.New("key not found in the store")

	// ErrStoreClosed indicates that the remote store handle has been closed.
	ErrStoreClosed = errors.New("store is closed")
)

// NewErrConnection wraps a remote store connectivity failure after
// all bounded retry attempts have been exhausted.
func NewErrConnection(err error) error {
	return fmt.Errorf("store connection failed: %w", err)
}

// NewErrDocumentWrite wraps a failure to write a document version to the store.
// The in-memory document is unaffected when this error is returned.
func NewErrDocumentWrite(err error) error {
	return fmt.Errorf("document version write failed: %w", err)
}

// NewErrLedgerAppend wraps a failure to append a version id to the version
// ledger after the document itself was written. The written version is
// unreachable so the profile stops persisting.
func NewErrLedgerAppend(err error) error {
	return fmt.Errorf("version ledger append failed: %w", err)
}
