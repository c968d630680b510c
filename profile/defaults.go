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

import "time"

const (
	// DefaultStoreName is the store name used when none is configured.
	DefaultStoreName = "profiles"
	// DefaultSaveInterval is the default autosave period.
	DefaultSaveInterval = 3 * time.Minute
	// DefaultSessionLockTimeout is how old a session lease must be before a
	// loader may treat it as abandoned.
	DefaultSessionLockTimeout = time.Minute
	// DefaultSessionCheckInterval is the poll period while waiting for a busy
	// session lease to free up.
	DefaultSessionCheckInterval = 5 * time.Second
	// DefaultMaxConnectionAttempts bounds the retries of any single remote
	// store call.
	DefaultMaxConnectionAttempts = 5
	// DefaultConnectionAttemptDelay is the fixed delay between retries of a
	// remote store call.
	DefaultConnectionAttemptDelay = 3 * time.Second

	// storeNamePattern restricts store names to word characters with
	// non-leading hyphens or underscores
	storeNamePattern = "^[a-zA-Z0-9][a-zA-Z0-9-_]*$"
)
