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

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappers(t *testing.T) {
	t.Run("With connection error", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := NewErrConnection(cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "store connection failed")
	})

	t.Run("With document write error", func(t *testing.T) {
		cause := errors.New("broken pipe")
		err := NewErrDocumentWrite(cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "document version write failed")
	})

	t.Run("With ledger append error", func(t *testing.T) {
		cause := errors.New("broken pipe")
		err := NewErrLedgerAppend(cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "version ledger append failed")
	})
}
