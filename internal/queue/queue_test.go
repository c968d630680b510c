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

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	t.Run("With Push and Pop", func(t *testing.T) {
		q := New[int]()
		require.Zero(t, q.Length())

		for i := 0; i < 40; i++ {
			require.True(t, q.Push(i))
		}
		require.Equal(t, 40, q.Length())

		for i := 0; i < 40; i++ {
			item, ok := q.Pop()
			require.True(t, ok)
			assert.Equal(t, i, item)
		}

		_, ok := q.Pop()
		assert.False(t, ok)
	})
	t.Run("With wrap-around resize", func(t *testing.T) {
		q := New[string]()
		for i := 0; i < minQueueLen-1; i++ {
			q.Push("x")
		}
		for i := 0; i < minQueueLen-1; i++ {
			q.Pop()
		}
		// head is now near the end of the ring; force a resize across the seam
		for i := 0; i < minQueueLen+4; i++ {
			require.True(t, q.Push("y"))
		}
		assert.Equal(t, minQueueLen+4, q.Length())
	})
	t.Run("With Close", func(t *testing.T) {
		q := New[int]()
		q.Push(1)
		q.Close()
		assert.False(t, q.Push(2))
		_, ok := q.Pop()
		assert.False(t, ok)
		assert.Zero(t, q.Length())
	})
}
