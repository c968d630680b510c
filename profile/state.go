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

// State represents the session-lock state of a profile.
//
// The normal lifecycle runs from Unlocked through Acquiring to Locked, then
// through Releasing back to Unlocked. Degraded is terminal: the profile keeps
// serving its in-memory document but never reaches the store again.
type State int32

const (
	// Unlocked means the profile holds no session lease.
	Unlocked State = iota
	// Acquiring means the load protocol is running, possibly polling for a
	// busy lease to free up.
	Acquiring
	// Locked means this process holds the session lease and may save.
	Locked
	// Releasing means the final release-save is in flight.
	Releasing
	// Degraded means persistence is disabled for this profile; it operates as
	// a volatile in-memory document only.
	Degraded
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Acquiring:
		return "acquiring"
	case Locked:
		return "locked"
	case Releasing:
		return "releasing"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}
