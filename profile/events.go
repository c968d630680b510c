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

// Event carries the full current document of one owner. Subscribers always
// receive a snapshot, never a diff and never the live map.
type Event struct {
	// OwnerID identifies the profile the event belongs to
	OwnerID string
	// Document is a deep copy of the owner's document at publish time
	Document map[string]any
}

// ChangedTopic returns the event stream topic that carries a change event for
// every mutation, reconcile and reset of the given owner's document.
func ChangedTopic(ownerID string) string {
	return "profiles.changed." + ownerID
}

// SavedTopic returns the event stream topic notified after each fully
// successful save of the given owner's document.
func SavedTopic(ownerID string) string {
	return "profiles.saved." + ownerID
}
