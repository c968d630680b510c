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
	"encoding/json"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/zeebo/xxh3"

	gerrors "github.com/tochemey/profilestore/errors"
)

// SessionData is the soft session lease recorded inside the document itself.
// Its absence means the document is unlocked.
type SessionData struct {
	// LastUpdate is the unix-millisecond timestamp of the holder's most recent save
	LastUpdate int64 `json:"lastUpdate"`
	// OwnerToken uniquely identifies the process holding the lease
	OwnerToken string `json:"ownerToken"`
}

// StaleAt reports whether the lease is older than the given timeout at the
// given instant. A stale lease belongs to a holder presumed crashed.
func (s *SessionData) StaleAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(time.UnixMilli(s.LastUpdate)) > timeout
}

// Metadata is the unit persisted to the remote store as one serialized
// document per version.
type Metadata struct {
	// Data is the caller's actual document
	Data map[string]any `json:"data"`
	// Created is the unix-millisecond timestamp of first creation
	Created int64 `json:"created"`
	// LastSeen is the unix-millisecond timestamp of the most recent save
	LastSeen int64 `json:"lastSeen"`
	// Sessions counts load events across the document's history
	Sessions int64 `json:"sessions"`
	// Session is the session lease. nil means unlocked.
	Session *SessionData `json:"sessionData,omitempty"`
}

// envelope wraps the serialized metadata with an integrity checksum so that a
// truncated or bit-rotted document is detected at load instead of being
// partially recovered.
type envelope struct {
	Checksum string          `json:"checksum"`
	Document json.RawMessage `json:"document"`
}

// encodeMetadata serializes the metadata, excluding the ignored top-level
// data keys, and wraps it with an xxh3-64 checksum.
func encodeMetadata(meta *Metadata, ignored mapset.Set[string]) ([]byte, error) {
	persisted := *meta
	if ignored != nil && ignored.Cardinality() > 0 {
		persisted.Data = make(map[string]any, len(meta.Data))
		for key, value := range meta.Data {
			if !ignored.Contains(key) {
				persisted.Data[key] = value
			}
		}
	}

	document, err := json.Marshal(&persisted)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	payload, err := json.Marshal(&envelope{
		Checksum: fmt.Sprintf("%016x", xxh3.Hash(document)),
		Document: document,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return payload, nil
}

// decodeMetadata decodes a stored document. Any shape violation or checksum
// mismatch yields ErrCorruptedDocument; corrupted documents are never
// partially recovered.
func decodeMetadata(payload []byte) (*Metadata, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", gerrors.ErrCorruptedDocument, err)
	}
	if len(env.Document) == 0 {
		return nil, fmt.Errorf("%w: empty document", gerrors.ErrCorruptedDocument)
	}
	if sum := fmt.Sprintf("%016x", xxh3.Hash(env.Document)); sum != env.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", gerrors.ErrCorruptedDocument)
	}

	meta := new(Metadata)
	if err := json.Unmarshal(env.Document, meta); err != nil {
		return nil, fmt.Errorf("%w: %w", gerrors.ErrCorruptedDocument, err)
	}
	if meta.Data == nil {
		return nil, fmt.Errorf("%w: document data is not an object", gerrors.ErrCorruptedDocument)
	}
	return meta, nil
}

// deepCopyValue copies nested JSON-representable values. Scalars are returned
// as-is.
func deepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return value
	}
}

func deepCopyMap(value map[string]any) map[string]any {
	out := make(map[string]any, len(value))
	for key, item := range value {
		out[key] = deepCopyValue(item)
	}
	return out
}

// deepMerge copies every key present in src but absent from dst, recursing
// into mappings present on both sides. It never overwrites existing values
// and never removes keys. It reports whether anything was added.
func deepMerge(dst, src map[string]any) bool {
	added := false
	for key, srcValue := range src {
		dstValue, exists := dst[key]
		if !exists {
			dst[key] = deepCopyValue(srcValue)
			added = true
			continue
		}
		dstMap, dstIsMap := dstValue.(map[string]any)
		srcMap, srcIsMap := srcValue.(map[string]any)
		if dstIsMap && srcIsMap {
			if deepMerge(dstMap, srcMap) {
				added = true
			}
		}
	}
	return added
}
