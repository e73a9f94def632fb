// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/auditel/core"
)

// Entry is the persisted form of a cached value.
type Entry struct {
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// NewEntry serialises value into an entry stamped with now.
func NewEntry(key string, value any, metadata map[string]any, now time.Time) (*Entry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &Entry{
		Key:       key,
		Timestamp: now,
		Metadata:  metadata,
		Value:     raw,
	}, nil
}

// Expired reports whether the entry is older than expiration at now.
func (e *Entry) Expired(now time.Time, expiration time.Duration) bool {
	return now.Sub(e.Timestamp) > expiration
}

// HashKey maps a cache key to its storage name.
func HashKey(key string) string {
	return core.ContentHash(key)
}

// MarshalEntry serializes an Entry to bytes.
func MarshalEntry(entry *Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalEntry deserializes an Entry from bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if entry.Key == "" || entry.Timestamp.IsZero() || len(entry.Value) == 0 {
		return nil, fmt.Errorf("%w: incomplete entry", ErrSerializationFailed)
	}
	return &entry, nil
}
