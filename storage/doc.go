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


// Package storage provides the cache abstraction used by the scrapers.
//
// The cache is an optimisation only: every reader has a fallback that
// recomputes the value. Backends therefore never surface read errors to
// callers; an unreadable, corrupt or expired entry is simply a miss.
//
// # Backends
//
// Three implementations share the Cache contract:
//
//   - file: one JSON file per entry, named by the content hash of the key
//   - badger: entries stored in a BadgerDB directory
//   - redis: entries stored under a key prefix on a redis server
//
// # Expiration
//
// Entries carry the time they were written. An entry older than the
// configured expiration is expired; reading it deletes it and reports a
// miss. PurgeExpired removes every expired entry in bulk. The clock is
// injectable so expiration can be tested with simulated time:
//
//	cache, err := file.New(dir, storage.WithClock(fakeNow))
//
// # Thread Safety
//
// All implementations are safe for concurrent use. Writes to the same key
// are last-writer-wins.
package storage
