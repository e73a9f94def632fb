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


// Package search provides semantic search over the local audit records.
//
// The Engine fits a single TF-IDF vector space over every record of every
// category, so term weights are shared across categories. Queries are
// ranked by cosine similarity and filtered by category and by a fixed
// similarity threshold.
//
// An Engine is built once at startup and is read-only afterwards, so any
// number of goroutines may search it concurrently without locking.
package search
