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


package search

import "errors"

var (
	// ErrEmptyCorpus is returned when Build is given no records.
	ErrEmptyCorpus = errors.New("search corpus is empty")

	// ErrEmptyVocabulary is returned when no term survives document frequency pruning.
	ErrEmptyVocabulary = errors.New("no terms remain after pruning")

	// ErrInvalidMaxDF is returned when the maximum document frequency ratio is not in (0, 1].
	ErrInvalidMaxDF = errors.New("max document frequency ratio must be in (0, 1]")
)
