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


package scraper

import "errors"

var (
	// ErrFetchFailed is returned when a page could not be fetched after all attempts.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrUnknownSource is returned when no scraper is registered under a name.
	ErrUnknownSource = errors.New("unknown source")

	// ErrEmptyURL is returned when a detail fetch is requested without a URL.
	ErrEmptyURL = errors.New("url is required")

	// ErrNoScrapers is returned when a manager is built without scrapers.
	ErrNoScrapers = errors.New("at least one scraper is required")
)
