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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidQuestion indicates a question failed validation.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrEmptyQuestion indicates the question is empty after cleaning.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrQuestionTooShort indicates the question is below the minimum length.
	ErrQuestionTooShort = errors.New("question too short")

	// ErrQuestionTooLong indicates the question exceeds the maximum length.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrUnknownCategory indicates the requested category is not configured.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrEmptyCategory indicates no category was given.
	ErrEmptyCategory = errors.New("category cannot be empty")
)
