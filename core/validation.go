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

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// ValidateQuestion validates a user question according to domain rules.
//
// Validation rules:
//   - Question must not be empty after trimming
//   - Length in characters must be within [minLen, maxLen]
//
// A non-positive bound disables that check.
func ValidateQuestion(question string, minLen, maxLen int) error {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, ErrEmptyQuestion)
	}

	length := utf8.RuneCountInString(trimmed)
	if minLen > 0 && length < minLen {
		return fmt.Errorf("%w: %w: %d < %d", ErrInvalidQuestion, ErrQuestionTooShort, length, minLen)
	}
	if maxLen > 0 && length > maxLen {
		return fmt.Errorf("%w: %w: %d > %d", ErrInvalidQuestion, ErrQuestionTooLong, length, maxLen)
	}
	return nil
}

// ValidateCategory checks that category is one of the known category names.
func ValidateCategory(category string, known []string) error {
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	if !slices.Contains(known, category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return nil
}
