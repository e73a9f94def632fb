package textproc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// StopWords are the Spanish function words dropped from keyword extraction.
var StopWords = map[string]bool{
	"el": true, "la": true, "de": true, "en": true, "y": true, "o": true,
	"un": true, "una": true, "es": true, "son": true, "por": true, "para": true,
	"con": true, "sin": true, "sobre": true, "entre": true, "hasta": true, "desde": true,
	"los": true, "las": true, "del": true, "al": true, "a": true, "ante": true,
	"bajo": true, "cabe": true, "contra": true, "durante": true, "mediante": true,
	"según": true, "tras": true, "versus": true, "vía": true,
}

// CleanText replaces control characters with spaces, collapses runs of
// whitespace and trims the result.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// IsWordRune reports whether r belongs to a word token.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Words splits text into maximal runs of word runes.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return !IsWordRune(r) })
}

// Truncate cuts text to at most maxChars characters, appending suffix when
// anything was removed. The returned flag reports whether truncation happened.
func Truncate(text string, maxChars int, suffix string) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + suffix, true
}

// FirstWords returns the first n whitespace separated words of text.
func FirstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Summarize returns text when it fits in maxChars, otherwise as many whole
// leading sentences as fit. When not even the first sentence fits the text is
// cut at maxChars and suffixed with "...".
func Summarize(text string, maxChars int) string {
	text = CleanText(text)
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	var summary strings.Builder
	length := 0
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		n := utf8.RuneCountInString(sentence)
		if length+n > maxChars {
			break
		}
		summary.WriteString(sentence)
		summary.WriteString(". ")
		length += n + 2
	}

	if summary.Len() == 0 {
		cut, _ := Truncate(text, maxChars, "...")
		return cut
	}
	return strings.TrimSpace(summary.String())
}
