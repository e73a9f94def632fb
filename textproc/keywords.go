package textproc

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// ExtractKeywords returns up to max of the most frequent words of text,
// lowercased, excluding stop words and words of three characters or fewer.
// Ties keep first-occurrence order.
func ExtractKeywords(text string, max int) []string {
	if text == "" || max <= 0 {
		return []string{}
	}

	counts := make(map[string]int)
	var order []string
	for _, word := range Words(strings.ToLower(text)) {
		if StopWords[word] || utf8.RuneCountInString(word) <= 3 {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > max {
		order = order[:max]
	}
	if order == nil {
		return []string{}
	}
	return order
}
