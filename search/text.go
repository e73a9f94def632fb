package search

import (
	"strings"

	"github.com/poiesic/auditel/textproc"
)

// tokenizeAndFilter splits text into lowercase words and removes stop words.
func tokenizeAndFilter(text string) []string {
	words := textproc.Words(strings.ToLower(text))
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if !textproc.StopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// QueryCoverage returns the share of distinct query words, after stop-word
// filtering, that appear in document. It is 0 for a query with no words.
func QueryCoverage(document, query string) float64 {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return 0
	}

	docWordSet := make(map[string]bool)
	for _, word := range tokenizeAndFilter(document) {
		docWordSet[word] = true
	}

	distinct := make(map[string]bool, len(queryWords))
	found := 0
	for _, qWord := range queryWords {
		if distinct[qWord] {
			continue
		}
		distinct[qWord] = true
		if docWordSet[qWord] {
			found++
		}
	}
	return float64(found) / float64(len(distinct))
}

// ContainsAllQueryWords reports whether every filtered query word occurs in document.
func ContainsAllQueryWords(document, query string) bool {
	return len(tokenizeAndFilter(query)) > 0 && QueryCoverage(document, query) == 1
}
