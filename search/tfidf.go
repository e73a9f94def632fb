package search

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/auditel/textproc"
)

// DefaultStopWords is the small Spanish stop-word list used by the vectorizer.
var DefaultStopWords = []string{"el", "la", "de", "en", "y", "o", "un", "una", "es", "son"}

// VectorizerConfig controls vocabulary selection.
type VectorizerConfig struct {
	StopWords   []string
	MinDF       int     // minimum number of documents a term must appear in
	MaxDFRatio  float64 // terms in more than this share of documents are dropped
	MaxFeatures int     // vocabulary size cap, by corpus frequency; 0 means no cap
}

// DefaultVectorizerConfig returns min df 1, max df 0.9 and 5000 features.
func DefaultVectorizerConfig() VectorizerConfig {
	return VectorizerConfig{
		StopWords:   DefaultStopWords,
		MinDF:       1,
		MaxDFRatio:  0.9,
		MaxFeatures: 5000,
	}
}

// sparseVector is a term-weight vector with ascending term indices.
type sparseVector struct {
	terms   []int
	weights []float64
}

func (v sparseVector) empty() bool {
	return len(v.terms) == 0
}

// dot returns the inner product of two sparse vectors.
func dot(a, b sparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i] == b.terms[j]:
			sum += a.weights[i] * b.weights[j]
			i++
			j++
		case a.terms[i] < b.terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// vectorizer maps text to L2-normalised TF-IDF vectors over a fitted vocabulary.
// It is immutable after Fit.
type vectorizer struct {
	vocabulary map[string]int
	idf        []float64
	stopWords  map[string]bool
}

// tokenize lowercases text and returns word tokens of two or more characters
// that are not stop words.
func tokenize(text string, stopWords map[string]bool) []string {
	words := textproc.Words(strings.ToLower(text))
	tokens := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 || stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// fitVectorizer learns the vocabulary and inverse document frequencies of docs and
// returns the fitted vectorizer together with the vector of every document.
//
// Inverse document frequency is smoothed: idf(t) = ln((1+n)/(1+df(t))) + 1.
// When the corpus is so small that the max df ceiling would fall below the
// min df floor, the ceiling is not applied.
func fitVectorizer(docs []string, cfg VectorizerConfig) (*vectorizer, []sparseVector, error) {
	if len(docs) == 0 {
		return nil, nil, ErrEmptyCorpus
	}
	if cfg.MaxDFRatio <= 0 || cfg.MaxDFRatio > 1 {
		return nil, nil, ErrInvalidMaxDF
	}
	if cfg.MinDF < 1 {
		cfg.MinDF = 1
	}

	stopWords := make(map[string]bool, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stopWords[strings.ToLower(w)] = true
	}

	docTokens := make([][]string, len(docs))
	df := make(map[string]int)
	tf := make(map[string]int)
	for i, doc := range docs {
		tokens := tokenize(doc, stopWords)
		docTokens[i] = tokens
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	n := len(docs)
	maxDocs := cfg.MaxDFRatio * float64(n)
	applyMax := maxDocs >= float64(cfg.MinDF)

	terms := make([]string, 0, len(df))
	for term, count := range df {
		if count < cfg.MinDF {
			continue
		}
		if applyMax && float64(count) > maxDocs {
			continue
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, nil, ErrEmptyVocabulary
	}

	if cfg.MaxFeatures > 0 && len(terms) > cfg.MaxFeatures {
		slices.SortFunc(terms, func(a, b string) int {
			if tf[a] != tf[b] {
				return tf[b] - tf[a]
			}
			return strings.Compare(a, b)
		})
		terms = terms[:cfg.MaxFeatures]
	}
	slices.Sort(terms)

	v := &vectorizer{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
		stopWords:  stopWords,
	}
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	vectors := make([]sparseVector, n)
	for i, tokens := range docTokens {
		vectors[i] = v.vectorize(tokens)
	}
	return v, vectors, nil
}

func (v *vectorizer) vocabularySize() int {
	return len(v.vocabulary)
}

// transform maps text into the fitted vector space. Terms outside the
// vocabulary are ignored.
func (v *vectorizer) transform(text string) sparseVector {
	return v.vectorize(tokenize(text, v.stopWords))
}

func (v *vectorizer) vectorize(tokens []string) sparseVector {
	counts := make(map[int]int)
	for _, tok := range tokens {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return sparseVector{}
	}

	vec := sparseVector{
		terms:   make([]int, 0, len(counts)),
		weights: make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.terms = append(vec.terms, idx)
	}
	slices.Sort(vec.terms)

	var norm float64
	for _, idx := range vec.terms {
		w := float64(counts[idx]) * v.idf[idx]
		vec.weights = append(vec.weights, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec.weights {
		vec.weights[i] /= norm
	}
	return vec
}
