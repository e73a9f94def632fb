package textproc

import (
	"regexp"
	"strings"
)

// citationPattern is one legal citation shape. Patterns with bounded set the
// match must end before '.', ',' or a newline, or run to the end of the text.
type citationPattern struct {
	re      *regexp.Regexp
	bounded bool
}

const citationWord = `[\p{L}\p{N}_\s]`

var citationPatterns = []citationPattern{
	{regexp.MustCompile(`(?i)Ley\s+(?:del|de|sobre|para)\s+` + citationWord + `+`), true},
	{regexp.MustCompile(`(?i)Reglamento\s+(?:del|de|para)\s+` + citationWord + `+`), true},
	{regexp.MustCompile(`(?i)Artículo\s+\d+(?:\s+(?:bis|ter|quater|quinquies))?(?:\s+fracción\s+[IVXLCDM]+)?`), false},
	{regexp.MustCompile(`(?i)NOM-\d+-[\p{L}\p{N}_]+-\d+`), false},
	{regexp.MustCompile(`(?i)Decreto\s+(?:por\s+el\s+que|que\s+establece|mediante\s+el\s+cual)` + citationWord + `+`), false},
	{regexp.MustCompile(`(?i)Acuerdo\s+` + citationWord + `+`), true},
	{regexp.MustCompile(`(?i)Código\s+(?:Civil|Penal|Fiscal|de\s+Comercio)` + citationWord + `*`), false},
	{regexp.MustCompile(`(?i)Constitución\s+Política` + citationWord + `*`), false},
}

// ExtractLegalReferences returns the distinct legal citations found in text,
// in pattern order and then order of appearance.
func ExtractLegalReferences(text string) []string {
	if text == "" {
		return []string{}
	}

	seen := make(map[string]bool)
	refs := []string{}
	for _, pattern := range citationPatterns {
		for _, loc := range pattern.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if pattern.bounded {
				var ok bool
				if end, ok = boundedEnd(pattern.re, text, start, end); !ok {
					continue
				}
			}
			ref := CleanText(text[start:end])
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// boundedEnd shortens a greedy citation match so it stops at a sentence
// boundary. A match already followed by '.', ',' or the end of text is kept.
// Otherwise it is cut at its last newline, provided the shortened text still
// forms a complete citation.
func boundedEnd(re *regexp.Regexp, text string, start, end int) (int, bool) {
	if end == len(text) || text[end] == '.' || text[end] == ',' {
		return end, true
	}
	nl := strings.LastIndexByte(text[start:end], '\n')
	if nl <= 0 {
		return 0, false
	}
	cut := start + nl
	loc := re.FindStringIndex(text[start:cut])
	if loc == nil || loc[0] != 0 || loc[1] != cut-start {
		return 0, false
	}
	return cut, true
}
