package scraper

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/poiesic/auditel/textproc"
)

// Extraction limits.
const (
	ContentMaxChars       = 1000
	DetailContentMaxChars = 5000
	SearchKeywords        = 8
	DetailKeywords        = 15
)

// Site describes how to search one gazette and read its pages.
type Site struct {
	Name       string
	Label      string
	Source     string
	Kind       string
	DetailKind string
	BaseURL    string
	SearchURL  string

	// Params builds the search query string.
	Params func(query string, opts SearchOptions) url.Values

	// Containers are tried in order; the first strategy that yields any
	// element decides the result containers.
	Containers []ContainerRule

	Title TitleRule

	// ContentSelectors are tried when a container has no paragraphs.
	ContentSelectors string

	// URLAttrs are container attributes checked when no anchor has an href.
	URLAttrs []string

	// DateSelectors are tried in order before scanning the container text.
	DateSelectors []string

	Detail DetailRule

	// Metadata adds site specific metadata extracted from a container or
	// a detail page.
	Metadata func(sel *goquery.Selection) map[string]any
}

// ContainerRule is one strategy for locating result containers.
// Exactly one of Selectors, TableRows or Keywords is expected to be set.
type ContainerRule struct {
	// Selectors are tried in order; the first with matches wins.
	Selectors []string

	// TableRows takes every row after the header of the first table with
	// more than one row.
	TableRows bool

	// Keywords selects every div whose lowercased text contains one of them
	// and whose text is longer than MinLength characters.
	Keywords  []string
	MinLength int
}

// TitleRule describes how a container's title is found.
type TitleRule struct {
	// Selectors are tried in order; the first match whose text is longer
	// than MinLength and, when MaxLength is set, shorter than MaxLength wins.
	Selectors []string
	MinLength int
	MaxLength int

	// Attribute is read from the container when no selector matched.
	Attribute string

	// FallbackWords is how many leading words of the container text are
	// used as a last resort.
	FallbackWords int
}

// DetailRule describes how a document page is read.
type DetailRule struct {
	Title   string
	Content string
	Date    string
}

// containers applies the container strategies to doc.
func (s *Site) containers(doc *goquery.Document) []*goquery.Selection {
	for _, rule := range s.Containers {
		if found := rule.find(doc); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (r ContainerRule) find(doc *goquery.Document) []*goquery.Selection {
	var found []*goquery.Selection
	switch {
	case len(r.Selectors) > 0:
		for _, selector := range r.Selectors {
			matches := doc.Find(selector)
			if matches.Length() > 0 {
				matches.Each(func(_ int, m *goquery.Selection) {
					found = append(found, m)
				})
				return found
			}
		}
	case r.TableRows:
		doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
			rows := table.Find("tr")
			if rows.Length() > 1 {
				rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
					found = append(found, row)
				})
				return false
			}
			return true
		})
	case len(r.Keywords) > 0:
		doc.Find("div").Each(func(_ int, div *goquery.Selection) {
			text := div.Text()
			if utf8.RuneCountInString(text) <= r.MinLength {
				return
			}
			lower := strings.ToLower(text)
			for _, keyword := range r.Keywords {
				if strings.Contains(lower, keyword) {
					found = append(found, div)
					return
				}
			}
		})
	}
	return found
}

// title extracts the container title or "" when none can be found.
func (r TitleRule) title(sel *goquery.Selection) string {
	for _, selector := range r.Selectors {
		match := sel.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		text := textproc.CleanText(match.Text())
		n := utf8.RuneCountInString(text)
		if n > r.MinLength && (r.MaxLength == 0 || n < r.MaxLength) {
			return text
		}
	}
	if r.Attribute != "" {
		if attr, ok := sel.Attr(r.Attribute); ok {
			if text := textproc.CleanText(attr); text != "" {
				return text
			}
		}
	}
	if r.FallbackWords > 0 {
		return textproc.FirstWords(textproc.CleanText(sel.Text()), r.FallbackWords)
	}
	return ""
}

// content extracts the container description, capped at ContentMaxChars.
func (s *Site) content(sel *goquery.Selection) string {
	var text string
	if paragraphs := sel.Find("p"); paragraphs.Length() > 0 {
		parts := paragraphs.Map(func(_ int, p *goquery.Selection) string {
			return strings.TrimSpace(p.Text())
		})
		text = strings.Join(parts, " ")
	} else if match := s.findFirst(sel, s.ContentSelectors); match != nil {
		text = match.Text()
	} else {
		text = sel.Text()
	}
	text, _ = textproc.Truncate(textproc.CleanText(text), ContentMaxChars, "")
	return text
}

func (s *Site) findFirst(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return nil
	}
	match := sel.Find(selector).First()
	if match.Length() == 0 {
		return nil
	}
	return match
}

// link returns the absolute document URL of a container, or "".
func (s *Site) link(sel *goquery.Selection) string {
	if href, ok := sel.Find("a[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return s.resolve(href)
	}
	for _, attr := range s.URLAttrs {
		if value, ok := sel.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return s.resolve(value)
		}
	}
	return ""
}

func (s *Site) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return ref
	}
	target, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return target.String()
}

// date extracts the publication date of a container: date sub-selectors
// first, then any date in the container text.
func (s *Site) date(sel *goquery.Selection) (time.Time, bool) {
	for _, selector := range s.DateSelectors {
		match := sel.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		if t, ok := parseDateText(match.Text()); ok {
			return t, true
		}
	}
	if dates := textproc.ExtractDates(sel.Text()); len(dates) > 0 {
		return dates[0], true
	}
	return time.Time{}, false
}

// parseDateText parses a date field: one of the known formats for the whole
// text, else the first date found inside it.
func parseDateText(text string) (time.Time, bool) {
	text = textproc.CleanText(text)
	if t, ok := textproc.ParseDate(text); ok {
		return t, true
	}
	if dates := textproc.ExtractDates(text); len(dates) > 0 {
		return dates[0], true
	}
	return time.Time{}, false
}

// plainText returns the text of sel without markup, script or style bodies.
func plainText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		if err := html.Render(&b, n); err != nil {
			return textproc.CleanText(sel.Text())
		}
	}
	return textproc.StripHTML(b.String())
}
