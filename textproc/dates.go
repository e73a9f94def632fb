package textproc

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpanishMonths maps lowercase Spanish month names to months.
var SpanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

var (
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	spanishDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})\b`)
)

// ParseDate parses a date string using the known formats in order:
// DD/MM/YYYY, DD-MM-YYYY, YYYY-MM-DD, "DD de <mes> de YYYY" and DD/MM/YY.
// The whole trimmed string must match one format.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2/1/2006", "2-1-2006", "2006-01-02", "2006-1-2"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	if m := spanishDatePattern.FindStringSubmatch(text); m != nil && len(m[0]) == len(text) {
		return spanishDate(m)
	}
	if t, err := time.Parse("2/1/06", text); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ExtractDates returns every valid date in text: numeric DD/MM/YYYY and
// DD-MM-YYYY forms first, then "DD de <mes> de YYYY" forms.
func ExtractDates(text string) []time.Time {
	dates := []time.Time{}
	for _, m := range numericDatePattern.FindAllStringSubmatch(text, -1) {
		if t, ok := dateOf(m[3], m[2], m[1]); ok {
			dates = append(dates, t)
		}
	}
	for _, m := range spanishDatePattern.FindAllStringSubmatch(text, -1) {
		if t, ok := spanishDate(m); ok {
			dates = append(dates, t)
		}
	}
	return dates
}

func spanishDate(m []string) (time.Time, bool) {
	month, ok := SpanishMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	return dateOf(m[3], strconv.Itoa(int(month)), m[1])
}

// dateOf builds a UTC date and rejects out-of-range components.
func dateOf(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return t, true
}
