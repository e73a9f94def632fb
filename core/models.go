package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns a deterministic hex digest of text using BLAKE2b-128.
// Identical text always produces the identical digest.
func ContentHash(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// AuditRecord is one audit irregularity finding loaded from a category file.
// Records are immutable after loading.
type AuditRecord struct {
	Type             string
	Description      string
	Category         string
	Subcategory      string
	PromotedAction   string
	IrregularActions []string
	SupportingDocs   []string
	// Normativas holds every citation field of the source record, keyed by
	// its original field name (any field mentioning "normatividad" or "normativa").
	Normativas map[string]string
}

type auditRecordJSON struct {
	Type             string   `json:"tipo"`
	Description      string   `json:"descripcion_irregularidad"`
	Category         string   `json:"categoria"`
	Subcategory      string   `json:"subcategoria"`
	PromotedAction   string   `json:"accion_promovida"`
	IrregularActions []string `json:"acciones_irregularidad"`
	SupportingDocs   []string `json:"documentacion_soporte"`
}

// IsNormativaField reports whether a record field name carries a legal citation.
func IsNormativaField(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "normatividad") || strings.Contains(lower, "normativa")
}

// UnmarshalJSON decodes a record, collecting every citation field into Normativas.
// Scalar and list shapes are both accepted for text fields.
func (r *AuditRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Type = flexString(raw["tipo"])
	r.Description = flexString(raw["descripcion_irregularidad"])
	r.Category = flexString(raw["categoria"])
	r.Subcategory = flexString(raw["subcategoria"])
	r.PromotedAction = flexString(raw["accion_promovida"])
	r.IrregularActions = flexStrings(raw["acciones_irregularidad"])
	r.SupportingDocs = flexStrings(raw["documentacion_soporte"])

	r.Normativas = make(map[string]string)
	for key, value := range raw {
		if !IsNormativaField(key) {
			continue
		}
		if text := flexString(value); text != "" {
			r.Normativas[key] = text
		}
	}
	return nil
}

// MarshalJSON writes the record back using its source field names.
func (r *AuditRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 7+len(r.Normativas))
	base := auditRecordJSON{
		Type:             r.Type,
		Description:      r.Description,
		Category:         r.Category,
		Subcategory:      r.Subcategory,
		PromotedAction:   r.PromotedAction,
		IrregularActions: r.IrregularActions,
		SupportingDocs:   r.SupportingDocs,
	}
	encoded, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	for k, v := range r.Normativas {
		out[k] = v
	}
	return json.Marshal(out)
}

// NormativaFields returns the record's citation field names in sorted order.
func (r *AuditRecord) NormativaFields() []string {
	return slices.Sorted(maps.Keys(r.Normativas))
}

func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if list := flexStrings(raw); len(list) > 0 {
		return strings.Join(list, "; ")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func flexStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		text := strings.TrimSpace(fmt.Sprint(item))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// CategoryRecords groups the records loaded for a single category.
type CategoryRecords struct {
	Category string
	Records  []*AuditRecord
}

// SearchHit is a local record matched by a query.
type SearchHit struct {
	Record     *AuditRecord `json:"record"`
	Similarity float64      `json:"similarity"`
	Category   string       `json:"category"`
	Index      int          `json:"index"` // position in the search corpus
}

// Metadata keys used on Normativa.Metadata.
const (
	MetaLegalReferences = "legal_references"
	MetaSourceURL       = "source_url"
	MetaState           = "estado"
	MetaGazetteNumber   = "numero_periodico"
	MetaTruncated       = "truncated"
)

// Normativa is a regulation document discovered by a scraper.
type Normativa struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	URL         string         `json:"url,omitempty"`
	Kind        string         `json:"kind"`
	Source      string         `json:"source"`
	Keywords    []string       `json:"keywords,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Relevance   float64        `json:"relevance"`
	ScrapedAt   time.Time      `json:"scraped_at"`
}

// LegalReferences returns the legal citations stored in the metadata.
// Both freshly scraped and cache-decoded shapes are handled.
func (n *Normativa) LegalReferences() []string {
	if n == nil || n.Metadata == nil {
		return nil
	}
	switch refs := n.Metadata[MetaLegalReferences].(type) {
	case []string:
		return refs
	case []any:
		out := make([]string, 0, len(refs))
		for _, ref := range refs {
			if s, ok := ref.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ResultBundle is the merged outcome of a multi-source web search.
type ResultBundle struct {
	Query            string        `json:"query"`
	Normativas       []*Normativa  `json:"normativas"`
	Total            int           `json:"total"`
	SourcesConsulted []string      `json:"sources_consulted"`
	SourceCount      int           `json:"source_count"`
	Elapsed          time.Duration `json:"elapsed"`
	FromCache        bool          `json:"from_cache"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Limit truncates the bundle to the first n normativas.
func (b *ResultBundle) Limit(n int) {
	if n >= 0 && len(b.Normativas) > n {
		b.Normativas = b.Normativas[:n]
	}
	b.Total = len(b.Normativas)
}

// HybridResult combines local record hits with web normativas for one question.
type HybridResult struct {
	Query      string        `json:"query"`
	Category   string        `json:"category"`
	Local      []SearchHit   `json:"local"`
	Web        []*Normativa  `json:"web"`
	WebSources []string      `json:"web_sources"`
	WebElapsed time.Duration `json:"web_elapsed"`
	Total      int           `json:"total"`
	Timestamp  time.Time     `json:"timestamp"`
}
