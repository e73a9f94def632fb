// Package answer renders hybrid search results as a markdown answer.
package answer

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/textproc"
)

const (
	// SuggestionThreshold is the result count under which suggestions are shown.
	SuggestionThreshold = 3

	// maxListed is how many local and web results are rendered.
	maxListed = 4

	summaryChars  = 200
	shownKeywords = 5
	noEntity      = "No especificado"
)

// Request carries the question context shown in the answer.
type Request struct {
	Question string
	Category string
	Entity   string
	// NormativaFields are the citation fields rendered for each local hit.
	NormativaFields []string
}

// Link is an external search suggestion.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NeedsSuggestions reports whether total results are too few to stand alone.
func NeedsSuggestions(total int) bool {
	return total < SuggestionThreshold
}

// SuggestionLinks returns official sources where the question can be searched.
func SuggestionLinks(question, category string) []Link {
	q := url.QueryEscape(question + " " + category + " normativa México")
	return []Link{
		{Name: "Diario Oficial de la Federación", URL: "https://www.dof.gob.mx/busqueda_avanzada.php?q=" + q},
		{Name: "Cámara de Diputados", URL: "http://www.diputados.gob.mx/LeyesBiblio/index.htm"},
		{Name: "Suprema Corte de Justicia", URL: "https://www.scjn.gob.mx/busqueda?search=" + q},
		{Name: "Búsqueda en Google", URL: "https://www.google.com/search?q=" + q},
	}
}

var queryPatterns = []struct {
	name  string
	terms []string
}{
	{"licitacion", []string{"licitación", "convocatoria", "proceso selectivo"}},
	{"contratacion", []string{"contratación", "contrato", "convenio"}},
	{"fiscalizacion", []string{"fiscalización", "control", "verificación"}},
	{"presupuesto", []string{"presupuesto", "ejercicio", "gasto"}},
	{"transparencia", []string{"transparencia", "acceso información", "rendición"}},
}

// DetectPatterns returns the audit topics a question mentions, in a fixed order.
func DetectPatterns(question string) []string {
	lower := strings.ToLower(question)
	found := []string{}
	for _, p := range queryPatterns {
		for _, term := range p.terms {
			if strings.Contains(lower, term) {
				found = append(found, p.name)
				break
			}
		}
	}
	return found
}

// RelevanceLabel grades a local similarity score.
func RelevanceLabel(similarity float64) string {
	switch {
	case similarity > 0.5:
		return "🟢 Alta"
	case similarity > 0.2:
		return "🟡 Media"
	default:
		return "🔴 Baja"
	}
}

// FieldLabel turns a record field name into a title, e.g.
// "normatividad_local" becomes "Normatividad Local".
func FieldLabel(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// Format renders the answer for req from result.
func Format(req Request, result *core.HybridResult) string {
	entity := req.Entity
	if entity == "" {
		entity = noEntity
	}

	var b strings.Builder
	b.WriteString("## 🔍 Análisis Normativo Completo\n\n")
	fmt.Fprintf(&b, "**📊 Tipo de Auditoría:** %s\n", req.Category)
	fmt.Fprintf(&b, "**📋 Tipo de Ente:** %s\n", entity)
	fmt.Fprintf(&b, "**🔎 Consulta:** %s\n", req.Question)
	if patterns := DetectPatterns(req.Question); len(patterns) > 0 {
		fmt.Fprintf(&b, "**🎯 Temas detectados:** %s\n", strings.Join(patterns, ", "))
	}
	b.WriteString("\n---\n")

	if len(result.Local) > 0 {
		fmt.Fprintf(&b, "\n### 📁 Resultados de Base de Datos Local (%d encontrados)\n", len(result.Local))
		for i, hit := range result.Local[:min(maxListed, len(result.Local))] {
			writeLocal(&b, i+1, hit, req.NormativaFields)
		}
	}

	if len(result.Web) > 0 {
		fmt.Fprintf(&b, "\n### 🌐 Resultados de Web Scraping (%d encontrados)\n\n", len(result.Web))
		fmt.Fprintf(&b, "**Fuentes consultadas:** %s\n", strings.Join(result.WebSources, ", "))
		fmt.Fprintf(&b, "**Tiempo de búsqueda:** %.2fs\n", result.WebElapsed.Seconds())
		for i, n := range result.Web[:min(maxListed, len(result.Web))] {
			writeWeb(&b, i+1, n)
		}
	}

	b.WriteString("\n---\n**📈 Estadísticas del Análisis:**\n")
	fmt.Fprintf(&b, "• **Total de normativas encontradas:** %d\n", result.Total)
	fmt.Fprintf(&b, "• **Resultados locales:** %d\n", len(result.Local))
	fmt.Fprintf(&b, "• **Resultados web:** %d\n", len(result.Web))
	fmt.Fprintf(&b, "• **Fuentes web consultadas:** %d\n", len(result.WebSources))

	if NeedsSuggestions(result.Total) {
		b.WriteString("\n### 💡 Sugerencias para mejorar la búsqueda:\n")
		b.WriteString("• Intenta usar términos más específicos o palabras clave técnicas\n")
		b.WriteString("• Verifica que el tipo de auditoría seleccionado sea el correcto\n")
		b.WriteString("• Considera reformular tu pregunta usando lenguaje normativo\n")

		b.WriteString("\n## 🔍 Búsquedas Sugeridas en Internet\n\n")
		b.WriteString("Para información más actualizada, puedes consultar estas fuentes oficiales:\n\n")
		for _, link := range SuggestionLinks(req.Question, req.Category) {
			fmt.Fprintf(&b, "- [%s](%s)\n", link.Name, link.URL)
		}
	}
	return b.String()
}

func writeLocal(b *strings.Builder, i int, hit core.SearchHit, fields []string) {
	record := hit.Record
	if record == nil {
		record = &core.AuditRecord{}
	}
	kind := orDefault(record.Type, "Sin tipo")
	fmt.Fprintf(b, "\n#### %d. %s %s\n\n", i, kind, RelevanceLabel(hit.Similarity))
	fmt.Fprintf(b, "**📝 Descripción:** %s\n\n", orDefault(record.Description, "No disponible"))
	b.WriteString("**⚖️ Normativas aplicables:**\n")
	if len(fields) == 0 {
		fields = record.NormativaFields()
	}
	for _, field := range fields {
		if text := record.Normativas[field]; text != "" {
			fmt.Fprintf(b, "- **%s:** %s\n", FieldLabel(field), text)
		}
	}
	if record.Subcategory != "" {
		fmt.Fprintf(b, "\n**🏷️ Subcategoría:** %s\n", record.Subcategory)
	}
	b.WriteString("\n---\n")
}

func writeWeb(b *strings.Builder, i int, n *core.Normativa) {
	fmt.Fprintf(b, "\n#### %d. %s\n\n", i, orDefault(n.Title, "Sin título"))
	fmt.Fprintf(b, "**📰 Fuente:** %s\n", orDefault(n.Source, "Desconocida"))
	date := "No especificada"
	if n.PublishedAt != nil {
		date = n.PublishedAt.Format("02/01/2006")
	}
	fmt.Fprintf(b, "**📅 Fecha:** %s\n", date)
	fmt.Fprintf(b, "**📝 Contenido:** %s\n\n", textproc.Summarize(n.Content, summaryChars))
	if n.URL != "" {
		fmt.Fprintf(b, "**🔗 URL:** [%s](%s)\n", n.URL, n.URL)
	}
	if len(n.Keywords) > 0 {
		fmt.Fprintf(b, "**🏷️ Keywords:** %s\n", strings.Join(n.Keywords[:min(shownKeywords, len(n.Keywords))], ", "))
	}
	b.WriteString("\n---\n")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
