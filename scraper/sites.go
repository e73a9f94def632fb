package scraper

import (
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/poiesic/auditel/core"
)

// Source identifiers.
const (
	SourceDOF      = "dof"
	SourceTlaxcala = "tlaxcala"
)

// DOF describes the Diario Oficial de la Federación.
func DOF() Site {
	return Site{
		Name:       SourceDOF,
		Label:      "Diario Oficial de la Federación",
		Source:     "Diario Oficial de la Federación",
		Kind:       "dof",
		DetailKind: "dof_detalle",
		BaseURL:    "https://www.dof.gob.mx",
		SearchURL:  "https://www.dof.gob.mx/busqueda_avanzada.php",
		Params: func(query string, opts SearchOptions) url.Values {
			params := url.Values{}
			params.Set("q", query)
			params.Set("num", strconv.Itoa(opts.maxResults()))
			for _, key := range []string{"fecha_inicio", "fecha_fin"} {
				if v, ok := opts.Filters[key]; ok {
					params.Set(key, v)
				}
			}
			return params
		},
		Containers: []ContainerRule{
			{Selectors: []string{
				"div.resultado-busqueda",
				"div.resultado",
				"div.documento",
				"article.resultado",
				`div[class*="result"]`,
				"li.resultado",
			}},
			{Keywords: []string{"ley", "decreto", "acuerdo", "artículo", "reglamento"}},
		},
		Title: TitleRule{
			Selectors:     []string{"h3", "h4", "h2", ".titulo", "strong", "b"},
			MinLength:     10,
			FallbackWords: 20,
		},
		DateSelectors: []string{".fecha", "time", "span.date", ".fecha-publicacion"},
		Detail: DetailRule{
			Title:   "h1, h2, .titulo-documento",
			Content: ".contenido-documento, article, .documento",
			Date:    ".fecha, time",
		},
	}
}

var gazetteNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)N[úu]mero?\s+(\d+)`),
	regexp.MustCompile(`(?i)No\.\s*(\d+)`),
	regexp.MustCompile(`(?i)Núm\.\s*(\d+)`),
	regexp.MustCompile(`(?i)Tomo\s+[IVXLCDM]+\s+No\.\s*(\d+)`),
}

// GazetteNumber returns the issue number cited in text, or "".
func GazetteNumber(text string) string {
	for _, re := range gazetteNumberPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// Tlaxcala describes the Periódico Oficial del Estado de Tlaxcala.
func Tlaxcala() Site {
	return Site{
		Name:       SourceTlaxcala,
		Label:      "Periódico Oficial del Estado de Tlaxcala",
		Source:     "Periódico Oficial del Estado de Tlaxcala",
		Kind:       "periodico_oficial_local",
		DetailKind: "periodico_oficial_local_detalle",
		BaseURL:    "https://periodico.tlaxcala.gob.mx",
		SearchURL:  "https://periodico.tlaxcala.gob.mx/index.php/buscar",
		Params: func(query string, _ SearchOptions) url.Values {
			params := url.Values{}
			params.Set("buscar", query)
			params.Set("ordenar", "fecha_desc")
			return params
		},
		Containers: []ContainerRule{
			{Selectors: []string{
				"div.resultado",
				"div.documento",
				"tr.resultado",
				`div[class*="result"]`,
				"article",
				".item-resultado",
			}},
			{TableRows: true},
			{Keywords: []string{"decreto", "ley", "reglamento", "acuerdo", "periódico oficial"}, MinLength: 100},
		},
		Title: TitleRule{
			Selectors:     []string{"h3", "h4", "h2", "h1", ".titulo", "strong", "b", "td"},
			MinLength:     10,
			MaxLength:     300,
			Attribute:     "title",
			FallbackWords: 25,
		},
		ContentSelectors: ".contenido, .extracto, .resumen, .descripcion",
		URLAttrs:         []string{"data-url"},
		DateSelectors:    []string{".fecha", "time", "span.date", ".fecha-publicacion", "td.fecha", ".date"},
		Detail: DetailRule{
			Title:   "h1, h2, .titulo-documento, .titulo",
			Content: ".contenido-documento, article, .documento, .texto-completo",
			Date:    ".fecha, time, .fecha-publicacion",
		},
		Metadata: func(sel *goquery.Selection) map[string]any {
			meta := map[string]any{core.MetaState: "Tlaxcala"}
			if number := GazetteNumber(sel.Text()); number != "" {
				meta[core.MetaGazetteNumber] = number
			}
			return meta
		},
	}
}

// Sites returns the built-in site descriptions.
func Sites() []Site {
	return []Site{DOF(), Tlaxcala()}
}
