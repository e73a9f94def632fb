package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/auditel/core"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const dofResults = `<html><body>
<div class="resultado-busqueda">
  <h3>DECRETO por el que se reforma la Ley de Obras Públicas</h3>
  <span class="fecha">15/03/2024</span>
  <p>Se reforman los artículos 27 y 41 de la Ley de Obras Públicas y Servicios Relacionados con las Mismas.</p>
  <a href="/nota_detalle.php?codigo=123">Ver</a>
</div>
<div class="resultado-busqueda">
  <h3>corto</h3>
  <p>Acuerdo sobre presupuesto publicado el 2 de febrero de 2023 en el diario.</p>
  <a href="https://otro.gob.mx/doc">Ver</a>
</div>
</body></html>`

// serve answers every request with body and records the last query string.
func serve(t *testing.T, body string) (*httptest.Server, *string) {
	t.Helper()
	var lastQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &lastQuery
}

func localSite(site Site, server *httptest.Server) Site {
	site.BaseURL = server.URL
	site.SearchURL = server.URL + "/buscar"
	return site
}

func newTestScraper(t *testing.T, site Site) *GazetteScraper {
	t.Helper()
	s, err := NewGazetteScraper(site, WithFetcher(newTestFetcher(1)), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewGazetteScraper_Validation(t *testing.T) {
	_, err := NewGazetteScraper(Site{})
	assert.Error(t, err)

	_, err = NewGazetteScraper(DOF(), WithFetcher(nil))
	assert.Error(t, err)
}

func TestDOFSearch(t *testing.T) {
	server, query := serve(t, dofResults)
	s := newTestScraper(t, localSite(DOF(), server))

	results, err := s.Search(context.Background(), "obras públicas", SearchOptions{
		MaxResults: 5,
		Filters:    map[string]string{"fecha_inicio": "01/01/2024", "ignored": "x"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Contains(t, *query, "q=obras+p%C3%BAblicas")
	assert.Contains(t, *query, "num=5")
	assert.Contains(t, *query, "fecha_inicio=01%2F01%2F2024")
	assert.NotContains(t, *query, "ignored")

	first := results[0]
	assert.Equal(t, "DECRETO por el que se reforma la Ley de Obras Públicas", first.Title)
	assert.Contains(t, first.Content, "artículos 27 y 41")
	assert.Equal(t, server.URL+"/nota_detalle.php?codigo=123", first.URL)
	assert.Equal(t, "dof", first.Kind)
	assert.Equal(t, "Diario Oficial de la Federación", first.Source)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *first.PublishedAt)
	assert.Equal(t, fixedNow, first.ScrapedAt)
	assert.NotEmpty(t, first.Keywords)
	assert.LessOrEqual(t, len(first.Keywords), SearchKeywords)
	refs := first.LegalReferences()
	require.NotEmpty(t, refs)
	assert.True(t, strings.HasPrefix(refs[0], "Ley de Obras Públicas"))
	assert.Equal(t, server.URL, first.Metadata[core.MetaSourceURL])

	// "corto" is too short, so the title falls back to the leading words.
	second := results[1]
	assert.True(t, strings.HasPrefix(second.Title, "corto Acuerdo sobre presupuesto"))
	assert.Equal(t, "https://otro.gob.mx/doc", second.URL)
	require.NotNil(t, second.PublishedAt)
	assert.Equal(t, time.Date(2023, 2, 2, 0, 0, 0, 0, time.UTC), *second.PublishedAt)
}

func TestSearch_RespectsMaxResults(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, `<div class="resultado"><h3>Acuerdo administrativo número %d</h3><p>texto</p></div>`, i)
	}
	b.WriteString("</body></html>")

	server, _ := serve(t, b.String())
	s := newTestScraper(t, localSite(DOF(), server))

	results, err := s.Search(context.Background(), "acuerdo", SearchOptions{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "Acuerdo administrativo número 0", results[0].Title)
}

func TestDOFSearch_KeywordFallback(t *testing.T) {
	server, _ := serve(t, `<html><body>
<div><span>Reglamento de la Ley de Adquisiciones vigente</span></div>
</body></html>`)
	s := newTestScraper(t, localSite(DOF(), server))

	results, err := s.Search(context.Background(), "reglamento", SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Reglamento de la Ley de Adquisiciones vigente", results[0].Title)
}

func TestSearch_NoContainers(t *testing.T) {
	server, _ := serve(t, `<html><body><span>nada</span></body></html>`)
	s := newTestScraper(t, localSite(DOF(), server))

	results, err := s.Search(context.Background(), "x", SearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_FetchFailureYieldsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	s := newTestScraper(t, localSite(DOF(), server))

	results, err := s.Search(context.Background(), "ley", SearchOptions{MaxResults: 3})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_CancelledContext(t *testing.T) {
	server, _ := serve(t, dofResults)
	s := newTestScraper(t, localSite(DOF(), server))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Search(ctx, "ley", SearchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTlaxcalaSearch_Containers(t *testing.T) {
	server, query := serve(t, `<html><body>
<article data-url="/docs/77.pdf">
  <h2>Decreto número 45 que reforma la Ley Municipal</h2>
  <div class="extracto">Periódico Oficial No. 12 Extraordinario</div>
  <span class="date">2024-01-20</span>
</article>
</body></html>`)
	s := newTestScraper(t, localSite(Tlaxcala(), server))

	results, err := s.Search(context.Background(), "ley municipal", SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Contains(t, *query, "buscar=ley+municipal")
	assert.Contains(t, *query, "ordenar=fecha_desc")

	n := results[0]
	assert.Equal(t, "Decreto número 45 que reforma la Ley Municipal", n.Title)
	assert.Equal(t, "Periódico Oficial No. 12 Extraordinario", n.Content)
	assert.Equal(t, server.URL+"/docs/77.pdf", n.URL)
	assert.Equal(t, "periodico_oficial_local", n.Kind)
	assert.Equal(t, "Tlaxcala", n.Metadata[core.MetaState])
	assert.Equal(t, "45", n.Metadata[core.MetaGazetteNumber])
	require.NotNil(t, n.PublishedAt)
	assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), *n.PublishedAt)
}

func TestTlaxcalaSearch_TableFallback(t *testing.T) {
	server, _ := serve(t, `<html><body>
<table>
  <tr><th>Título</th><th>Fecha</th></tr>
  <tr><td><a href="/p/1">Acuerdo del Consejo Estatal de Armonización</a></td><td class="fecha">10/02/2024</td></tr>
  <tr title="Reglamento interior de la Contraloría"><td>abc</td><td>sin fecha</td></tr>
</table>
</body></html>`)
	s := newTestScraper(t, localSite(Tlaxcala(), server))

	results, err := s.Search(context.Background(), "acuerdo", SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Acuerdo del Consejo Estatal de Armonización", results[0].Title)
	assert.Equal(t, server.URL+"/p/1", results[0].URL)
	require.NotNil(t, results[0].PublishedAt)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), *results[0].PublishedAt)

	assert.Equal(t, "Reglamento interior de la Contraloría", results[1].Title)
	assert.Empty(t, results[1].URL)
	assert.Nil(t, results[1].PublishedAt)
}

func TestTlaxcalaSearch_LegalBlockFallback(t *testing.T) {
	long := strings.Repeat("texto del periódico oficial ", 5)
	server, _ := serve(t, `<html><body>
<div>decreto breve</div>
<div>`+long+`</div>
</body></html>`)
	s := newTestScraper(t, localSite(Tlaxcala(), server))

	results, err := s.Search(context.Background(), "decreto", SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, strings.TrimSpace(long), results[0].Content)
}

func TestTitleRule_MaxLength(t *testing.T) {
	rule := Tlaxcala().Title
	long := strings.Repeat("a", 300)

	doc := mustDoc(t, `<div><h3>`+long+`</h3><b>Título aceptable del acuerdo</b></div>`)
	assert.Equal(t, "Título aceptable del acuerdo", rule.title(doc.Find("div").First()))
}

func TestGazetteNumber(t *testing.T) {
	tests := map[string]string{
		"Periódico Oficial Número 34":          "34",
		"Publicado en el No. 7 Extraordinario": "7",
		"Núm. 15":                              "15",
		"Tomo XCVIII No.3":                     "3",
		"sin número aquí":                      "",
	}
	for text, want := range tests {
		assert.Equal(t, want, GazetteNumber(text), text)
	}
}

func TestFetchDetail(t *testing.T) {
	body := `<html><body>
<h1>Ley de Fiscalización Superior del Estado</h1>
<span class="fecha">3 de enero de 2024</span>
<div class="contenido-documento"><p>Artículo 1.</p><p>` + strings.Repeat("fiscalización superior ", 400) + `</p></div>
<script>var x = 1;</script>
</body></html>`
	server, _ := serve(t, body)
	s := newTestScraper(t, localSite(DOF(), server))

	n, err := s.FetchDetail(context.Background(), server.URL+"/doc")
	require.NoError(t, err)
	assert.Equal(t, "Ley de Fiscalización Superior del Estado", n.Title)
	assert.Equal(t, "dof_detalle", n.Kind)
	assert.Equal(t, server.URL+"/doc", n.URL)
	assert.Equal(t, DetailContentMaxChars, len([]rune(n.Content)))
	assert.True(t, strings.HasPrefix(n.Content, "Artículo 1. fiscalización"))
	assert.Equal(t, true, n.Metadata[core.MetaTruncated])
	assert.LessOrEqual(t, len(n.Keywords), DetailKeywords)
	require.NotNil(t, n.PublishedAt)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), *n.PublishedAt)
}

func TestFetchDetail_Defaults(t *testing.T) {
	server, _ := serve(t, `<html><body><span>Texto libre de la Ley Orgánica</span></body></html>`)
	s := newTestScraper(t, localSite(Tlaxcala(), server))

	n, err := s.FetchDetail(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Sin título", n.Title)
	assert.Equal(t, "Texto libre de la Ley Orgánica", n.Content)
	assert.Equal(t, false, n.Metadata[core.MetaTruncated])
	assert.Equal(t, "Tlaxcala", n.Metadata[core.MetaState])
	assert.Equal(t, "periodico_oficial_local_detalle", n.Kind)
}

func TestFetchDetail_DropsMarkup(t *testing.T) {
	server, _ := serve(t, `<html><head><style>span{color:red}</style></head><body>
<span>Ley de <b>Obras</b> P&uacute;blicas</span><script>var total = 1;</script><div>Artículo 2</div>
</body></html>`)
	s := newTestScraper(t, localSite(Tlaxcala(), server))

	n, err := s.FetchDetail(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Ley de Obras Públicas Artículo 2", n.Content)
}

func TestFetchDetail_Errors(t *testing.T) {
	s := newTestScraper(t, DOF())
	_, err := s.FetchDetail(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyURL)

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	_, err = s.FetchDetail(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFetchFailed)
}
