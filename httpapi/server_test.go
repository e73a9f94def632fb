package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/auditel"
	"github.com/poiesic/auditel/config"
	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/scraper"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubScraper struct {
	name    string
	results []*core.Normativa
}

func (s *stubScraper) Name() string  { return s.name }
func (s *stubScraper) Label() string { return strings.ToUpper(s.name) }

func (s *stubScraper) Search(ctx context.Context, query string, opts scraper.SearchOptions) ([]*core.Normativa, error) {
	out := []*core.Normativa{}
	for _, n := range s.results {
		if len(out) == opts.MaxResults {
			break
		}
		clone := *n
		out = append(out, &clone)
	}
	return out, nil
}

func (s *stubScraper) FetchDetail(ctx context.Context, url string) (*core.Normativa, error) {
	if strings.Contains(url, "broken") {
		return nil, errors.New("fetch failed")
	}
	return &core.Normativa{Title: "Detalle", URL: url, Source: s.name}, nil
}

func (s *stubScraper) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *auditel.Service) {
	t.Helper()
	dof := &stubScraper{name: "dof"}
	for _, title := range []string{"Ley de Obras Públicas", "Reglamento", "Acuerdo", "Aviso"} {
		dof.results = append(dof.results, &core.Normativa{Title: title, Content: title + " obra", Source: "dof"})
	}
	cfg := config.NewConfig(config.WithDataDir("../data"), config.WithCacheDir(t.TempDir()))
	svc, err := auditel.NewService(auditel.WithConfig(cfg), auditel.WithScrapers(dof))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	srv, err := NewServer(svc)
	require.NoError(t, err)
	return srv, svc
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sessionCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == DefaultCookieName {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestNewServer_RequiresService(t *testing.T) {
	srv, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrServiceRequired)
	assert.Nil(t, srv)
}

func TestAsk(t *testing.T) {
	srv, svc := newTestServer(t)
	h := srv.Handler()

	form := url.Values{
		"question":  {"volumenes de obra pagados no ejecutados"},
		"auditoria": {"Obra Pública"},
	}
	rec := postForm(t, h, "/ask", form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Answer, "**📋 Tipo de Ente:** No especificado")
	assert.True(t, strings.HasSuffix(resp.Elapsed, "s"))
	assert.Equal(t, 3, resp.Stats.Web)
	assert.Equal(t, []string{"dof"}, resp.Stats.WebSources)
	assert.Equal(t, resp.Stats.Local+resp.Stats.Web, resp.Stats.Total)

	cookie := sessionCookieOf(t, rec)
	assert.Len(t, svc.History(cookie.Value), 1)

	form.Set("usar_web_scraping", "false")
	rec = postForm(t, h, "/ask", form, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Stats.Web)
	assert.Empty(t, rec.Result().Cookies(), "existing session is reused")
	assert.Len(t, svc.History(cookie.Value), 2)

	rec = postForm(t, h, "/clear", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Empty(t, svc.History(cookie.Value))
}

func TestAsk_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "short question and bad category",
			form: url.Values{"question": {"ab"}, "auditoria": {"Laboral"}},
			want: "Pregunta demasiado corta (mínimo 3 caracteres); Tipo de auditoría inválido",
		},
		{
			name: "long question",
			form: url.Values{"question": {strings.Repeat("a", 2001)}, "auditoria": {"Financiera"}},
			want: "Pregunta demasiado larga (máximo 2000 caracteres)",
		},
		{
			name: "long entity",
			form: url.Values{"question": {"presupuesto"}, "auditoria": {"Financiera"}, "ente": {strings.Repeat("e", 101)}},
			want: "Tipo de ente demasiado largo (máximo 100 caracteres)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, h, "/ask", tt.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["message"])
		})
	}
}

func TestHealthAndCache(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, auditel.Version, body["version"])
	assert.Len(t, body["databases_loaded"], 2)
	assert.Len(t, body["scrapers_disponibles"], 1)
	assert.Contains(t, body, "cache_stats")
	assert.Contains(t, body, "timestamp")

	rec = postForm(t, h, "/scraping/test", url.Values{"query": {"obra"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "file", body["backend"])
	assert.EqualValues(t, 1, body["total"])

	rec = postForm(t, h, "/cache/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["eliminados"])

	rec = postForm(t, h, "/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Caché limpiado", decode(t, rec)["message"])
	assert.EqualValues(t, 0, decode(t, get(t, h, "/cache/stats"))["total"])
}

func TestHealth_DegradedWithoutRecords(t *testing.T) {
	cfg := config.NewConfig(config.WithDataDir(t.TempDir()), config.WithCacheDir(t.TempDir()))
	svc, err := auditel.NewService(auditel.WithConfig(cfg), auditel.WithScrapers(&stubScraper{name: "dof"}))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	srv, err := NewServer(svc)
	require.NoError(t, err)

	rec := get(t, srv.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	index := body["index"].(map[string]any)
	assert.Equal(t, false, index["initialized"])
}

func TestScrapingTest(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	t.Run("all sources with defaults", func(t *testing.T) {
		rec := postForm(t, h, "/scraping/test", url.Values{})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, auditel.DefaultScrapeQuery, body["query"])
		assert.EqualValues(t, 2, body["resultados"])
		assert.Equal(t, []any{"dof"}, body["fuentes"])
		assert.Len(t, body["datos"], 2)
	})

	t.Run("single source", func(t *testing.T) {
		rec := postForm(t, h, "/scraping/test", url.Values{"query": {"ley"}, "fuente": {"dof"}})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "dof", body["fuente"])
		assert.EqualValues(t, 3, body["resultados"])
	})

	t.Run("unknown source", func(t *testing.T) {
		rec := postForm(t, h, "/scraping/test", url.Values{"fuente": {"boe"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Fuente desconocida: boe", decode(t, rec)["message"])
	})
}

func TestDetail(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := get(t, h, "/normativa/detail?fuente=dof&url="+url.QueryEscape("https://www.dof.gob.mx/nota"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	normativa := body["normativa"].(map[string]any)
	assert.Equal(t, "https://www.dof.gob.mx/nota", normativa["url"])

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/normativa/detail?fuente=dof").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/normativa/detail?fuente=boe&url=x").Code)
	assert.Equal(t, http.StatusBadGateway, get(t, h, "/normativa/detail?fuente=dof&url=broken").Code)
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv.Handler(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Endpoint no encontrado", body["message"])
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
