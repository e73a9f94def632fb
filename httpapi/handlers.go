package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/auditel"
	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/scraper"
	"github.com/poiesic/auditel/textproc"
)

const (
	// MaxEntityLength bounds the free-text entity field.
	MaxEntityLength = 100

	scrapeAllMax    = 2
	scrapeSourceMax = 3
	allSources      = "all"
)

// AskStats summarises the results behind an answer.
type AskStats struct {
	Total      int      `json:"total"`
	Local      int      `json:"locales"`
	Web        int      `json:"web"`
	WebSources []string `json:"fuentes_web"`
}

// AskResponse is the body of a successful /ask.
type AskResponse struct {
	Success bool     `json:"success"`
	Answer  string   `json:"answer"`
	Elapsed string   `json:"tiempo_procesamiento"`
	Stats   AskStats `json:"estadisticas"`
}

// validateAsk returns every problem with the form, joined for display.
func (s *Server) validateAsk(question, category, entity string) string {
	cfg := s.svc.Config()
	var problems []string
	if err := core.ValidateQuestion(textproc.CleanText(question), cfg.MinQuestionLength, cfg.MaxQuestionLength); err != nil {
		if errors.Is(err, core.ErrQuestionTooLong) {
			problems = append(problems, fmt.Sprintf("Pregunta demasiado larga (máximo %d caracteres)", cfg.MaxQuestionLength))
		} else {
			problems = append(problems, fmt.Sprintf("Pregunta demasiado corta (mínimo %d caracteres)", cfg.MinQuestionLength))
		}
	}
	if err := core.ValidateCategory(category, cfg.CategoryNames()); err != nil {
		problems = append(problems, "Tipo de auditoría inválido")
	}
	if utf8.RuneCountInString(strings.TrimSpace(entity)) > MaxEntityLength {
		problems = append(problems, fmt.Sprintf("Tipo de ente demasiado largo (máximo %d caracteres)", MaxEntityLength))
	}
	return strings.Join(problems, "; ")
}

func (s *Server) ask(c *gin.Context) {
	start := time.Now()
	question := c.PostForm("question")
	category := c.PostForm("auditoria")
	entity := c.PostForm("ente")

	if msg := s.validateAsk(question, category, entity); msg != "" {
		RespondError(c, http.StatusBadRequest, msg)
		return
	}
	useWeb := strings.ToLower(c.DefaultPostForm("usar_web_scraping", "true")) == "true"

	ans, err := s.svc.HybridSearch(c.Request.Context(), auditel.Question{
		SessionID: sessionID(c),
		Text:      question,
		Category:  category,
		Entity:    entity,
		UseWeb:    &useWeb,
	})
	if err != nil {
		s.logger.Error("error answering question", "err", err)
		if errors.Is(err, auditel.ErrServiceClosed) {
			RespondError(c, http.StatusServiceUnavailable, "Servicio no disponible")
			return
		}
		RespondError(c, http.StatusInternalServerError, "Error procesando consulta")
		return
	}

	result := ans.Result
	RespondOK(c, AskResponse{
		Success: true,
		Answer:  ans.Text,
		Elapsed: fmt.Sprintf("%.2fs", time.Since(start).Seconds()),
		Stats: AskStats{
			Total:      result.Total,
			Local:      len(result.Local),
			Web:        len(result.Web),
			WebSources: result.WebSources,
		},
	})
}

func (s *Server) clear(c *gin.Context) {
	s.svc.ClearSession(sessionID(c))
	RespondOK(c, gin.H{"success": true, "message": "Nueva sesión iniciada"})
}

func (s *Server) health(c *gin.Context) {
	RespondOK(c, s.svc.Health())
}

func (s *Server) cacheStats(c *gin.Context) {
	RespondOK(c, s.svc.CacheStats())
}

func (s *Server) clearCache(c *gin.Context) {
	if err := s.svc.ClearCache(); err != nil {
		RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	RespondOK(c, gin.H{"success": true, "message": "Caché limpiado"})
}

func (s *Server) purgeCache(c *gin.Context) {
	removed, err := s.svc.PurgeCache()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	RespondOK(c, gin.H{"success": true, "eliminados": removed})
}

func (s *Server) scrapingTest(c *gin.Context) {
	query := c.DefaultPostForm("query", auditel.DefaultScrapeQuery)
	source := c.DefaultPostForm("fuente", allSources)
	ctx := c.Request.Context()

	if source == allSources {
		bundle, err := s.svc.Scrape(ctx, query, "", scrapeAllMax)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		RespondOK(c, gin.H{
			"success":    true,
			"query":      bundle.Query,
			"resultados": bundle.Total,
			"fuentes":    bundle.SourcesConsulted,
			"tiempo":     bundle.Elapsed.Seconds(),
			"datos":      bundle.Normativas,
		})
		return
	}

	results, err := s.svc.ScrapeSource(ctx, source, query, scrapeSourceMax)
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownSource) {
			RespondError(c, http.StatusBadRequest, "Fuente desconocida: "+source)
			return
		}
		RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	RespondOK(c, gin.H{
		"success":    true,
		"query":      query,
		"fuente":     source,
		"resultados": len(results),
		"datos":      results,
	})
}

func (s *Server) detail(c *gin.Context) {
	source := c.Query("fuente")
	url := c.Query("url")
	if source == "" || url == "" {
		RespondError(c, http.StatusBadRequest, "Se requieren los parámetros fuente y url")
		return
	}

	n, err := s.svc.FetchDetail(c.Request.Context(), source, url)
	switch {
	case errors.Is(err, scraper.ErrUnknownSource):
		RespondError(c, http.StatusBadRequest, "Fuente desconocida: "+source)
	case err != nil:
		RespondError(c, http.StatusBadGateway, "No se pudo obtener el documento")
	default:
		RespondOK(c, gin.H{"success": true, "normativa": n})
	}
}
