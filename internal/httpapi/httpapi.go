// Package httpapi exposes the search cycle engine over HTTP with gin: a
// POST /search endpoint that runs one cycle per request, a GET /healthz
// liveness probe, and a GET /metrics route serving the Prometheus text
// exposition produced by internal/telemetry. Request defaulting is shared
// with the gRPC front end through internal/serve.SearchExecutor.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cyclegrep/cyclegrep/internal/engine"
	"github.com/cyclegrep/cyclegrep/internal/serve"
	"github.com/cyclegrep/cyclegrep/internal/telemetry"
)

// ErrorResponse is the JSON body returned for any non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the JSON body returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// SearchRequest is the JSON body accepted by POST /search. Fields left
// zero fall back to the server's default configuration.
type SearchRequest struct {
	Symbol        string          `json:"symbol" binding:"required"`
	Language      string          `json:"language"`
	Root          string          `json:"root"`
	TimeoutS      int             `json:"timeout_s"`
	MaxMatches    int             `json:"max_matches"`
	Concurrency   int             `json:"concurrency"`
	EnableIndex   *bool           `json:"enable_index"`
	EnableRga     *bool           `json:"enable_rga"`
	IndexDir      string          `json:"index_dir"`
	CacheDir      string          `json:"cache_dir"`
	LogDir        string          `json:"log_dir"`
	ContextBefore int             `json:"context_before"`
	ContextAfter  int             `json:"context_after"`
	Body          bool            `json:"body"`
	ToolFlags     map[string]bool `json:"tool_flags"`
}

// SearchResponse wraps the engine's summary for one cycle.
type SearchResponse struct {
	Summary *engine.SearchSummary `json:"summary"`
}

// Handlers wraps the shared SearchExecutor with gin bindings.
type Handlers struct {
	executor *serve.SearchExecutor
}

// NewHandlers builds handlers bound to executor.
func NewHandlers(executor *serve.SearchExecutor) *Handlers {
	return &Handlers{executor: executor}
}

// Register mounts the service's routes onto router.
func (h *Handlers) Register(router gin.IRouter) {
	router.POST("/search", h.HandleSearch)
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", h.HandleMetrics)
}

// HandleSearch handles POST /search: translate the body into a
// serve.SearchInput, run one cycle, and return its summary.
func (h *Handlers) HandleSearch(c *gin.Context) {
	var body SearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	summary, err := h.executor.Execute(c.Request.Context(), serve.SearchInput{
		Symbol:        body.Symbol,
		Language:      body.Language,
		Root:          body.Root,
		TimeoutS:      body.TimeoutS,
		MaxMatches:    body.MaxMatches,
		Concurrency:   body.Concurrency,
		EnableIndex:   body.EnableIndex,
		EnableRga:     body.EnableRga,
		IndexDir:      body.IndexDir,
		CacheDir:      body.CacheDir,
		LogDir:        body.LogDir,
		ContextBefore: body.ContextBefore,
		ContextAfter:  body.ContextAfter,
		Body:          body.Body,
		ToolFlags:     body.ToolFlags,
	})
	if err != nil {
		if strings.Contains(err.Error(), "symbol is required") {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Summary: summary})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleMetrics handles GET /metrics, rendering the Prometheus text
// exposition format.
func (h *Handlers) HandleMetrics(c *gin.Context) {
	text, err := telemetry.ExportPrometheus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	c.String(http.StatusOK, text)
}
