package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/config"
	"github.com/kjannette/pricegraph/internal/pricegraph"
)

const (
	maxQueryLimit  = 100
	recentOnIndex  = 10
	defaultHistory = 20
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// fieldOptions are the checkboxes offered on the form, per provider. The
// provider's table decides what is actually plottable.
var fieldOptions = map[string][]string{
	config.ProviderQuandl: {"open", "high", "low", "close", "adj_open", "adj_high", "adj_low", "adj_close"},
	config.ProviderAlpaca: {"open", "high", "low", "close", "vwap"},
}

type Server struct {
	svc        *pricegraph.Service
	appName    string
	fields     []string
	limiter    *ipLimiter
	handler    http.Handler
	httpServer *http.Server
}

func NewServer(svc *pricegraph.Service, cfg *config.Config) *Server {
	s := &Server{
		svc:     svc,
		appName: cfg.AppName,
		fields:  fieldOptions[cfg.Provider],
		limiter: newIPLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	if s.fields == nil {
		s.fields = fieldOptions[config.ProviderQuandl]
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /index", s.handleIndex)
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("GET /pricegraph", s.handleIndex)
	mux.Handle("POST /pricegraph", s.limiter.middleware(http.HandlerFunc(s.handlePriceGraph)))

	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = recoverMiddleware(requestLogMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Upstream fetch plus retries must fit inside one write.
		WriteTimeout: time.Duration(cfg.UpstreamTimeoutSeconds*(cfg.UpstreamRetries+1)+10) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Start() error {
	log.Info().
		Str("addr", s.httpServer.Addr).
		Str("provider", s.svc.Provider()).
		Str("history", s.svc.HistoryBackend()).
		Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
