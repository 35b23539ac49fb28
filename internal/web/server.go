package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vbonduro/foodbot/internal/domain"
	"github.com/vbonduro/foodbot/internal/flex"
	"github.com/vbonduro/foodbot/internal/line"
	"github.com/vbonduro/foodbot/internal/photostore"
	"github.com/vbonduro/foodbot/internal/service"
	"github.com/vbonduro/foodbot/internal/vision"
)

// eventHandler is the subset of service.Bot the webhook needs.
type eventHandler interface {
	HandleEvents(ctx context.Context, events []line.Event)
}

// foodAnalyzer is the subset of service.AnalysisService the food API needs.
type foodAnalyzer interface {
	Process(ctx context.Context, req service.AnalysisRequest) (*service.Report, error)
	Analyze(ctx context.Context, req service.AnalysisRequest) (*vision.AnalysisResult, *flex.FlexMessage)
}

// uploadLookup is the subset of store.UploadStore used to serve and list
// audit photos.
type uploadLookup interface {
	GetByStorageKey(ctx context.Context, key string) (*domain.Upload, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Upload, error)
}

type Options struct {
	// ChannelSecret verifies X-Line-Signature. Empty disables verification.
	ChannelSecret string
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// AdminToken guards the upload listing. Empty leaves it unrouted.
	AdminToken string
}

type Server struct {
	bot        eventHandler
	analysis   foodAnalyzer
	photoStore photostore.PhotoStore
	uploads    uploadLookup
	opts       Options
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer builds the HTTP surface. photoStore and uploads may be nil, in
// which case /photos always answers 404.
func NewServer(bot eventHandler, analysis foodAnalyzer, ps photostore.PhotoStore, uploads uploadLookup, opts Options, logger *slog.Logger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		bot:        bot,
		analysis:   analysis,
		photoStore: ps,
		uploads:    uploads,
		opts:       opts,
		mux:        http.NewServeMux(),
		logger:     logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /webhook", s.handleLineWebhook)
	s.mux.HandleFunc("POST /dialogflow/webhook", s.handleDialogflowWebhook)
	s.mux.HandleFunc("POST /api/food/analyze", s.handleAnalyzeUpload)
	s.mux.HandleFunc("POST /api/food/analyze-line", s.handleAnalyzeLine)
	s.mux.HandleFunc("GET /photos/{key...}", s.handleGetPhoto)
	if s.opts.AdminToken != "" && s.uploads != nil {
		s.mux.HandleFunc("GET /api/uploads/{userId}", s.handleListUploads)
	}
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for addr. The write timeout leaves room
// for a webhook delivery that waits on the vision model.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write json response failed", "error", err)
	}
}
