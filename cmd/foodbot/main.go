package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vbonduro/foodbot/internal/config"
	"github.com/vbonduro/foodbot/internal/db"
	"github.com/vbonduro/foodbot/internal/dialogflow"
	"github.com/vbonduro/foodbot/internal/line"
	"github.com/vbonduro/foodbot/internal/logging"
	"github.com/vbonduro/foodbot/internal/metrics"
	"github.com/vbonduro/foodbot/internal/photostore"
	"github.com/vbonduro/foodbot/internal/photostore/local"
	"github.com/vbonduro/foodbot/internal/photostore/s3store"
	"github.com/vbonduro/foodbot/internal/service"
	"github.com/vbonduro/foodbot/internal/store"
	"github.com/vbonduro/foodbot/internal/vision"
	claudevision "github.com/vbonduro/foodbot/internal/vision/claude"
	ollamavision "github.com/vbonduro/foodbot/internal/vision/ollama"
	openaivision "github.com/vbonduro/foodbot/internal/vision/openai"
	"github.com/vbonduro/foodbot/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if cfg.LineChannelToken == "" {
		logger.Warn("LINE_CHANNEL_ACCESS_TOKEN is not set; replies will be rejected")
	}
	if cfg.LineChannelSecret == "" {
		logger.Warn("LINE_CHANNEL_SECRET is not set; webhook signatures are not verified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	photoStg, err := newPhotoStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize photo store", "error", err)
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipeline(reg)

	lineClient := line.NewClient(cfg.LineChannelToken, cfg.LineAPIEndpoint, cfg.LineDataEndpoint, cfg.HTTPTimeout, logger)
	analyzer := vision.NewSafeAnalyzer(newVisionAnalyzer(cfg, logger), logger)
	uploads := store.NewUploadStore(database)

	analysis := service.NewAnalysisService(
		lineClient,
		lineClient,
		analyzer,
		photoStg,
		uploads,
		pipelineMetrics,
		service.AnalysisOptions{PublicBaseURL: cfg.PublicBaseURL, AuditTimeout: cfg.AuditTimeout},
		logger,
	)

	var bot *service.Bot
	if cfg.DialogflowAgentID != "" {
		logger.Info("forwarding free text to dialogflow", "agent", cfg.DialogflowAgentID)
		forwarder := dialogflow.NewForwarder(cfg.DialogflowBaseURL, cfg.DialogflowAgentID, cfg.LineChannelSecret, cfg.HTTPTimeout, logger)
		bot = service.NewBot(analysis, lineClient, forwarder, pipelineMetrics, logger)
	} else {
		bot = service.NewBot(analysis, lineClient, nil, pipelineMetrics, logger)
	}

	server := web.NewServer(bot, analysis, photoStg, uploads, web.Options{
		ChannelSecret: cfg.LineChannelSecret,
		Gatherer:      reg,
		AdminToken:    cfg.AdminToken,
	}, logger)
	httpServer := server.HTTPServer(cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}

	analysis.Close()
}

func newVisionAnalyzer(cfg *config.Config, logger *slog.Logger) vision.VisionAnalyzer {
	switch cfg.VisionBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Error("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
			return nil
		}
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(claudevision.Options{
			APIKey:      cfg.ClaudeAPIKey,
			Model:       cfg.ClaudeModel,
			MaxTokens:   cfg.VisionMaxTokens,
			Temperature: cfg.VisionTemperature,
			Timeout:     cfg.HTTPTimeout,
		})
	case "ollama":
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaAnalyzer(cfg.OllamaHost, cfg.OllamaModel, cfg.VisionMaxTokens, cfg.VisionTemperature, cfg.HTTPTimeout)
	default:
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY is required when VISION_BACKEND=openai")
			return nil
		}
		logger.Info("using OpenAI vision backend", "model", cfg.OpenAIModel)
		return openaivision.NewOpenAIAnalyzer(openaivision.Options{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			MaxTokens:   cfg.VisionMaxTokens,
			Temperature: cfg.VisionTemperature,
			Timeout:     cfg.HTTPTimeout,
		})
	}
}

// newPhotoStore returns nil for PHOTO_BACKEND=none, which disables audit copies.
func newPhotoStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (photostore.PhotoStore, error) {
	switch cfg.PhotoBackend {
	case "none":
		logger.Info("audit photo storage disabled")
		return nil, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when PHOTO_BACKEND=s3")
		}
		client, err := s3store.NewClient(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		logger.Info("using S3 photo store", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		return s3store.NewS3PhotoStore(client, cfg.S3Bucket, logger), nil
	default:
		logger.Info("using local photo store", "path", cfg.PhotoPath)
		return local.NewLocalPhotoStore(cfg.PhotoPath, logger)
	}
}
