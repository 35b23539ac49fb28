package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/foodbot/internal/domain"
	"github.com/vbonduro/foodbot/internal/flex"
	"github.com/vbonduro/foodbot/internal/metrics"
	"github.com/vbonduro/foodbot/internal/photostore"
	"github.com/vbonduro/foodbot/internal/vision"
)

// Stage is a step of the image analysis pipeline.
type Stage string

const (
	StageReceived    Stage = "received"
	StageFetching    Stage = "fetching"
	StageAnalyzing   Stage = "analyzing"
	StageRendering   Stage = "rendering"
	StageDispatching Stage = "dispatching"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

const (
	defaultAuditTimeout = 30 * time.Second
	auditPrefix         = "food-images"
)

var ErrNoRecipient = errors.New("no reply token or user id to deliver to")

// contentFetcher is the subset of line.Client that downloads message content.
type contentFetcher interface {
	GetContent(ctx context.Context, messageID string) ([]byte, string, error)
}

// dispatcher is the subset of line.Client that sends messages.
type dispatcher interface {
	Reply(ctx context.Context, replyToken string, messages ...flex.Message) error
	Push(ctx context.Context, to string, messages ...flex.Message) error
}

// imageAnalyzer must always return a result; vision.SafeAnalyzer satisfies it.
type imageAnalyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) *vision.AnalysisResult
}

// uploadRepository is the subset of store.UploadStore that AnalysisService requires.
type uploadRepository interface {
	Create(ctx context.Context, u domain.Upload) (*domain.Upload, error)
}

// AnalysisRequest identifies one image to analyze. Image and MimeType are
// filled in by the fetch stage when the request starts from a message id.
type AnalysisRequest struct {
	MessageID  string
	UserID     string
	ReplyToken string
	Source     string
	Image      []byte
	MimeType   string
}

// Report describes how far a request got and what was produced.
type Report struct {
	Stage  Stage
	Result *vision.AnalysisResult
	Card   *flex.FlexMessage
}

type AnalysisOptions struct {
	// PublicBaseURL is prefixed to "/photos/<key>" to build hero image URLs.
	// Empty disables hero images.
	PublicBaseURL string
	AuditTimeout  time.Duration
}

type AnalysisService struct {
	fetcher    contentFetcher
	dispatcher dispatcher
	analyzer   imageAnalyzer
	photoStg   photostore.PhotoStore
	uploads    uploadRepository
	metrics    *metrics.Pipeline
	opts       AnalysisOptions
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
	audits sync.WaitGroup
}

// NewAnalysisService wires the pipeline. photoStg and uploads may be nil, in
// which case no audit copy is kept.
func NewAnalysisService(
	fetcher contentFetcher,
	dispatcher dispatcher,
	analyzer imageAnalyzer,
	photoStg photostore.PhotoStore,
	uploads uploadRepository,
	m *metrics.Pipeline,
	opts AnalysisOptions,
	logger *slog.Logger,
) *AnalysisService {
	if opts.AuditTimeout <= 0 {
		opts.AuditTimeout = defaultAuditTimeout
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &AnalysisService{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		analyzer:   analyzer,
		photoStg:   photoStg,
		uploads:    uploads,
		metrics:    m,
		opts:       opts,
		logger:     logger,
	}
}

// HandleImage runs the full pipeline for an image message and returns the
// stage it ended in.
func (s *AnalysisService) HandleImage(ctx context.Context, req AnalysisRequest) (Stage, error) {
	report, err := s.Process(ctx, req)
	return report.Stage, err
}

// Process fetches, analyzes, renders and delivers. Delivery is skipped when
// the request has neither a reply token nor a user id. A fetch failure is
// answered with a retrieval error card and reported as StageFailed.
func (s *AnalysisService) Process(ctx context.Context, req AnalysisRequest) (*Report, error) {
	start := time.Now()
	report := &Report{Stage: StageReceived}
	s.enter(report, StageReceived, req)
	defer func() {
		if s.metrics != nil {
			s.metrics.Duration.WithLabelValues(string(report.Stage)).Observe(time.Since(start).Seconds())
		}
	}()

	if len(req.Image) == 0 {
		s.enter(report, StageFetching, req)
		image, mimeType, err := s.fetcher.GetContent(ctx, req.MessageID)
		if err != nil {
			s.logger.Error("content fetch failed", "message_id", req.MessageID, "error", err)
			s.countOutcome("retrieval_error")
			card := flex.ErrorCard(flex.TitleRetrievalError, flex.RetrievalMessage, "")
			report.Card = card
			if hasRecipient(req) {
				if derr := s.deliver(ctx, req, card); derr != nil {
					s.logger.Error("retrieval error card not delivered", "message_id", req.MessageID, "error", derr)
					err = errors.Join(err, derr)
				}
			}
			s.enter(report, StageFailed, req)
			return report, err
		}
		req.Image = image
		req.MimeType = mimeType
	}

	report.Result, report.Card = s.analyze(ctx, req, report)

	if !hasRecipient(req) {
		s.logger.Info("no recipient, card not dispatched", "message_id", req.MessageID)
		s.enter(report, StageDone, req)
		return report, nil
	}

	s.enter(report, StageDispatching, req)
	if err := s.deliver(ctx, req, report.Card); err != nil {
		s.logger.Error("dispatch failed", "message_id", req.MessageID, "error", err)
		s.enter(report, StageFailed, req)
		return report, err
	}

	s.enter(report, StageDone, req)
	return report, nil
}

// Analyze runs the analyze and render stages on an image the caller already
// holds. It never fails.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*vision.AnalysisResult, *flex.FlexMessage) {
	return s.analyze(ctx, req, &Report{Stage: StageReceived})
}

func (s *AnalysisService) analyze(ctx context.Context, req AnalysisRequest, report *Report) (*vision.AnalysisResult, *flex.FlexMessage) {
	heroURL := s.startAudit(ctx, req)

	s.enter(report, StageAnalyzing, req)
	result := s.analyzer.Analyze(ctx, req.Image, req.MimeType)

	s.enter(report, StageRendering, req)
	hero := ""
	select {
	case url, ok := <-heroURL:
		if ok {
			hero = url
		}
	default:
	}
	card := flex.Render(result, hero)
	s.countOutcome(outcome(result))

	s.logger.Info("analysis complete",
		"message_id", req.MessageID,
		"contains_food", result.ContainsFood,
		"items", len(result.Items),
		"hero", hero != "",
	)
	return result, card
}

// Wait blocks until every in-flight audit upload has finished.
func (s *AnalysisService) Wait() {
	s.audits.Wait()
}

// Close stops new audit uploads from starting and then waits for the ones in
// flight. Analysis and delivery keep working after Close.
func (s *AnalysisService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.audits.Wait()
}

// startAudit copies the image to the photo store in the background. The
// returned channel yields the public URL if the copy succeeds and is closed
// when the upload ends either way.
func (s *AnalysisService) startAudit(ctx context.Context, req AnalysisRequest) <-chan string {
	done := make(chan string, 1)
	if s.photoStg == nil {
		close(done)
		return done
	}

	// Add must not race with the final Wait in Close.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("audit upload skipped, service closed", "message_id", req.MessageID)
		close(done)
		return done
	}
	s.audits.Add(1)
	s.mu.Unlock()

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AuditTimeout)
	if s.metrics != nil {
		s.metrics.UploadsInFlight.Inc()
	}

	go func() {
		defer s.audits.Done()
		defer cancel()
		defer close(done)
		if s.metrics != nil {
			defer s.metrics.UploadsInFlight.Dec()
		}

		url, err := s.audit(auditCtx, req)
		if err != nil {
			s.logger.Warn("audit upload failed", "message_id", req.MessageID, "error", err)
			s.countAudit("error")
			return
		}
		s.countAudit("ok")
		done <- url
	}()
	return done
}

func (s *AnalysisService) audit(ctx context.Context, req AnalysisRequest) (string, error) {
	owner := req.UserID
	if owner == "" {
		owner = "anonymous"
	}
	source := req.Source
	if source == "" {
		source = domain.SourceLine
	}

	key, err := s.photoStg.Save(ctx, auditPrefix+"/"+owner, req.MimeType, bytes.NewReader(req.Image))
	if err != nil {
		return "", fmt.Errorf("failed to save photo: %w", err)
	}

	if s.uploads != nil {
		_, err := s.uploads.Create(ctx, domain.Upload{
			Source:     source,
			UserID:     req.UserID,
			MessageID:  req.MessageID,
			StorageKey: key,
			MimeType:   req.MimeType,
			SizeBytes:  int64(len(req.Image)),
		})
		if err != nil {
			if derr := s.photoStg.Delete(ctx, key); derr != nil {
				s.logger.Error("failed to remove unrecorded photo", "key", key, "error", derr)
			}
			return "", fmt.Errorf("failed to record upload: %w", err)
		}
	}

	s.logger.Info("audit upload stored", "message_id", req.MessageID, "key", key)
	if s.opts.PublicBaseURL == "" {
		return "", nil
	}
	return s.opts.PublicBaseURL + "/photos/" + key, nil
}

func (s *AnalysisService) deliver(ctx context.Context, req AnalysisRequest, messages ...flex.Message) error {
	switch {
	case req.ReplyToken != "":
		return s.dispatcher.Reply(ctx, req.ReplyToken, messages...)
	case req.UserID != "":
		return s.dispatcher.Push(ctx, req.UserID, messages...)
	default:
		return ErrNoRecipient
	}
}

func (s *AnalysisService) enter(report *Report, stage Stage, req AnalysisRequest) {
	report.Stage = stage
	s.logger.Debug("pipeline stage", "message_id", req.MessageID, "stage", stage)
	if s.metrics != nil {
		s.metrics.StageTransitions.WithLabelValues(string(stage)).Inc()
	}
}

func (s *AnalysisService) countOutcome(label string) {
	if s.metrics != nil {
		s.metrics.Outcomes.WithLabelValues(label).Inc()
	}
}

func (s *AnalysisService) countAudit(label string) {
	if s.metrics != nil {
		s.metrics.AuditUploads.WithLabelValues(label).Inc()
	}
}

func hasRecipient(req AnalysisRequest) bool {
	return req.ReplyToken != "" || req.UserID != ""
}

// outcome mirrors the card choice made by flex.Render.
func outcome(result *vision.AnalysisResult) string {
	switch {
	case result == nil || result.Error != "":
		return "analysis_error"
	case !result.ContainsFood:
		return "no_food"
	default:
		return "analysis"
	}
}
