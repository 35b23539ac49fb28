package vision

import (
	"bytes"
	"context"
	"log/slog"
)

// SafeAnalyzer adapts a VisionAnalyzer to a call that cannot fail: transport,
// provider and parse errors are logged and folded into NoFood.
type SafeAnalyzer struct {
	backend VisionAnalyzer
	logger  *slog.Logger
}

func NewSafeAnalyzer(backend VisionAnalyzer, logger *slog.Logger) *SafeAnalyzer {
	return &SafeAnalyzer{backend: backend, logger: logger}
}

func (s *SafeAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) *AnalysisResult {
	if s.backend == nil {
		s.logger.Error("vision analysis skipped: no backend configured")
		return NoFood()
	}

	result, err := s.backend.Analyze(ctx, bytes.NewReader(image), mimeType)
	if err != nil {
		s.logger.Error("vision analysis degraded", "error", err)
		return NoFood()
	}
	if result == nil {
		s.logger.Error("vision analysis degraded", "error", "backend returned no result")
		return NoFood()
	}
	return result
}
