package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/foodbot/internal/domain"
	"github.com/vbonduro/foodbot/internal/flex"
	"github.com/vbonduro/foodbot/internal/line"
	"github.com/vbonduro/foodbot/internal/photostore"
	"github.com/vbonduro/foodbot/internal/service"
	"github.com/vbonduro/foodbot/internal/vision"
)

const maxPhotoSize = 5 * 1024 * 1024 // 5 MB

// allowedImageTypes are the sniffed types accepted by the food API. WebP has
// no signature in http.DetectContentType and is checked by isWebP.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// analyzeResponse is the JSON body of both food API endpoints. Message holds
// the rendered card.
type analyzeResponse struct {
	Success bool                   `json:"success"`
	Result  *vision.AnalysisResult `json:"result,omitempty"`
	Message *flex.FlexMessage      `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

type analyzeLineRequest struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

func (s *Server) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+64*1024)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, analyzeResponse{Error: "Image exceeds 5MB limit"}, s.logger)
			return
		}
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Error: "Failed to parse form"}, s.logger)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Error: "No image file provided"}, s.logger)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	if header.Size > maxPhotoSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, analyzeResponse{Error: "Image exceeds 5MB limit"}, s.logger)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("read upload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, analyzeResponse{Error: "Failed to read image"}, s.logger)
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Error: "Only image files are allowed"}, s.logger)
		return
	}

	result, card := s.analysis.Analyze(r.Context(), service.AnalysisRequest{
		Source:   domain.SourceAPI,
		Image:    imageData,
		MimeType: mimeType,
	})
	writeJSON(w, http.StatusOK, analyzeResponse{Success: true, Result: result, Message: card}, s.logger)
}

func (s *Server) handleAnalyzeLine(w http.ResponseWriter, r *http.Request) {
	var req analyzeLineRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Error: "Invalid JSON body"}, s.logger)
		return
	}
	if req.MessageID == "" {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Error: "No message ID provided"}, s.logger)
		return
	}

	report, err := s.analysis.Process(r.Context(), service.AnalysisRequest{
		MessageID: req.MessageID,
		UserID:    req.UserID,
		Source:    domain.SourceAPI,
	})
	resp := analyzeResponse{Success: err == nil, Result: report.Result, Message: report.Card}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp, s.logger)
	case errors.Is(err, line.ErrRetrieval):
		resp.Error = "Failed to retrieve LINE image"
		writeJSON(w, http.StatusBadGateway, resp, s.logger)
	default:
		s.logger.Error("analyze line image failed", "message_id", req.MessageID, "error", err)
		resp.Error = "Failed to deliver analysis to LINE user"
		writeJSON(w, http.StatusBadGateway, resp, s.logger)
	}
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if s.photoStore == nil || key == "" {
		http.NotFound(w, r)
		return
	}

	if s.uploads != nil {
		upload, err := s.uploads.GetByStorageKey(r.Context(), key)
		if err != nil {
			s.logger.Error("lookup upload failed", "key", key, "error", err)
			http.Error(w, "failed to get photo", http.StatusInternalServerError)
			return
		}
		if upload == nil {
			http.NotFound(w, r)
			return
		}
	}

	reader, mimeType, err := s.photoStore.Get(r.Context(), key)
	if err != nil {
		if !errors.Is(err, photostore.ErrNotFound) {
			s.logger.Warn("get photo failed", "key", key, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "key", key, "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
