package web

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUploadLimit = 20
	maxUploadLimit     = 100
)

type uploadView struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	MessageID  string    `json:"messageId,omitempty"`
	StorageKey string    `json:"storageKey"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	UploadedAt time.Time `json:"uploadedAt"`
	PhotoPath  string    `json:"photoPath"`
}

type uploadsResponse struct {
	UserID  string       `json:"userId"`
	Uploads []uploadView `json:"uploads"`
}

// handleListUploads returns a user's audit uploads, newest first. It is only
// routed when an admin token is configured.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	if !s.authorizedAdmin(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := r.PathValue("userId")
	limit := defaultUploadLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxUploadLimit)
	}

	uploads, err := s.uploads.ListByUser(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("list uploads failed", "user_id", userID, "error", err)
		http.Error(w, "failed to list uploads", http.StatusInternalServerError)
		return
	}

	resp := uploadsResponse{UserID: userID, Uploads: make([]uploadView, 0, len(uploads))}
	for _, u := range uploads {
		resp.Uploads = append(resp.Uploads, uploadView{
			ID:         u.ID,
			Source:     u.Source,
			MessageID:  u.MessageID,
			StorageKey: u.StorageKey,
			MimeType:   u.MimeType,
			SizeBytes:  u.SizeBytes,
			UploadedAt: u.UploadedAt,
			PhotoPath:  "/photos/" + u.StorageKey,
		})
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

func (s *Server) authorizedAdmin(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) == 1
}
