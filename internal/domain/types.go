package domain

import "time"

// Upload sources.
const (
	SourceLine = "line"
	SourceAPI  = "api"
)

// Upload records one audit copy of an analyzed image. Analysis results are
// never stored.
type Upload struct {
	ID         int64
	Source     string
	UserID     string
	MessageID  string
	StorageKey string
	MimeType   string
	SizeBytes  int64
	UploadedAt time.Time
}
