package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vbonduro/foodbot/internal/domain"
)

const uploadColumns = `id, source, user_id, message_id, storage_key, mime_type, size_bytes, uploaded_at`

type UploadStore struct {
	db *sql.DB
}

func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

func (s *UploadStore) Create(ctx context.Context, u domain.Upload) (*domain.Upload, error) {
	if u.Source == "" {
		u.Source = domain.SourceLine
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (source, user_id, message_id, storage_key, mime_type, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.Source, u.UserID, u.MessageID, u.StorageKey, u.MimeType, u.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID returns nil, nil when no row matches.
func (s *UploadStore) GetByID(ctx context.Context, id int64) (*domain.Upload, error) {
	return s.getOne(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
}

// GetByStorageKey returns nil, nil when no row matches.
func (s *UploadStore) GetByStorageKey(ctx context.Context, key string) (*domain.Upload, error) {
	return s.getOne(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE storage_key = ?`, key)
}

// ListByUser returns the user's uploads, newest first.
func (s *UploadStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+uploadColumns+` FROM uploads
		WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var uploads []*domain.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploads: %w", err)
	}
	return uploads, nil
}

func (s *UploadStore) getOne(ctx context.Context, query string, arg any) (*domain.Upload, error) {
	u, err := scanUpload(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (*domain.Upload, error) {
	u := &domain.Upload{}
	err := row.Scan(&u.ID, &u.Source, &u.UserID, &u.MessageID, &u.StorageKey, &u.MimeType, &u.SizeBytes, &u.UploadedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
