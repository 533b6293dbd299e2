package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Upload sources.
const (
	SourcePhoto    = "photo"
	SourceExercise = "exercise"
)

// Upload is one row of the append-only uploads ledger.
type Upload struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Digest    string    `json:"digest"`
	SizeBytes int64     `json:"size_bytes"`
	Source    string    `json:"source"`
	MatchedID string    `json:"matched_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordUpload appends u to the ledger, filling ID and CreatedAt when empty.
func (s *Store) RecordUpload(ctx context.Context, u *Upload) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var matched *string
	if u.MatchedID != "" {
		matched = &u.MatchedID
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO uploads (id, path, digest, size_bytes, source, matched_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Path, u.Digest, u.SizeBytes, u.Source, matched, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// ListUploads returns the most recent uploads, newest first.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id::text, path, digest, size_bytes, source, COALESCE(matched_id, ''), created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []Upload{}
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.Path, &u.Digest, &u.SizeBytes, &u.Source, &u.MatchedID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}
