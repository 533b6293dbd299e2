package imagematch

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyImage is returned when there are no bytes to store.
var ErrEmptyImage = errors.New("empty image")

const uploadExt = ".jpg"

// Upload describes one persisted photo.
type Upload struct {
	Name   string
	Path   string // on disk
	URL    string // as served to clients
	Digest string
	Size   int
}

// UploadStore writes uploaded photos into the uploads area. Files are only
// ever added, never rewritten or read back.
type UploadStore struct {
	dir       string
	urlPrefix string
	now       func() time.Time
	logger    *zap.Logger
}

// NewUploadStore creates a store writing into dir and serving files under
// urlPrefix (for example "/uploads").
func NewUploadStore(dir, urlPrefix string, logger *zap.Logger) *UploadStore {
	return &UploadStore{
		dir:       dir,
		urlPrefix: urlPrefix,
		now:       time.Now,
		logger:    logger,
	}
}

// Save persists data under a fresh name. The name carries the upload time
// plus a random token so two uploads in the same millisecond do not collide.
func (s *UploadStore) Save(data []byte) (*Upload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	name := fmt.Sprintf("upload-%d-%s%s", s.now().UnixMilli(), uuid.NewString()[:8], uploadExt)
	full := filepath.Join(s.dir, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	up := &Upload{
		Name:   name,
		Path:   full,
		URL:    path.Join(s.urlPrefix, name),
		Digest: Digest(data),
		Size:   len(data),
	}
	s.logger.Info("upload saved", zap.String("name", name), zap.Int("bytes", up.Size))
	return up, nil
}
