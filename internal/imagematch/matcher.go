package imagematch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nidhogg/dinobot/internal/catalog"
	"go.uber.org/zap"
)

// DigestCache remembers file digests between requests. Implementations must
// treat failures as misses.
type DigestCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, digest string)
}

// Matcher compares an upload digest with the files behind catalog records.
type Matcher struct {
	publicDir string
	cache     DigestCache
	logger    *zap.Logger
}

// NewMatcher creates a Matcher resolving record URLs under publicDir.
// cache may be nil.
func NewMatcher(publicDir string, cache DigestCache, logger *zap.Logger) *Matcher {
	return &Matcher{publicDir: publicDir, cache: cache, logger: logger}
}

// FindDuplicate returns the first record, in catalog order, whose local file
// has the given digest. Records without a readable local file are skipped.
func (m *Matcher) FindDuplicate(ctx context.Context, records []catalog.ImageRecord, digest string) (*catalog.ImageRecord, error) {
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok := m.Resolve(records[i].URL)
		if !ok {
			continue
		}
		d, err := m.fileDigest(ctx, p)
		if err != nil {
			m.logger.Debug("skipping catalog file",
				zap.String("id", records[i].ID), zap.String("path", p), zap.Error(err))
			continue
		}
		if d == digest {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// Resolve maps a record URL to a path inside the public dir. Remote URLs and
// paths leaving the public dir are rejected.
func (m *Matcher) Resolve(url string) (string, bool) {
	if url == "" || strings.Contains(url, "://") {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(url, "/"))
	rel = filepath.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", false
	}
	return filepath.Join(m.publicDir, rel), true
}

func (m *Matcher) fileDigest(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if m.cache == nil {
		return DigestFile(path)
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if d, ok := m.cache.Get(ctx, key); ok {
		return d, nil
	}
	d, err := DigestFile(path)
	if err != nil {
		return "", err
	}
	m.cache.Set(ctx, key, d)
	return d, nil
}
