package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/dinobot/internal/catalog"
	"github.com/nidhogg/dinobot/internal/imagematch"
	"github.com/nidhogg/dinobot/internal/metrics"
	"github.com/nidhogg/dinobot/internal/store"
)

// matchExerciseImage picks the catalog image best describing an exercise.
func (h *Handler) matchExerciseImage(w http.ResponseWriter, r *http.Request) {
	var q catalog.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"image": nil, "error": err.Error()})
		return
	}

	cat := h.loadCatalog()
	keywords := catalog.Keywords(q)

	if len(keywords) == 0 {
		first, ok := cat.First()
		if !ok {
			metrics.RecordMatch("keywords", "none")
			writeJSON(w, http.StatusOK, map[string]interface{}{"image": nil})
			return
		}
		metrics.RecordMatch("keywords", "fallback")
		writeJSON(w, http.StatusOK, map[string]interface{}{"image": first})
		return
	}

	best, ok := catalog.BestMatch(cat.Records, keywords)
	if !ok {
		metrics.RecordMatch("keywords", "none")
		writeJSON(w, http.StatusOK, map[string]interface{}{"image": nil})
		return
	}
	metrics.RecordMatch("keywords", "matched")
	h.logger.Debug("exercise image matched",
		zap.String("id", best.ID), zap.Strings("keywords", keywords))
	writeJSON(w, http.StatusOK, map[string]interface{}{"image": best})
}

func (h *Handler) searchMedia(w http.ResponseWriter, r *http.Request) {
	cat := h.loadCatalog()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"images": catalog.Filter(cat.Records, r.URL.Query().Get("q")),
	})
}

type imageSearchRequest struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
}

// imageSearch stores the photo and looks for a byte-identical catalog image.
// Candidates are always the whole catalog.
func (h *Handler) imageSearch(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeImage(w, r)
	if !ok {
		return
	}
	cat := h.loadCatalog()
	up, matched, err := h.matchPhoto(r, cat, data, store.SourcePhoto)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploaded":   up.URL,
		"candidates": cat.Records,
		"matched":    matched,
	})
}

// exerciseSearch is imageSearch narrowed to images linked to an exercise.
func (h *Handler) exerciseSearch(w http.ResponseWriter, r *http.Request) {
	data, ok := h.decodeImage(w, r)
	if !ok {
		return
	}
	cat := h.loadCatalog()
	up, matched, err := h.matchPhoto(r, cat, data, store.SourceExercise)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploaded":  up.URL,
		"matched":   matched,
		"exercises": catalog.WithExercises(cat.Records, matched),
	})
}

// decodeImage reads the JSON body and returns the decoded photo bytes. On
// failure it has already written the error response.
func (h *Handler) decodeImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	var req imageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "image too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "imageBase64 is required"})
		return nil, false
	}

	data, err := decodeBase64(req.ImageBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base64 image"})
		return nil, false
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": imagematch.ErrEmptyImage.Error()})
		return nil, false
	}
	return data, true
}

// decodeBase64 accepts padded or unpadded standard base64 and tolerates a
// data URI prefix and embedded whitespace.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Join(strings.Fields(s), "")
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// matchPhoto persists the upload, scans the catalog for an identical file
// and records the upload in the ledger when one is configured.
func (h *Handler) matchPhoto(r *http.Request, cat catalog.Catalog, data []byte, source string) (*imagematch.Upload, *catalog.ImageRecord, error) {
	up, err := h.uploads.Save(data)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	matched, err := h.matcher.FindDuplicate(r.Context(), cat.Records, up.Digest)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordUpload(up.Size, time.Since(start))

	outcome := "none"
	if matched != nil {
		outcome = "matched"
	}
	metrics.RecordMatch(source, outcome)

	if h.ledger != nil {
		entry := &store.Upload{
			Path:      up.URL,
			Digest:    up.Digest,
			SizeBytes: int64(up.Size),
			Source:    source,
		}
		if matched != nil {
			entry.MatchedID = matched.ID
		}
		if err := h.ledger.RecordUpload(r.Context(), entry); err != nil {
			metrics.LedgerWriteErrors.Inc()
			h.logger.Warn("record upload failed", zap.String("path", up.URL), zap.Error(err))
		}
	}
	return up, matched, nil
}
