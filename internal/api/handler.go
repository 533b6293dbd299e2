package api

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nidhogg/dinobot/internal/catalog"
	"github.com/nidhogg/dinobot/internal/imagematch"
	"github.com/nidhogg/dinobot/internal/metrics"
	"github.com/nidhogg/dinobot/internal/store"
	"github.com/nidhogg/dinobot/internal/tutor"
)

var validate = validator.New()

// Tutor answers chat questions.
type Tutor interface {
	Ask(ctx context.Context, q tutor.Question) (string, error)
}

// UploadLedger records uploads. A nil ledger disables recording and the
// listing endpoint.
type UploadLedger interface {
	RecordUpload(ctx context.Context, u *store.Upload) error
	ListUploads(ctx context.Context, limit int) ([]store.Upload, error)
}

// Options holds the filesystem and limit settings of the handler.
type Options struct {
	CatalogPath         string
	PublicDir           string
	MaxUploadBytes      int64
	UploadRatePerMinute int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	opts    Options
	uploads *imagematch.UploadStore
	matcher *imagematch.Matcher
	tutor   Tutor
	ledger  UploadLedger
	logger  *zap.Logger
}

// NewHandler creates a new API handler. ledger may be nil.
func NewHandler(
	opts Options,
	uploads *imagematch.UploadStore,
	matcher *imagematch.Matcher,
	t Tutor,
	ledger UploadLedger,
	logger *zap.Logger,
) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		opts:    opts,
		uploads: uploads,
		matcher: matcher,
		tutor:   t,
		ledger:  ledger,
		logger:  logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Text matching
		r.Get("/exercise-image", h.listImages)
		r.Post("/exercise-image", h.matchExerciseImage)
		r.Get("/media", h.searchMedia)

		// Photo matching
		r.Get("/image-search", h.listImages)
		r.Group(func(r chi.Router) {
			r.Use(h.uploadLimiter())
			r.Post("/image-search", h.imageSearch)
			r.Post("/exercise-search", h.exerciseSearch)
		})

		r.Post("/chat-fiche", h.chatFiche)
		r.Get("/uploads", h.listUploads)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/*", http.FileServer(noListingFS{http.Dir(h.opts.PublicDir)}))

	return r
}

// uploadLimiter throttles photo uploads per client IP.
func (h *Handler) uploadLimiter() func(http.Handler) http.Handler {
	if h.opts.UploadRatePerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		h.opts.UploadRatePerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads, retry later"})
		}),
	)
}

// loadCatalog reads the catalog from disk. Failures yield an empty catalog.
func (h *Handler) loadCatalog() catalog.Catalog {
	cat := catalog.Load(h.opts.CatalogPath)
	if !cat.Available() {
		h.logger.Warn("catalog unavailable",
			zap.String("path", h.opts.CatalogPath),
			zap.String("status", string(cat.Status)),
			zap.Error(cat.Err))
	}
	metrics.RecordCatalogLoad(string(cat.Status), len(cat.Records))
	return cat
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	cat := h.loadCatalog()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"catalog": cat.Status,
		"images":  len(cat.Records),
	})
}

func (h *Handler) listImages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": h.loadCatalog().Records})
}

// noListingFS serves files and index pages but never a generated directory
// listing, so the uploads folder cannot be enumerated.
type noListingFS struct {
	http.FileSystem
}

func (nfs noListingFS) Open(name string) (http.File, error) {
	f, err := nfs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		index, err := nfs.FileSystem.Open(path.Join(name, "index.html"))
		if err != nil {
			f.Close()
			return nil, fs.ErrNotExist
		}
		index.Close()
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
