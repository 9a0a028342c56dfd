package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smallwat3r/secretdrop/internal/domain"
)

type RouterConfig struct {
	RequestTimeout  time.Duration
	MaxPayloadBytes int64
	CORSOrigins     []string
	// SubmitLimiter throttles POST /post per client IP. Nil disables it.
	SubmitLimiter *RequestLimiter
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = domain.MaxPayloadSize
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(SecurityHeaders)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/health", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(ContentLengthValidator(cfg.MaxPayloadBytes))

		r.With(cfg.SubmitLimiter.Handler).Post("/post", h.HandlePost)
		r.Post("/get", h.HandleGet)
		r.Post("/get_files", h.HandleGetFiles)
		r.Post("/fail_attempt", h.HandleFailAttempt)
		r.Post("/delete", h.HandleDelete)
	})

	return gzhttp.GzipHandler(r)
}
