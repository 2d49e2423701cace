// internal/api/router.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/payment"
	"visa-guru/internal/models"
	"visa-guru/internal/store"
)

const ServiceName = "visa-guru-api"

type ConsultationService interface {
	GenerateConsultation(ctx context.Context, req *models.ConsultationRequest, consultationID string) (*models.ConsultationResult, error)
	GeneratePreview(req *models.ConsultationRequest) models.PreviewSummary
}

type CheckoutCreator interface {
	Execute(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
}

type PaymentVerifier interface {
	Execute(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResponse, error)
}

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*payment.WebhookEvent, error)
}

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Dependencies struct {
	Consultations ConsultationService
	Checkout      CheckoutCreator
	Verify        PaymentVerifier
	Webhooks      WebhookVerifier
	Store         store.Store
	Readiness     map[string]ReadinessCheck
	// NewID issues consultation ids; defaults to random UUIDs.
	NewID  func() string
	Logger logger.Logger
}

type Server struct {
	deps     Dependencies
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
	newID    func() string
	maxBytes int64
}

// NewRouter mounts the public API under /api plus /metrics and /ready.
func NewRouter(cfg Config, deps Dependencies) http.Handler {
	s := &Server{
		deps:     deps,
		errors:   apperrors.NewErrorHandler(deps.Logger),
		logger:   deps.Logger,
		newID:    deps.NewID,
		maxBytes: cfg.MaxBodyBytes,
	}
	if s.newID == nil {
		s.newID = newConsultationID
	}
	if s.maxBytes <= 0 {
		s.maxBytes = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(instrument)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/", s.handleRoot)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/consultation/analyze", s.handleAnalyze)
		r.Post("/consultation/preview", s.handlePreview)
		r.Get("/consultation/{consultationID}", s.handleGetConsultation)

		r.Post("/payment/create-checkout", s.handleCreateCheckout)
		r.Post("/payment/verify", s.handleVerify)
		r.Post("/payment/webhook", s.handleWebhook)
	})

	return r
}
