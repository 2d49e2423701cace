// internal/steps/payment/create-checkout/handler.go
package createcheckout

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/common/payment"
	"visa-guru/internal/models"
	"visa-guru/internal/store"
)

const StepName = "create-checkout"

type Handler struct {
	config    *Config
	processor payment.Processor
	store     store.Store
	logger    logger.Logger
}

func NewHandler(config *Config, processor payment.Processor, st store.Store, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		processor: processor,
		store:     st,
		logger:    log.WithFields(map[string]interface{}{"step": StepName}),
	}
}

func (h *Handler) Execute(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues(StepName).Observe(time.Since(start).Seconds())
	}()

	resp, err := h.execute(ctx, req)
	if err != nil {
		metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeSuccess).Inc()
	return resp, nil
}

func (h *Handler) execute(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	session, err := h.processor.CreateSession(ctx, payment.SessionRequest{
		AmountCents:   h.config.AmountCents,
		Currency:      h.config.Currency,
		ProductName:   ProductName,
		Description:   ProductDescription,
		SuccessURL:    h.config.successURL(req.ConsultationID),
		CancelURL:     h.config.cancelURL(),
		CustomerEmail: req.Email,
		Metadata:      map[string]string{MetadataConsultationID: req.ConsultationID},
	})
	if err != nil {
		h.logger.Error("checkout session creation failed", map[string]interface{}{
			"consultationId": req.ConsultationID,
			"error":          err.Error(),
		})
		return nil, apperrors.NewProcessorError("session creation", err)
	}

	h.attachSession(ctx, req.ConsultationID, session.ID)

	h.logger.Info("checkout session created", map[string]interface{}{
		"consultationId": req.ConsultationID,
		"sessionId":      session.ID,
	})

	return &models.CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

// attachSession records the session id on a stored consultation. Checkout
// does not require the consultation to be stored, so misses are only logged.
func (h *Handler) attachSession(ctx context.Context, consultationID, sessionID string) {
	if h.store == nil {
		return
	}

	record, err := h.store.Get(ctx, consultationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("consultation lookup failed", map[string]interface{}{
				"consultationId": consultationID,
				"error":          err.Error(),
			})
		}
		return
	}

	record.PaymentSessionID = sessionID
	if err := h.store.Put(ctx, record); err != nil {
		h.logger.Warn("failed to attach checkout session", map[string]interface{}{
			"consultationId": consultationID,
			"error":          err.Error(),
		})
	}
}

func validateInput(req *models.CheckoutRequest) error {
	var problems []string
	if req == nil {
		return apperrors.NewValidationError([]string{"body: is required"})
	}
	if strings.TrimSpace(req.ConsultationID) == "" {
		problems = append(problems, "consultation_id: is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		problems = append(problems, "email: is required")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError(problems)
	}
	return nil
}
