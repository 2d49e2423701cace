// internal/steps/payment/verify-payment/handler.go
package verifypayment

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/common/payment"
	"visa-guru/internal/models"
	"visa-guru/internal/store"
)

const StepName = "verify-payment"

type Handler struct {
	config    *Config
	processor payment.Processor
	store     store.Store
	generator ConsultationGenerator
	deliverer Deliverer
	locker    Locker
	logger    logger.Logger

	// inflight collapses concurrent verifies of one consultation into a
	// single generation.
	inflight singleflight.Group
}

func NewHandler(config *Config, processor payment.Processor, st store.Store, generator ConsultationGenerator, deliverer Deliverer, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		processor: processor,
		store:     st,
		generator: generator,
		deliverer: deliverer,
		logger:    log.WithFields(map[string]interface{}{"step": StepName}),
	}
}

// WithLocker guards fulfilment across instances. Without it, only verifies
// inside this process are collapsed.
func (h *Handler) WithLocker(locker Locker) *Handler {
	h.locker = locker
	return h
}

func (h *Handler) Execute(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResponse, error) {
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

func (h *Handler) execute(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResponse, error) {
	if req == nil || strings.TrimSpace(req.SessionID) == "" {
		return nil, apperrors.NewValidationError([]string{"session_id: is required"})
	}

	session, err := h.retrieve(ctx, req.SessionID)
	if err != nil {
		h.logger.Error("payment verification failed", map[string]interface{}{
			"sessionId": req.SessionID,
			"error":     err.Error(),
		})
		return nil, apperrors.NewProcessorError("verification", err)
	}

	if session.PaymentStatus != PaymentStatusPaid {
		h.logger.Info("payment not completed", map[string]interface{}{
			"sessionId":     session.ID,
			"paymentStatus": session.PaymentStatus,
		})
		return &models.VerifyResponse{
			Success:       false,
			PaymentStatus: session.PaymentStatus,
			Message:       MessageNotCompleted,
		}, nil
	}

	consultationID := session.Metadata[metadataConsultationID]
	message, err := h.fulfilOnce(ctx, consultationID, session.ID)
	if err != nil {
		return nil, err
	}

	return &models.VerifyResponse{
		Success:        true,
		PaymentStatus:  PaymentStatusCompleted,
		ConsultationID: consultationID,
		Message:        message,
	}, nil
}

func (h *Handler) retrieve(ctx context.Context, sessionID string) (*payment.Session, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	return h.processor.RetrieveSession(ctx, sessionID)
}

func (h *Handler) fulfilOnce(ctx context.Context, consultationID, sessionID string) (string, error) {
	v, err, shared := h.inflight.Do(consultationID, func() (interface{}, error) {
		return h.fulfil(ctx, consultationID, sessionID)
	})
	if shared {
		h.logger.Debug("joined in-flight verification", map[string]interface{}{
			"consultationId": consultationID,
		})
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fulfil generates and stores the paid consultation. Verifying the same
// session twice returns the stored result without generating again.
func (h *Handler) fulfil(ctx context.Context, consultationID, sessionID string) (string, error) {
	log := h.logger.WithFields(map[string]interface{}{
		"consultationId": consultationID,
		"sessionId":      sessionID,
	})

	if consultationID == "" || h.store == nil {
		log.Warn("paid session has no stored consultation", nil)
		return MessageGenerating, nil
	}

	record, err := h.store.Get(ctx, consultationID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("paid session has no stored consultation", nil)
		return MessageGenerating, nil
	}
	if err != nil {
		return "", apperrors.NewStoreError("read", err)
	}

	if record.Status == models.StatusCompleted && record.Result != nil {
		return MessageReady, nil
	}

	if h.locker != nil {
		release, acquired, err := h.locker.Acquire(ctx, leaseKeyPrefix+consultationID, h.leaseTTL())
		if err != nil {
			return "", apperrors.NewStoreError("lease", err)
		}
		if !acquired {
			log.Info("consultation already being fulfilled elsewhere", nil)
			return MessageGenerating, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release fulfilment lease", map[string]interface{}{"error": err.Error()})
			}
		}()

		// The previous holder may have finished between the read and the lease.
		if record, err = h.store.Get(ctx, consultationID); err != nil {
			return "", apperrors.NewStoreError("read", err)
		}
		if record.Status == models.StatusCompleted && record.Result != nil {
			return MessageReady, nil
		}
	}

	record.Status = models.StatusPaid
	record.PaymentSessionID = sessionID
	if err := h.store.Put(ctx, record); err != nil {
		return "", apperrors.NewStoreError("write", err)
	}

	result, err := h.generator.GenerateConsultation(ctx, record.Request, consultationID)
	if err != nil {
		return "", err
	}

	record.Result = result
	record.Status = models.StatusCompleted
	if err := h.store.Put(ctx, record); err != nil {
		return "", apperrors.NewStoreError("write", err)
	}

	log.Info("consultation fulfilled", map[string]interface{}{
		"confidenceScore": result.ConfidenceScore,
	})

	if h.deliverer != nil {
		h.deliverer.Deliver(ctx, record.Request, result)
	}
	return MessageReady, nil
}

func (h *Handler) leaseTTL() time.Duration {
	if h.config.LeaseTTL > 0 {
		return h.config.LeaseTTL
	}
	return 5 * time.Minute
}
