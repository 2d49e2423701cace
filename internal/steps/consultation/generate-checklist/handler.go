// internal/steps/consultation/generate-checklist/handler.go
package generatechecklist

import (
	"context"
	"errors"
	"sort"
	"time"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/genai"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/models"
)

const StepName = "generate-checklist"

type Handler struct {
	config    *Config
	generator genai.TextGenerator
	logger    logger.Logger
}

func NewHandler(config *Config, generator genai.TextGenerator, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		generator: generator,
		logger:    log.WithFields(map[string]interface{}{"step": StepName}),
	}
}

// Generate never fails. Provider errors yield FallbackChecklist; parse errors
// yield BaselineChecklist. Items are ordered high priority first.
func (h *Handler) Generate(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) []models.DocumentItem {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues(StepName).Observe(time.Since(start).Seconds())
	}()

	items, err := h.execute(ctx, req, research)
	switch {
	case err == nil:
		metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeSuccess).Inc()
	case errors.Is(err, ErrChecklistParse):
		h.fallback(err, "parse_failed")
		items = BaselineChecklist(req)
	default:
		h.fallback(err, "provider_failed")
		items = FallbackChecklist()
	}

	sortByPriority(items)
	return items
}

func (h *Handler) execute(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) ([]models.DocumentItem, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	text, err := h.generator.Generate(ctx, genai.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(req, research),
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("checklist generated", map[string]interface{}{
		"length": len(text),
	})

	if !h.config.ParseOutput {
		return BaselineChecklist(req), nil
	}

	items, err := parseChecklist(text)
	if err != nil {
		return nil, err
	}
	return ensureResidency(items, req), nil
}

func (h *Handler) fallback(err error, reason string) {
	stdErr := classify(err)
	h.logger.WithError(stdErr).Warn("checklist generation degraded to fallback", map[string]interface{}{
		"errorCode": stdErr.Code,
		"reason":    reason,
	})
	metrics.FallbacksTotal.WithLabelValues(StepName, reason).Inc()
	metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeFallback).Inc()
}

func classify(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrChecklistParse):
		return apperrors.NewChecklistParseError(err)
	case errors.Is(err, genai.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewProviderTimeoutError(err)
	default:
		return apperrors.NewProviderError(err)
	}
}

func sortByPriority(items []models.DocumentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Rank() < items[j].Priority.Rank()
	})
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) []models.DocumentItem {
	return h.Generate(ctx, req, research)
}
