// internal/steps/consultation/generate-cover-letter/handler.go
package generatecoverletter

import (
	"context"
	"errors"
	"strings"
	"time"

	"visa-guru/internal/common/genai"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/models"
)

const StepName = "generate-cover-letter"

var ErrEmptyLetter = errors.New("EMPTY_LETTER")

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

// Generate always returns a non-empty letter.
func (h *Handler) Generate(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) string {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues(StepName).Observe(time.Since(start).Seconds())
	}()

	letter, err := h.execute(ctx, req, research)
	if err != nil {
		reason := "provider_failed"
		if errors.Is(err, genai.ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
			reason = "provider_timeout"
		}
		h.logger.Warn("cover letter generation degraded to fallback", map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		})
		metrics.FallbacksTotal.WithLabelValues(StepName, reason).Inc()
		metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeFallback).Inc()
		return FallbackLetter(req)
	}

	metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeSuccess).Inc()
	return letter
}

func (h *Handler) execute(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) (string, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	letter, err := h.generator.Generate(ctx, genai.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(req, research),
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(letter) == "" {
		return "", ErrEmptyLetter
	}
	return letter, nil
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) string {
	return h.Generate(ctx, req, research)
}
