// internal/steps/consultation/research-requirements/handler.go
package researchrequirements

import (
	"context"
	"time"

	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/models"
)

const StepName = "research-requirements"

type Handler struct {
	config *Config
	source Source
	logger logger.Logger
}

func NewHandler(config *Config, source Source, log logger.Logger) *Handler {
	if source == nil {
		source = StaticSource{}
	}
	return &Handler{
		config: config,
		source: source,
		logger: log.WithFields(map[string]interface{}{"step": StepName}),
	}
}

// Research never fails: any source error or timeout yields the static summary.
func (h *Handler) Research(ctx context.Context, req *models.ConsultationRequest) models.ResearchSummary {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues(StepName).Observe(time.Since(start).Seconds())
	}()

	summary, err := h.execute(ctx, req)
	if err != nil {
		h.logger.Warn("research lookup failed, using static summary", map[string]interface{}{
			"destination": req.DestinationCountry,
			"error":       err.Error(),
		})
		metrics.FallbacksTotal.WithLabelValues(StepName, "lookup_failed").Inc()
		metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeFallback).Inc()
		return StaticSummary(req)
	}

	metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeSuccess).Inc()
	return *summary
}

func (h *Handler) execute(ctx context.Context, req *models.ConsultationRequest) (*models.ResearchSummary, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	return h.source.Lookup(ctx, req)
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, req *models.ConsultationRequest) models.ResearchSummary {
	return h.Research(ctx, req)
}
