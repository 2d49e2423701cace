// internal/steps/consultation/orchestrate/handler.go
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/common/observability"
	"visa-guru/internal/models"
	scoreconfidence "visa-guru/internal/steps/consultation/score-confidence"
)

const StepName = "orchestrate"

var ErrGenerationFailed = errors.New("GENERATION_FAILED")

type Handler struct {
	researcher Researcher
	checklist  ChecklistGenerator
	letter     LetterGenerator
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(researcher Researcher, checklist ChecklistGenerator, letter LetterGenerator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		researcher: researcher,
		checklist:  checklist,
		letter:     letter,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"step": StepName}),
	}
}

// GenerateConsultation runs research, then the checklist and cover letter
// concurrently, then assembles the result. Step failures are absorbed by the
// steps themselves; an error here is always a GENERATION_FAILED StandardError.
func (h *Handler) GenerateConsultation(ctx context.Context, req *models.ConsultationRequest, consultationID string) (*models.ConsultationResult, error) {
	start := time.Now()
	log := h.logger.WithFields(map[string]interface{}{"consultationId": consultationID})

	result, err := h.execute(ctx, req, consultationID)
	elapsed := time.Since(start)
	metrics.StepDuration.WithLabelValues(StepName).Observe(elapsed.Seconds())

	if err != nil {
		log.Error("consultation generation failed", map[string]interface{}{
			"error":      err.Error(),
			"durationMs": elapsed.Milliseconds(),
		})
		metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeError).Inc()
		h.obs.RecordConsultation(context.Background(), elapsed, metrics.OutcomeError)
		return nil, apperrors.NewGenerationFailedError(err)
	}

	log.Info("consultation generated", map[string]interface{}{
		"documents":       len(result.DocumentsRequired),
		"confidenceScore": result.ConfidenceScore,
		"durationMs":      elapsed.Milliseconds(),
	})
	metrics.StepsTotal.WithLabelValues(StepName, metrics.OutcomeSuccess).Inc()
	h.obs.RecordConsultation(ctx, elapsed, metrics.OutcomeSuccess)
	return result, nil
}

func (h *Handler) execute(ctx context.Context, req *models.ConsultationRequest, consultationID string) (*models.ConsultationResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrGenerationFailed)
	}
	if consultationID == "" {
		return nil, fmt.Errorf("%w: empty consultation id", ErrGenerationFailed)
	}

	research, err := guard(func() models.ResearchSummary { return h.researcher.Research(ctx, req) })
	if err != nil {
		return nil, err
	}

	var (
		documents   []models.DocumentItem
		coverLetter string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		documents, err = guard(func() []models.DocumentItem { return h.checklist.Generate(gctx, req, research) })
		return err
	})
	g.Go(func() error {
		var err error
		coverLetter, err = guard(func() string { return h.letter.Generate(gctx, req, research) })
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The caller went away; the fallbacks above are not worth returning.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	sources := research.Sources
	if len(sources) == 0 {
		sources = []string{defaultSource}
	}
	processing := research.ProcessingTime
	if processing == "" {
		processing = defaultProcessingTime
	}

	return &models.ConsultationResult{
		ConsultationID:          consultationID,
		RiskAssessment:          riskAssessment(req),
		ConfidenceScore:         scoreconfidence.Score(req),
		DocumentsRequired:       documents,
		CoverLetter:             coverLetter,
		StrategicNotes:          strategicNotes(req),
		Sources:                 sources,
		EstimatedProcessingTime: processing,
	}, nil
}

// guard turns a panic inside a step into an error.
func guard[T any](fn func() T) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: step panicked: %v", ErrGenerationFailed, r)
		}
	}()
	return fn(), nil
}

// GeneratePreview never calls the provider and never fails.
func (h *Handler) GeneratePreview(_ *models.ConsultationRequest) models.PreviewSummary {
	return Preview()
}
