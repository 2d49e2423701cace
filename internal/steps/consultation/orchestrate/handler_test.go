package orchestrate

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/genai"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/observability"
	"visa-guru/internal/models"
	generatechecklist "visa-guru/internal/steps/consultation/generate-checklist"
	generatecoverletter "visa-guru/internal/steps/consultation/generate-cover-letter"
	researchrequirements "visa-guru/internal/steps/consultation/research-requirements"
)

// ==========================
// Test doubles
// ==========================

type countingGenerator struct {
	calls   int32
	respond func(ctx context.Context, req genai.Request) (string, error)
}

func (c *countingGenerator) Generate(ctx context.Context, req genai.Request) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.respond(ctx, req)
}

type researchFunc func(ctx context.Context, req *models.ConsultationRequest) models.ResearchSummary

func (f researchFunc) Research(ctx context.Context, req *models.ConsultationRequest) models.ResearchSummary {
	return f(ctx, req)
}

type checklistFunc func(ctx context.Context, req *models.ConsultationRequest, r models.ResearchSummary) []models.DocumentItem

func (f checklistFunc) Generate(ctx context.Context, req *models.ConsultationRequest, r models.ResearchSummary) []models.DocumentItem {
	return f(ctx, req, r)
}

type letterFunc func(ctx context.Context, req *models.ConsultationRequest, r models.ResearchSummary) string

func (f letterFunc) Generate(ctx context.Context, req *models.ConsultationRequest, r models.ResearchSummary) string {
	return f(ctx, req, r)
}

// ==========================
// Helpers
// ==========================

func createTestRequest() *models.ConsultationRequest {
	return &models.ConsultationRequest{
		Nationality:        "Brazil",
		CurrentCountry:     "Brazil",
		ResidencyStatus:    models.ResidencyCitizen,
		DestinationCountry: "Germany",
		TravelPurpose:      models.PurposeTourism,
		TravelDates:        "2025-06",
		Duration:           "10 days",
		PreviousRejections: false,
		Email:              "a@b.com",
	}
}

// createPipeline wires the real steps around a fake provider.
func createPipeline(t *testing.T, gen genai.TextGenerator) *Handler {
	log := logger.NewTestLogger(t)
	return NewHandler(
		researchrequirements.NewHandler(researchrequirements.DefaultConfig(), nil, log),
		generatechecklist.NewHandler(&generatechecklist.Config{Timeout: time.Second, Temperature: 0.3}, gen, log),
		generatecoverletter.NewHandler(&generatecoverletter.Config{Timeout: time.Second, Temperature: 0.4}, gen, log),
		observability.NewNoop(),
		log,
	)
}

func workingProvider() *countingGenerator {
	return &countingGenerator{respond: func(_ context.Context, req genai.Request) (string, error) {
		return "generated: " + req.System[:10], nil
	}}
}

func brokenProvider() *countingGenerator {
	return &countingGenerator{respond: func(context.Context, genai.Request) (string, error) {
		return "", fmt.Errorf("%w: 500", genai.ErrProviderFailed)
	}}
}

// ==========================
// GenerateConsultation
// ==========================

func TestGenerateConsultation_BrazilToGermany(t *testing.T) {
	gen := workingProvider()
	h := createPipeline(t, gen)

	result, err := h.GenerateConsultation(context.Background(), createTestRequest(), "c-123")
	require.NoError(t, err)

	assert.Equal(t, "c-123", result.ConsultationID)
	assert.Equal(t, 95, result.ConfidenceScore)
	assert.Len(t, result.DocumentsRequired, 6)
	assert.NotEmpty(t, result.CoverLetter)
	assert.Equal(t, "5-15 business days", result.EstimatedProcessingTime)
	assert.Equal(t, []string{
		"Germany embassy official website",
		"Government immigration portal",
		"Consulate general information",
	}, result.Sources)
	assert.Equal(t, []string{
		"Apply through Brazil consulate to leverage your citizen status",
		"Emphasize your ties to Brazil in your application",
		"Submit application at least 2-3 weeks before travel dates",
		"Ensure all documents are current and properly certified",
	}, result.StrategicNotes)
	assert.Equal(t,
		"Based on your profile as a Brazil citizen in Brazil, your visa application has a good chance of approval if properly documented.",
		result.RiskAssessment)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gen.calls))
}

func TestGenerateConsultation_PreviousRejections(t *testing.T) {
	h := createPipeline(t, workingProvider())
	req := createTestRequest()
	req.PreviousRejections = true

	result, err := h.GenerateConsultation(context.Background(), req, "c-124")
	require.NoError(t, err)
	assert.Equal(t, 75, result.ConfidenceScore)
}

func TestGenerateConsultation_ProviderDownStillSucceeds(t *testing.T) {
	h := createPipeline(t, brokenProvider())
	req := createTestRequest()

	result, err := h.GenerateConsultation(context.Background(), req, "c-125")
	require.NoError(t, err)

	require.Len(t, result.DocumentsRequired, 1)
	assert.Equal(t, "Passport", result.DocumentsRequired[0].Name)
	assert.Equal(t, generatecoverletter.FallbackLetter(req), result.CoverLetter)
	assert.Equal(t, 95, result.ConfidenceScore)
}

func TestGenerateConsultation_StepsRunConcurrently(t *testing.T) {
	checklistStarted := make(chan struct{})
	letterStarted := make(chan struct{})

	h := NewHandler(
		researchFunc(func(_ context.Context, req *models.ConsultationRequest) models.ResearchSummary {
			return researchrequirements.StaticSummary(req)
		}),
		checklistFunc(func(context.Context, *models.ConsultationRequest, models.ResearchSummary) []models.DocumentItem {
			close(checklistStarted)
			select {
			case <-letterStarted:
			case <-time.After(time.Second):
				t.Error("cover letter did not start while checklist was running")
			}
			return generatechecklist.FallbackChecklist()
		}),
		letterFunc(func(context.Context, *models.ConsultationRequest, models.ResearchSummary) string {
			close(letterStarted)
			select {
			case <-checklistStarted:
			case <-time.After(time.Second):
				t.Error("checklist did not start while cover letter was running")
			}
			return "letter"
		}),
		observability.NewNoop(),
		logger.NewTestLogger(t),
	)

	result, err := h.GenerateConsultation(context.Background(), createTestRequest(), "c-126")
	require.NoError(t, err)
	assert.Equal(t, "letter", result.CoverLetter)
}

func TestGenerateConsultation_ResearchDefaults(t *testing.T) {
	h := NewHandler(
		researchFunc(func(context.Context, *models.ConsultationRequest) models.ResearchSummary {
			return models.ResearchSummary{}
		}),
		checklistFunc(func(context.Context, *models.ConsultationRequest, models.ResearchSummary) []models.DocumentItem {
			return nil
		}),
		letterFunc(func(context.Context, *models.ConsultationRequest, models.ResearchSummary) string {
			return "letter"
		}),
		observability.NewNoop(),
		logger.NewTestLogger(t),
	)

	result, err := h.GenerateConsultation(context.Background(), createTestRequest(), "c-127")
	require.NoError(t, err)
	assert.Equal(t, []string{"AI-generated guidance"}, result.Sources)
	assert.Equal(t, "7-14 business days", result.EstimatedProcessingTime)
}

func TestGenerateConsultation_Failures(t *testing.T) {
	panicking := checklistFunc(func(context.Context, *models.ConsultationRequest, models.ResearchSummary) []models.DocumentItem {
		panic("boom")
	})

	tests := []struct {
		name   string
		ctx    func() context.Context
		req    *models.ConsultationRequest
		id     string
		broken bool
	}{
		{name: "nil request", ctx: context.Background, req: nil, id: "c-1"},
		{name: "empty id", ctx: context.Background, req: createTestRequest(), id: ""},
		{
			name: "cancelled context",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			req: createTestRequest(),
			id:  "c-1",
		},
		{name: "step panic", ctx: context.Background, req: createTestRequest(), id: "c-1", broken: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createPipeline(t, workingProvider())
			if tt.broken {
				h.checklist = panicking
			}

			result, err := h.GenerateConsultation(tt.ctx(), tt.req, tt.id)
			require.Error(t, err)
			assert.Nil(t, result)

			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeGenerationFailed, stdErr.Code)
			assert.ErrorIs(t, err, ErrGenerationFailed)
		})
	}
}

// ==========================
// GeneratePreview
// ==========================

func TestGeneratePreview_NeverCallsProvider(t *testing.T) {
	gen := workingProvider()
	h := createPipeline(t, gen)

	for _, status := range []models.ResidencyStatus{models.ResidencyCitizen, models.ResidencyStudent} {
		req := createTestRequest()
		req.ResidencyStatus = status
		preview := h.GeneratePreview(req)

		assert.Len(t, preview.SampleDocuments, 5)
		assert.Equal(t, "7-15 business days", preview.EstimatedProcessing)
		assert.Equal(t, "Based on your profile, this appears to be a standard application case.", preview.ConfidencePreview)
		assert.NotEmpty(t, preview.Note)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&gen.calls))
}
