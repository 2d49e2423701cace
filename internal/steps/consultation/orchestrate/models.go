// internal/steps/consultation/orchestrate/models.go
package orchestrate

import (
	"context"
	"fmt"

	"visa-guru/internal/models"
)

const (
	defaultSource         = "AI-generated guidance"
	defaultProcessingTime = "7-14 business days"
)

type Researcher interface {
	Research(ctx context.Context, req *models.ConsultationRequest) models.ResearchSummary
}

type ChecklistGenerator interface {
	Generate(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) []models.DocumentItem
}

type LetterGenerator interface {
	Generate(ctx context.Context, req *models.ConsultationRequest, research models.ResearchSummary) string
}

func strategicNotes(req *models.ConsultationRequest) []string {
	return []string{
		fmt.Sprintf("Apply through %s consulate to leverage your %s status", req.CurrentCountry, req.ResidencyStatus),
		fmt.Sprintf("Emphasize your ties to %s in your application", req.CurrentCountry),
		"Submit application at least 2-3 weeks before travel dates",
		"Ensure all documents are current and properly certified",
	}
}

func riskAssessment(req *models.ConsultationRequest) string {
	return fmt.Sprintf(
		"Based on your profile as a %s %s in %s, your visa application has a good chance of approval if properly documented.",
		req.Nationality, req.ResidencyStatus, req.CurrentCountry,
	)
}

// Preview is identical for every request and never involves the provider.
func Preview() models.PreviewSummary {
	return models.PreviewSummary{
		SampleDocuments: []string{
			"Valid passport (6+ months validity)",
			"Visa application form",
			"Passport photographs",
			"Proof of residency status",
			"Financial documentation",
		},
		EstimatedProcessing: "7-15 business days",
		ConfidencePreview:   "Based on your profile, this appears to be a standard application case.",
		Note:                "Full personalized checklist, cover letter, and strategic guidance available with complete consultation.",
	}
}
