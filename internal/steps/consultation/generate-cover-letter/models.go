// internal/steps/consultation/generate-cover-letter/models.go
package generatecoverletter

import (
	"fmt"
	"strings"

	"visa-guru/internal/models"
)

const systemPrompt = "You are an immigration consultant who writes compelling visa application cover letters. Focus on addressing visa officer concerns while highlighting applicant strengths."

const placeholder = "[This cover letter could not be generated due to a technical error. Please contact support.]"

// FallbackLetter is returned whenever the provider fails.
func FallbackLetter(req *models.ConsultationRequest) string {
	return strings.Join([]string{
		"Dear Visa Officer,",
		"",
		fmt.Sprintf("I am writing to apply for a %s visa for %s purposes.", req.DestinationCountry, req.TravelPurpose),
		"",
		placeholder,
		"",
		"Sincerely,",
		"[Applicant Name]",
	}, "\n")
}

func buildPrompt(req *models.ConsultationRequest, research models.ResearchSummary) string {
	additional := req.AdditionalInfo
	if additional == "" {
		additional = "Standard application"
	}

	parts := []string{
		"Write a professional visa application cover letter for:",
		"",
		fmt.Sprintf("Applicant: %s citizen", req.Nationality),
		fmt.Sprintf("Current Status: %s in %s", req.ResidencyStatus, req.CurrentCountry),
		fmt.Sprintf("Applying for: %s visa", req.DestinationCountry),
		fmt.Sprintf("Purpose: %s", req.TravelPurpose),
		fmt.Sprintf("Duration: %s", req.Duration),
		fmt.Sprintf("Travel Dates: %s", req.TravelDates),
	}
	if req.DualCitizenship != "" {
		parts = append(parts, fmt.Sprintf("Dual Citizenship: %s", req.DualCitizenship))
	}
	if research.EntryType != "" {
		parts = append(parts, fmt.Sprintf("Requested Entry: %s", research.EntryType))
	}

	parts = append(parts,
		"",
		"Key points to address:",
		fmt.Sprintf("- Why they want to visit %s", req.DestinationCountry),
		fmt.Sprintf("- Their ties to %s (why they will return)", req.CurrentCountry),
		fmt.Sprintf("- Their specific situation as a %s %s", req.Nationality, req.ResidencyStatus),
		"- Financial capability and travel planning",
		"",
		fmt.Sprintf("Additional context: %s", additional),
		fmt.Sprintf("Previous rejections: %t", req.PreviousRejections),
		"",
		"Write a compelling but honest letter that addresses potential visa officer concerns.",
		"Keep it professional, concise (1-2 pages), and specific to their situation.",
	)

	return strings.Join(parts, "\n")
}
