// internal/steps/consultation/generate-checklist/prompt.go
package generatechecklist

import (
	"fmt"
	"strings"

	"visa-guru/internal/models"
)

func buildPrompt(req *models.ConsultationRequest, research models.ResearchSummary) string {
	parts := []string{
		"Generate a personalized visa document checklist for:",
		"",
		"Applicant Profile:",
		fmt.Sprintf("- Nationality: %s", req.Nationality),
		fmt.Sprintf("- Dual Citizenship: %s", orDefault(req.DualCitizenship, "None")),
		fmt.Sprintf("- Current Country: %s", req.CurrentCountry),
		fmt.Sprintf("- Residency Status: %s", residency(req)),
		fmt.Sprintf("- Destination: %s", req.DestinationCountry),
		fmt.Sprintf("- Travel Purpose: %s", req.TravelPurpose),
		fmt.Sprintf("- Duration: %s", req.Duration),
		fmt.Sprintf("- Previous Rejections: %s", yesNo(req.PreviousRejections)),
		"",
		fmt.Sprintf("Additional Context: %s", orDefault(req.AdditionalInfo, "None")),
		"",
	}

	if len(research.Sources) > 0 {
		parts = append(parts,
			"Known Requirements:",
			fmt.Sprintf("- Visa Required: %s", yesNo(research.VisaRequired)),
			fmt.Sprintf("- Processing Time: %s", research.ProcessingTime),
			fmt.Sprintf("- Validity: %s", research.Validity),
			fmt.Sprintf("- Entry Type: %s", research.EntryType),
			"",
		)
	}

	parts = append(parts,
		"Based on this profile, generate a prioritized document checklist with:",
		"1. HIGH priority (absolutely required)",
		"2. MEDIUM priority (strongly recommended)",
		"3. LOW priority (helpful but optional)",
		"",
		"For each document, provide:",
		"- Clear name",
		"- Specific requirements/notes for this applicant's situation",
		"- Why it's important for their specific case",
		"",
		"Focus on edge cases and nuances that generic checklists miss.",
	)

	return strings.Join(parts, "\n")
}

func residency(req *models.ConsultationRequest) string {
	if req.ResidencyDetails != "" {
		return fmt.Sprintf("%s (%s)", req.ResidencyStatus, req.ResidencyDetails)
	}
	return string(req.ResidencyStatus)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
