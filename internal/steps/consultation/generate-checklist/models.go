// internal/steps/consultation/generate-checklist/models.go
package generatechecklist

import (
	"fmt"

	"visa-guru/internal/models"
)

const systemPrompt = "You are a visa application expert who specializes in complex immigration scenarios. Provide detailed, personalized guidance."

const proofOfResidency = "Proof of Residency"

// BaselineChecklist is the checklist returned after a successful generation.
func BaselineChecklist(req *models.ConsultationRequest) []models.DocumentItem {
	return []models.DocumentItem{
		{
			Name:        "Valid Passport",
			Priority:    models.PriorityHigh,
			Description: fmt.Sprintf("Your %s passport with at least 6 months validity", req.Nationality),
			Notes:       "Ensure signature is clear and passport is not damaged",
		},
		{
			Name:        "Visa Application Form",
			Priority:    models.PriorityHigh,
			Description: fmt.Sprintf("Complete %s visa application form", req.DestinationCountry),
			Notes:       "Fill out accurately - any mistakes can cause delays",
		},
		{
			Name:        "Passport Photos",
			Priority:    models.PriorityHigh,
			Description: "Recent passport-sized photographs meeting specific requirements",
			Notes:       "Check embassy website for exact photo specifications",
		},
		residencyItem(req),
		{
			Name:        "Travel Itinerary",
			Priority:    models.PriorityMedium,
			Description: "Detailed travel plans including accommodation",
			Notes:       "Can be provisional but should show realistic planning",
		},
		{
			Name:        "Financial Documentation",
			Priority:    models.PriorityHigh,
			Description: "Bank statements showing sufficient funds",
			Notes:       fmt.Sprintf("Show ability to support yourself during %s stay", req.Duration),
		},
	}
}

// residencyItem is medium for citizens and high for everyone else.
func residencyItem(req *models.ConsultationRequest) models.DocumentItem {
	priority := models.PriorityHigh
	if req.ResidencyStatus == models.ResidencyCitizen {
		priority = models.PriorityMedium
	}
	return models.DocumentItem{
		Name:        proofOfResidency,
		Priority:    priority,
		Description: fmt.Sprintf("Evidence of your %s status in %s", req.ResidencyStatus, req.CurrentCountry),
		Notes:       "Green card, visa stamp, or residence permit as applicable",
	}
}

// FallbackChecklist is returned when the provider cannot be reached.
func FallbackChecklist() []models.DocumentItem {
	return []models.DocumentItem{
		{
			Name:        "Passport",
			Priority:    models.PriorityHigh,
			Description: "Valid passport with 6+ months validity",
			Notes:       "Required for all visa applications",
		},
	}
}
