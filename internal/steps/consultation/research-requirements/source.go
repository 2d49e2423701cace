// internal/steps/consultation/research-requirements/source.go
package researchrequirements

import (
	"context"
	"fmt"

	"visa-guru/internal/models"
)

// Source looks up visa requirements for a request. Implementations may fail;
// the Handler turns any failure into the static summary.
type Source interface {
	Lookup(ctx context.Context, req *models.ConsultationRequest) (*models.ResearchSummary, error)
}

// StaticSource answers every request with the same generic summary.
type StaticSource struct{}

func (StaticSource) Lookup(_ context.Context, req *models.ConsultationRequest) (*models.ResearchSummary, error) {
	summary := StaticSummary(req)
	return &summary, nil
}

func StaticSummary(req *models.ConsultationRequest) models.ResearchSummary {
	return models.ResearchSummary{
		VisaRequired:   true,
		ProcessingTime: "5-15 business days",
		Validity:       "90 days",
		EntryType:      "Single/Multiple entry available",
		Sources: []string{
			fmt.Sprintf("%s embassy official website", req.DestinationCountry),
			"Government immigration portal",
			"Consulate general information",
		},
	}
}

// searchQuery is the free-text phrasing used by search-backed sources.
func searchQuery(req *models.ConsultationRequest) string {
	return fmt.Sprintf("%s citizen %s %s visa requirements %s %s",
		req.Nationality, req.ResidencyStatus, req.CurrentCountry,
		req.DestinationCountry, req.TravelPurpose)
}
