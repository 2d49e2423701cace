// internal/steps/consultation/score-confidence/handler.go
package scoreconfidence

import "visa-guru/internal/models"

const StepName = "score-confidence"

var residencyAdjustment = map[models.ResidencyStatus]int{
	models.ResidencyCitizen:           15,
	models.ResidencyPermanentResident: 10,
	models.ResidencyTemporaryWorker:   5,
}

const (
	rejectionPenalty = -20
	purposeBonus     = 5
)

// Score maps a request to a confidence score in [MinScore, MaxScore].
func Score(req *models.ConsultationRequest) int {
	return Execute(req).Score
}

// Execute returns the score with the adjustment contributed by each factor.
func Execute(req *models.ConsultationRequest) *Output {
	factors := map[string]int{
		"base":      BaseScore,
		"residency": residencyAdjustment[req.ResidencyStatus],
	}

	if req.PreviousRejections {
		factors["previousRejections"] = rejectionPenalty
	}
	if req.TravelPurpose == models.PurposeTourism || req.TravelPurpose == models.PurposeBusiness {
		factors["travelPurpose"] = purposeBonus
	}

	total := 0
	for _, v := range factors {
		total += v
	}

	return &Output{
		Score:   clamp(total, MinScore, MaxScore),
		Factors: factors,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
