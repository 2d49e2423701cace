// internal/steps/consultation/score-confidence/models.go
package scoreconfidence

type Output struct {
	Score   int            `json:"score"`
	Factors map[string]int `json:"factors"`
}

const (
	BaseScore = 75
	MinScore  = 30
	MaxScore  = 95
)
