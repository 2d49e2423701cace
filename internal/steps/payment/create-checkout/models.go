// internal/steps/payment/create-checkout/models.go
package createcheckout

const (
	ProductName        = "Visa Consultation - Personalized Guidance"
	ProductDescription = "AI-powered visa application guidance with personalized document checklist and cover letter"

	MetadataConsultationID = "consultation_id"
)
