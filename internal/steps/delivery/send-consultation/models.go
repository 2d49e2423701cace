// internal/steps/delivery/send-consultation/models.go
package sendconsultation

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"

	EventConsultationCompleted = "consultation.completed"
)

type Output struct {
	DeliveryID  string `json:"deliveryId"`
	EmailStatus string `json:"emailStatus"`
	EventStatus string `json:"eventStatus"`
	SentAt      string `json:"sentAt"`
}

type completionEvent struct {
	Event           string `json:"event"`
	DeliveryID      string `json:"delivery_id"`
	ConsultationID  string `json:"consultation_id"`
	Destination     string `json:"destination_country"`
	ConfidenceScore int    `json:"confidence_score"`
	Documents       int    `json:"documents"`
	SentAt          string `json:"sent_at"`
}
