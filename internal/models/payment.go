// internal/models/payment.go
package models

type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "pending"
	StatusPaid      ConsultationStatus = "paid"
	StatusCompleted ConsultationStatus = "completed"
)

type CheckoutRequest struct {
	ConsultationID string `json:"consultation_id"`
	Email          string `json:"email"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

type VerifyRequest struct {
	SessionID string `json:"session_id"`
}

type VerifyResponse struct {
	Success        bool   `json:"success"`
	PaymentStatus  string `json:"payment_status"`
	ConsultationID string `json:"consultation_id,omitempty"`
	Message        string `json:"message"`
}
