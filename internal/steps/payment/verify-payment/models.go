// internal/steps/payment/verify-payment/models.go
package verifypayment

import (
	"context"
	"time"

	"visa-guru/internal/models"
)

const (
	PaymentStatusPaid      = "paid"
	PaymentStatusCompleted = "completed"

	MessageNotCompleted = "Payment not completed"
	MessageGenerating   = "Payment verified. Generating your personalized consultation..."
	MessageReady        = "Payment verified. Your consultation is ready."

	metadataConsultationID = "consultation_id"

	leaseKeyPrefix = "visa-guru:verify:"
)

type ConsultationGenerator interface {
	GenerateConsultation(ctx context.Context, req *models.ConsultationRequest, consultationID string) (*models.ConsultationResult, error)
}

// Deliverer sends a completed consultation to the applicant. It must not fail
// the payment flow.
type Deliverer interface {
	Deliver(ctx context.Context, req *models.ConsultationRequest, result *models.ConsultationResult)
}

// Locker hands out leases shared by every API instance. acquired is false
// while another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}
