// internal/steps/delivery/send-consultation/handler.go
package sendconsultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	awsclients "visa-guru/internal/common/aws"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/metrics"
	"visa-guru/internal/models"
)

const StepName = "send-consultation"

var ErrDeliveryFailed = errors.New("DELIVERY_FAILED")

type Handler struct {
	config    *Config
	sesClient awsclients.SESService
	snsClient awsclients.SNSService
	logger    logger.Logger
}

func NewHandler(config *Config, clients *awsclients.Clients, log logger.Logger) *Handler {
	h := &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"step": StepName}),
	}
	if clients != nil {
		h.sesClient = clients.SES
		h.snsClient = clients.SNS
	}
	return h
}

// Deliver emails the consultation and publishes a completion event. Failures
// are logged and counted only.
func (h *Handler) Deliver(ctx context.Context, req *models.ConsultationRequest, result *models.ConsultationResult) {
	h.Execute(ctx, req, result)
}

func (h *Handler) Execute(ctx context.Context, req *models.ConsultationRequest, result *models.ConsultationResult) *Output {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues(StepName).Observe(time.Since(start).Seconds())
	}()

	output := h.execute(ctx, req, result)

	outcome := metrics.OutcomeSuccess
	if output.EmailStatus == StatusFailed || output.EventStatus == StatusFailed {
		outcome = metrics.OutcomeError
	}
	metrics.StepsTotal.WithLabelValues(StepName, outcome).Inc()
	return output
}

func (h *Handler) execute(ctx context.Context, req *models.ConsultationRequest, result *models.ConsultationResult) *Output {
	output := &Output{
		DeliveryID:  uuid.New().String(),
		EmailStatus: StatusDisabled,
		EventStatus: StatusDisabled,
		SentAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if !h.config.Enabled || req == nil || result == nil {
		return output
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	log := h.logger.WithFields(map[string]interface{}{
		"consultationId": result.ConsultationID,
		"deliveryId":     output.DeliveryID,
	})

	if h.sesClient != nil && req.Email != "" {
		if err := h.sendEmail(ctx, req, result); err != nil {
			log.Error("consultation email failed", map[string]interface{}{
				"error": err.Error(),
			})
			output.EmailStatus = StatusFailed
		} else {
			output.EmailStatus = StatusSent
		}
	}

	if h.snsClient != nil && h.config.TopicARN != "" {
		if err := h.publishEvent(ctx, result, req, output); err != nil {
			log.Error("completion event failed", map[string]interface{}{
				"error": err.Error(),
			})
			output.EventStatus = StatusFailed
		} else {
			output.EventStatus = StatusSent
		}
	}

	log.Info("consultation delivered", map[string]interface{}{
		"emailStatus": output.EmailStatus,
		"eventStatus": output.EventStatus,
	})
	return output
}

func (h *Handler) sendEmail(ctx context.Context, req *models.ConsultationRequest, result *models.ConsultationResult) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{req.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject(req))},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(renderBody(req, result))},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (h *Handler) publishEvent(ctx context.Context, result *models.ConsultationResult, req *models.ConsultationRequest, output *Output) error {
	payload, err := json.Marshal(completionEvent{
		Event:           EventConsultationCompleted,
		DeliveryID:      output.DeliveryID,
		ConsultationID:  result.ConsultationID,
		Destination:     req.DestinationCountry,
		ConfidenceScore: result.ConfidenceScore,
		Documents:       len(result.DocumentsRequired),
		SentAt:          output.SentAt,
	})
	if err != nil {
		return err
	}

	_, err = h.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(h.config.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventConsultationCompleted),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}
