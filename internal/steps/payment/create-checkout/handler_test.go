package createcheckout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/payment"
	"visa-guru/internal/models"
	"visa-guru/internal/store"
)

// ==========================
// Mock Implementations
// ==========================

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if s, ok := args.Get(0).(*payment.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessor) RetrieveSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, ok := args.Get(0).(*payment.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessor) VerifyWebhook(payload []byte, header string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, header)
	if e, ok := args.Get(0).(*payment.WebhookEvent); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

// ==========================
// Helpers
// ==========================

func createTestConfig() *Config {
	return &Config{
		AmountCents: 4900,
		Currency:    "usd",
		FrontendURL: "https://visa.example.com/",
		Timeout:     time.Second,
	}
}

func createTestRequest() *models.CheckoutRequest {
	return &models.CheckoutRequest{ConsultationID: "c-1", Email: "a@b.com"}
}

// ==========================
// Execute
// ==========================

func TestExecute_CreatesSession(t *testing.T) {
	processor := &MockProcessor{}
	processor.On("CreateSession", mock.Anything, payment.SessionRequest{
		AmountCents:   4900,
		Currency:      "usd",
		ProductName:   "Visa Consultation - Personalized Guidance",
		Description:   ProductDescription,
		SuccessURL:    "https://visa.example.com/success?session_id={CHECKOUT_SESSION_ID}&consultation_id=c-1",
		CancelURL:     "https://visa.example.com/cancel",
		CustomerEmail: "a@b.com",
		Metadata:      map[string]string{"consultation_id": "c-1"},
	}).Return(&payment.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil)

	h := NewHandler(createTestConfig(), processor, nil, logger.NewTestLogger(t))
	resp, err := h.Execute(context.Background(), createTestRequest())

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp.CheckoutURL)
	processor.AssertExpectations(t)
}

func TestExecute_AttachesSessionToStoredConsultation(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, &store.Record{
		ConsultationID: "c-1",
		Status:         models.StatusPending,
		Request:        &models.ConsultationRequest{Nationality: "Brazil"},
	}))

	processor := &MockProcessor{}
	processor.On("CreateSession", mock.Anything, mock.Anything).
		Return(&payment.Session{ID: "cs_test_2", URL: "https://checkout/2"}, nil)

	h := NewHandler(createTestConfig(), processor, st, logger.NewTestLogger(t))
	_, err := h.Execute(ctx, createTestRequest())
	require.NoError(t, err)

	record, err := st.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", record.PaymentSessionID)
	assert.Equal(t, models.StatusPending, record.Status)
}

func TestExecute_UnknownConsultationStillCreatesSession(t *testing.T) {
	processor := &MockProcessor{}
	processor.On("CreateSession", mock.Anything, mock.Anything).
		Return(&payment.Session{ID: "cs_test_3", URL: "https://checkout/3"}, nil)

	h := NewHandler(createTestConfig(), processor, store.NewMemoryStore(), logger.NewTestLogger(t))
	resp, err := h.Execute(context.Background(), createTestRequest())

	require.NoError(t, err)
	assert.Equal(t, "cs_test_3", resp.SessionID)
}

func TestExecute_ProcessorError(t *testing.T) {
	processor := &MockProcessor{}
	processor.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, errors.New("Invalid API Key provided"))

	h := NewHandler(createTestConfig(), processor, nil, logger.NewTestLogger(t))
	resp, err := h.Execute(context.Background(), createTestRequest())

	require.Error(t, err)
	assert.Nil(t, resp)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeProcessorError, stdErr.Code)
	assert.Equal(t, "Payment session creation failed", stdErr.Message)
	assert.Contains(t, stdErr.Details, "Invalid API Key provided")
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *models.CheckoutRequest
	}{
		{name: "nil body", req: nil},
		{name: "missing consultation id", req: &models.CheckoutRequest{Email: "a@b.com"}},
		{name: "missing email", req: &models.CheckoutRequest{ConsultationID: "c-1", Email: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &MockProcessor{}
			h := NewHandler(createTestConfig(), processor, nil, logger.NewTestLogger(t))

			_, err := h.Execute(context.Background(), tt.req)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
			processor.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.AmountCents = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FrontendURL = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_SuccessURLEscapesConsultationID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrontendURL = "https://visa.example.com/"

	raw := cfg.successURL("c-1&session_id=evil#frag")
	assert.Equal(t,
		"https://visa.example.com/success?session_id={CHECKOUT_SESSION_ID}&consultation_id=c-1%26session_id%3Devil%23frag",
		raw)

	parsed, err := url.Parse(strings.Replace(raw, "{CHECKOUT_SESSION_ID}", "cs_1", 1))
	require.NoError(t, err)
	assert.Empty(t, parsed.Fragment)
	assert.Equal(t, "cs_1", parsed.Query().Get("session_id"))
	assert.Equal(t, "c-1&session_id=evil#frag", parsed.Query().Get("consultation_id"))
}
