package verifypayment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
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

type fakeGenerator struct {
	calls int
	err   error
}

func (f *fakeGenerator) GenerateConsultation(_ context.Context, req *models.ConsultationRequest, id string) (*models.ConsultationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.ConsultationResult{
		ConsultationID:  id,
		ConfidenceScore: 95,
		CoverLetter:     "Dear officer, " + req.Nationality,
	}, nil
}

type fakeDeliverer struct {
	delivered []string
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ *models.ConsultationRequest, result *models.ConsultationResult) {
	f.delivered = append(f.delivered, result.ConsultationID)
}

type failingStore struct {
	store.Store
	getErr error
	putErr error
}

func (f failingStore) Get(ctx context.Context, id string) (*store.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, id)
}

func (f failingStore) Put(ctx context.Context, record *store.Record) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, record)
}

// ==========================
// Helpers
// ==========================

func paidSession(consultationID string) *payment.Session {
	return &payment.Session{
		ID:            "cs_test_1",
		PaymentStatus: "paid",
		Metadata:      map[string]string{"consultation_id": consultationID},
	}
}

func seedPending(t *testing.T, st store.Store, id string) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), &store.Record{
		ConsultationID: id,
		Status:         models.StatusPending,
		Request:        &models.ConsultationRequest{Nationality: "Brazil", Email: "a@b.com"},
	}))
}

type fixture struct {
	processor *MockProcessor
	store     store.Store
	generator *fakeGenerator
	deliverer *fakeDeliverer
	handler   *Handler
}

func newFixture(t *testing.T, st store.Store) *fixture {
	f := &fixture{
		processor: &MockProcessor{},
		store:     st,
		generator: &fakeGenerator{},
		deliverer: &fakeDeliverer{},
	}
	f.handler = NewHandler(&Config{Timeout: time.Second}, f.processor, st, f.generator, f.deliverer, logger.NewTestLogger(t))
	return f
}

// ==========================
// Execute
// ==========================

func TestExecute_PaidGeneratesAndStores(t *testing.T) {
	st := store.NewMemoryStore()
	seedPending(t, st, "c-1")
	f := newFixture(t, st)
	f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

	resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.PaymentStatus)
	assert.Equal(t, "c-1", resp.ConsultationID)
	assert.Equal(t, MessageReady, resp.Message)

	record, err := st.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Equal(t, "cs_test_1", record.PaymentSessionID)
	require.NotNil(t, record.Result)
	assert.Equal(t, "Dear officer, Brazil", record.Result.CoverLetter)

	assert.Equal(t, 1, f.generator.calls)
	assert.Equal(t, []string{"c-1"}, f.deliverer.delivered)
}

func TestExecute_SecondVerifyDoesNotRegenerate(t *testing.T) {
	st := store.NewMemoryStore()
	seedPending(t, st, "c-1")
	f := newFixture(t, st)
	f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

	for i := 0; i < 2; i++ {
		resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
		require.NoError(t, err)
		assert.True(t, resp.Success)
	}
	assert.Equal(t, 1, f.generator.calls)
	assert.Len(t, f.deliverer.delivered, 1)
}

func TestExecute_NotPaid(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.processor.On("RetrieveSession", mock.Anything, "cs_open").
		Return(&payment.Session{ID: "cs_open", PaymentStatus: "unpaid"}, nil)

	resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_open"})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "unpaid", resp.PaymentStatus)
	assert.Equal(t, "Payment not completed", resp.Message)
	assert.Empty(t, resp.ConsultationID)
	assert.Zero(t, f.generator.calls)
}

func TestExecute_PaidWithoutStoredConsultation(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("temp-123"), nil)

	resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.PaymentStatus)
	assert.Equal(t, "temp-123", resp.ConsultationID)
	assert.Equal(t, MessageGenerating, resp.Message)
	assert.Zero(t, f.generator.calls)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		store    func() store.Store
		req      *models.VerifyRequest
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "missing session id",
			req:      &models.VerifyRequest{},
			wantCode: apperrors.ErrCodeValidationFailed,
		},
		{
			name: "processor error",
			setup: func(f *fixture) {
				f.processor.On("RetrieveSession", mock.Anything, "cs_x").Return(nil, errors.New("No such checkout.session"))
			},
			req:      &models.VerifyRequest{SessionID: "cs_x"},
			wantCode: apperrors.ErrCodeProcessorError,
		},
		{
			name: "store read error",
			store: func() store.Store {
				return failingStore{Store: store.NewMemoryStore(), getErr: errors.New("connection refused")}
			},
			setup: func(f *fixture) {
				f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)
			},
			req:      &models.VerifyRequest{SessionID: "cs_test_1"},
			wantCode: apperrors.ErrCodeStoreFailed,
		},
		{
			name: "generation failure",
			setup: func(f *fixture) {
				seedPending(t, f.store, "c-1")
				f.generator.err = apperrors.NewGenerationFailedError(errors.New("cancelled"))
				f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)
			},
			req:      &models.VerifyRequest{SessionID: "cs_test_1"},
			wantCode: apperrors.ErrCodeGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st store.Store = store.NewMemoryStore()
			if tt.store != nil {
				st = tt.store()
			}
			f := newFixture(t, st)
			if tt.setup != nil {
				tt.setup(f)
			}

			resp, err := f.handler.Execute(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, resp)

			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Empty(t, f.deliverer.delivered)
		})
	}
}

func TestExecute_GenerationFailureLeavesRecordPaid(t *testing.T) {
	st := store.NewMemoryStore()
	seedPending(t, st, "c-1")
	f := newFixture(t, st)
	f.generator.err = apperrors.NewGenerationFailedError(errors.New("boom"))
	f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

	_, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
	require.Error(t, err)

	record, err := st.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, record.Status)
	assert.Nil(t, record.Result)
}

// ==========================
// Concurrency
// ==========================

type blockingGenerator struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) GenerateConsultation(_ context.Context, _ *models.ConsultationRequest, id string) (*models.ConsultationResult, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.started)
	}
	<-g.release
	return &models.ConsultationResult{ConsultationID: id, ConfidenceScore: 95}, nil
}

func TestExecute_ConcurrentVerifiesGenerateOnce(t *testing.T) {
	st := store.NewMemoryStore()
	seedPending(t, st, "c-1")

	retrieved := make(chan struct{}, 2)
	processor := &MockProcessor{}
	processor.On("RetrieveSession", mock.Anything, "cs_test_1").
		Run(func(mock.Arguments) { retrieved <- struct{}{} }).
		Return(paidSession("c-1"), nil)

	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	deliverer := &fakeDeliverer{}
	h := NewHandler(&Config{Timeout: time.Second}, processor, st, gen, deliverer, logger.NewTestLogger(t))

	var wg sync.WaitGroup
	responses := make([]*models.VerifyResponse, 2)
	errs := make([]error, 2)
	run := func(i int) {
		defer wg.Done()
		responses[i], errs[i] = h.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
	}

	wg.Add(2)
	go run(0)
	<-gen.started
	go run(1)
	<-retrieved
	<-retrieved
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	for i := range responses {
		require.NoError(t, errs[i])
		assert.True(t, responses[i].Success)
		assert.Equal(t, MessageReady, responses[i].Message)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&gen.calls))
	assert.Equal(t, []string{"c-1"}, deliverer.delivered)

	record, err := st.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
}

// ==========================
// Fulfilment lease
// ==========================

type fakeLocker struct {
	held     bool
	err      error
	keys     []string
	released int
	// onAcquire runs once the lease is taken.
	onAcquire func()
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	if l.onAcquire != nil {
		l.onAcquire()
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}

func TestExecute_Lease(t *testing.T) {
	t.Run("acquired lease generates and releases", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedPending(t, st, "c-1")
		f := newFixture(t, st)
		locker := &fakeLocker{}
		f.handler.WithLocker(locker)
		f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

		resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
		require.NoError(t, err)

		assert.Equal(t, MessageReady, resp.Message)
		assert.Equal(t, 1, f.generator.calls)
		assert.Equal(t, []string{"visa-guru:verify:c-1"}, locker.keys)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("lease held elsewhere skips generation", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedPending(t, st, "c-1")
		f := newFixture(t, st)
		f.handler.WithLocker(&fakeLocker{held: true})
		f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

		resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
		require.NoError(t, err)

		assert.True(t, resp.Success)
		assert.Equal(t, MessageGenerating, resp.Message)
		assert.Equal(t, 0, f.generator.calls)

		record, err := st.Get(context.Background(), "c-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, record.Status)
	})

	t.Run("completed by previous holder", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedPending(t, st, "c-1")
		f := newFixture(t, st)
		locker := &fakeLocker{onAcquire: func() {
			require.NoError(t, st.Put(context.Background(), &store.Record{
				ConsultationID: "c-1",
				Status:         models.StatusCompleted,
				Result:         &models.ConsultationResult{ConsultationID: "c-1"},
			}))
		}}
		f.handler.WithLocker(locker)
		f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

		resp, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
		require.NoError(t, err)

		assert.Equal(t, MessageReady, resp.Message)
		assert.Equal(t, 0, f.generator.calls)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("lease error", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedPending(t, st, "c-1")
		f := newFixture(t, st)
		f.handler.WithLocker(&fakeLocker{err: errors.New("redis: connection refused")})
		f.processor.On("RetrieveSession", mock.Anything, "cs_test_1").Return(paidSession("c-1"), nil)

		_, err := f.handler.Execute(context.Background(), &models.VerifyRequest{SessionID: "cs_test_1"})
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeStoreFailed, stdErr.Code)
		assert.Equal(t, 0, f.generator.calls)
	})
}
