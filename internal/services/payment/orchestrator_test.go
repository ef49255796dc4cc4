package payment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kevin07696/swish-payment-service/internal/adapters/swish"
	"github.com/kevin07696/swish-payment-service/internal/domain"
	"github.com/kevin07696/swish-payment-service/internal/services/payment"
	"github.com/kevin07696/swish-payment-service/internal/testutil/fixtures"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/test/mocks"
)

// MockChannelSource mocks the channel cache
type MockChannelSource struct {
	mock.Mock
}

func (m *MockChannelSource) Get(ctx context.Context, creds swish.Credentials) (*swish.Channel, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*swish.Channel), args.Error(1)
}

// MockSubmitter mocks the payment request submitter
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, channel *swish.Channel, req domain.PaymentRequest) (domain.PaymentHandle, error) {
	args := m.Called(ctx, channel, req)
	return args.Get(0).(domain.PaymentHandle), args.Error(1)
}

// MockPoller mocks the status poller
type MockPoller struct {
	mock.Mock
}

func (m *MockPoller) Poll(ctx context.Context, channel *swish.Channel, handle domain.PaymentHandle, cfg swish.PollConfig) (*domain.PaymentResult, error) {
	args := m.Called(ctx, channel, handle, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}

func testConfig() payment.Config {
	return payment.Config{
		Credentials: swish.Credentials{BundlePath: "/certs/merchant.p12", Passphrase: "swish", RootCAPath: "/certs/root.pem"},
		BaseURL:     "https://swish.test/api/v1",
		CallbackURL: fixtures.TestCallbackURL,
		PayeeAlias:  fixtures.TestPayeeAlias,
		Currency:    "SEK",
		Poll:        swish.PollConfig{Interval: time.Millisecond, MaxAttempts: 3},
		HTTPTimeout: time.Second,
	}
}

func TestCreateAndAwaitPayment_Success(t *testing.T) {
	cfg := testConfig()
	channel := swish.NewChannel(mocks.NewMockHTTPClient(nil), nil)
	channels := new(MockChannelSource)
	submitter := new(MockSubmitter)
	poller := new(MockPoller)

	req := fixtures.NewPaymentRequest().WithCallbackURL("").WithPayeeAlias("").WithCurrency("").Build()
	expected := req
	expected.CallbackURL = cfg.CallbackURL
	expected.PayeeAlias = cfg.PayeeAlias
	expected.Currency = cfg.Currency

	result, err := domain.ParsePaymentResult([]byte(fixtures.StatusBody(domain.PaymentStatusPaid)))
	require.NoError(t, err)

	channels.On("Get", mock.Anything, cfg.Credentials).Return(channel, nil).Once()
	submitter.On("Submit", mock.Anything, channel, expected).Return(domain.PaymentHandle("https://swish.test/p/1"), nil).Once()
	poller.On("Poll", mock.Anything, channel, domain.PaymentHandle("https://swish.test/p/1"), cfg.Poll).Return(result, nil).Once()

	orchestrator := payment.NewOrchestrator(cfg, channels, submitter, poller, zaptest.NewLogger(t))

	got, err := orchestrator.CreateAndAwaitPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, result, got)

	channels.AssertExpectations(t)
	submitter.AssertExpectations(t)
	poller.AssertExpectations(t)
}

func TestCreateAndAwaitPayment_ErrorsPropagateUnchanged(t *testing.T) {
	cfg := testConfig()
	channel := swish.NewChannel(mocks.NewMockHTTPClient(nil), nil)
	req := fixtures.NewPaymentRequest().Build()

	t.Run("credential error stops before submission", func(t *testing.T) {
		credErr := pkgerrors.NewCredentialError("BAD_PASSPHRASE", "credential bundle passphrase is incorrect", nil)
		channels := new(MockChannelSource)
		submitter := new(MockSubmitter)
		poller := new(MockPoller)
		channels.On("Get", mock.Anything, cfg.Credentials).Return(nil, credErr)

		orchestrator := payment.NewOrchestrator(cfg, channels, submitter, poller, zaptest.NewLogger(t))
		_, err := orchestrator.CreateAndAwaitPayment(context.Background(), req)

		assert.Same(t, credErr, err)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
		poller.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("submission error stops before polling", func(t *testing.T) {
		subErr := pkgerrors.NewSubmissionError("PROVIDER_ERROR", "provider failed", pkgerrors.OutcomeUnknown, nil)
		channels := new(MockChannelSource)
		submitter := new(MockSubmitter)
		poller := new(MockPoller)
		channels.On("Get", mock.Anything, cfg.Credentials).Return(channel, nil)
		submitter.On("Submit", mock.Anything, channel, req).Return(domain.PaymentHandle(""), subErr)

		orchestrator := payment.NewOrchestrator(cfg, channels, submitter, poller, zaptest.NewLogger(t))
		_, err := orchestrator.CreateAndAwaitPayment(context.Background(), req)

		assert.Same(t, subErr, err)
		poller.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("poll timeout", func(t *testing.T) {
		timeoutErr := pkgerrors.NewPollTimeoutError("still pending", nil)
		channels := new(MockChannelSource)
		submitter := new(MockSubmitter)
		poller := new(MockPoller)
		channels.On("Get", mock.Anything, cfg.Credentials).Return(channel, nil)
		submitter.On("Submit", mock.Anything, channel, req).Return(domain.PaymentHandle("https://swish.test/p/1"), nil)
		poller.On("Poll", mock.Anything, channel, domain.PaymentHandle("https://swish.test/p/1"), cfg.Poll).Return(nil, timeoutErr)

		orchestrator := payment.NewOrchestrator(cfg, channels, submitter, poller, zaptest.NewLogger(t))
		_, err := orchestrator.CreateAndAwaitPayment(context.Background(), req)

		assert.True(t, errors.Is(err, pkgerrors.ErrPollTimeout))
	})
}

// TestCreateAndAwaitPayment_EndToEnd runs the real adapters against a mutual TLS provider stub
func TestCreateAndAwaitPayment_EndToEnd(t *testing.T) {
	material := fixtures.NewTLSMaterial(t)

	var posts, gets int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/paymentrequests/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			atomic.AddInt32(&posts, 1)
			w.Header().Set("Location", "/api/v1/paymentrequests/AB23D7406ECE4542A80152D909EF9F6B")
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			status := domain.PaymentStatusCreated
			if atomic.AddInt32(&gets, 1) >= 3 {
				status = domain.PaymentStatusPaid
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(fixtures.StatusBody(status)))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	server := httptest.NewUnstartedServer(mux)
	server.TLS = material.ServerTLSConfig()
	server.StartTLS()
	defer server.Close()

	cfg := payment.Config{
		Credentials: swish.Credentials{
			BundlePath: material.BundlePath,
			Passphrase: fixtures.TestPassphrase,
			RootCAPath: material.RootCAPath,
		},
		BaseURL:     server.URL + "/api/v1",
		CallbackURL: fixtures.TestCallbackURL,
		PayeeAlias:  fixtures.TestPayeeAlias,
		Currency:    "SEK",
		Poll:        swish.PollConfig{Interval: 10 * time.Millisecond, MaxAttempts: 10, Timeout: 5 * time.Second},
		HTTPTimeout: 5 * time.Second,
	}
	orchestrator, cache := payment.NewDefaultOrchestrator(cfg, mocks.NewMockLogger(), zaptest.NewLogger(t))

	result, err := orchestrator.CreateAndAwaitPayment(context.Background(), fixtures.NewPaymentRequest().Build())
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusPaid, result.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))
	assert.Equal(t, int32(3), atomic.LoadInt32(&gets))
	assert.JSONEq(t, fixtures.StatusBody(domain.PaymentStatusPaid), string(result.Raw))
	assert.True(t, cache.Ready(cfg.Credentials))
}
