package swish

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/swish-payment-service/internal/domain"
	"github.com/kevin07696/swish-payment-service/internal/testutil/fixtures"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/test/mocks"
)

const testHandle = domain.PaymentHandle("https://swish.test/swish-cpcapi/api/v1/paymentrequests/AB23D7406ECE4542A80152D909EF9F6B")

// recordingWait replaces the real sleep and remembers every requested delay
type recordingWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingWait) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingWait) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delays)
}

func newTestPoller() (*Poller, *recordingWait) {
	waits := &recordingWait{}
	p := NewPoller(mocks.NewMockLogger())
	p.wait = waits.wait
	return p, waits
}

// statusSequence answers CREATED pending times, then final
func statusSequence(pending int, final domain.PaymentStatus) func(req *http.Request) (*http.Response, error) {
	var mu sync.Mutex
	calls := 0
	return func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= pending {
			return mocks.NewJSONResponse(http.StatusOK, fixtures.StatusBody(domain.PaymentStatusCreated), nil), nil
		}
		return mocks.NewJSONResponse(http.StatusOK, fixtures.StatusBody(final), nil), nil
	}
}

func TestPoll_PendingThenPaid(t *testing.T) {
	const pending = 3
	client := mocks.NewMockHTTPClient(statusSequence(pending, domain.PaymentStatusPaid))
	poller, waits := newTestPoller()

	cfg := PollConfig{Interval: 2 * time.Second, MaxAttempts: 10}
	result, err := poller.Poll(context.Background(), NewChannel(client, nil), testHandle, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusPaid, result.Status)
	assert.Equal(t, pending+1, client.CallCount())
	assert.Equal(t, pending, waits.count())
	for _, d := range waits.delays {
		assert.Equal(t, 2*time.Second, d)
	}
	for _, req := range client.Calls {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, string(testHandle), req.URL.String())
	}
	assert.JSONEq(t, fixtures.StatusBody(domain.PaymentStatusPaid), string(result.Raw))
}

func TestPoll_TerminalFirstResponse(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPaid,
		domain.PaymentStatusDeclined,
		domain.PaymentStatusError,
		domain.PaymentStatusCancelled,
		"SOMETHING_NEW",
	} {
		t.Run(string(status), func(t *testing.T) {
			client := mocks.NewMockHTTPClient(statusSequence(0, status))
			poller, waits := newTestPoller()

			result, err := poller.Poll(context.Background(), NewChannel(client, nil), testHandle, DefaultPollConfig())
			require.NoError(t, err)
			assert.Equal(t, status, result.Status)
			assert.Equal(t, 1, client.CallCount())
			assert.Equal(t, 0, waits.count())
		})
	}
}

func TestPoll_MaxAttemptsExhausted(t *testing.T) {
	const maxAttempts = 5
	client := mocks.NewMockHTTPClient(statusSequence(1000, domain.PaymentStatusPaid))
	poller, waits := newTestPoller()

	_, err := poller.Poll(context.Background(), NewChannel(client, nil), testHandle, PollConfig{
		Interval:    time.Second,
		MaxAttempts: maxAttempts,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrPollTimeout))
	assert.False(t, errors.Is(err, pkgerrors.ErrPoll))
	assert.Equal(t, maxAttempts, client.CallCount())
	assert.Equal(t, maxAttempts-1, waits.count())
}

func TestPoll_Deadline(t *testing.T) {
	client := mocks.NewMockHTTPClient(statusSequence(1000, domain.PaymentStatusPaid))
	poller := NewPoller(mocks.NewMockLogger())

	start := time.Now()
	_, err := poller.Poll(context.Background(), NewChannel(client, nil), testHandle, PollConfig{
		Interval:    10 * time.Millisecond,
		MaxAttempts: 1000,
		Timeout:     60 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrPollTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Less(t, client.CallCount(), 1000)
}

func TestPoll_CancellationStopsPolling(t *testing.T) {
	client := mocks.NewMockHTTPClient(statusSequence(1000, domain.PaymentStatusPaid))
	poller := NewPoller(mocks.NewMockLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := poller.Poll(ctx, NewChannel(client, nil), testHandle, PollConfig{
			Interval:    time.Hour,
			MaxAttempts: 10,
		})
		done <- err
	}()

	require.Eventually(t, func() bool { return client.CallCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, pkgerrors.ErrPoll))
		assert.True(t, errors.Is(err, context.Canceled))

		var stageErr *pkgerrors.StageError
		require.True(t, errors.As(err, &stageErr))
		assert.Equal(t, "POLL_CANCELLED", stageErr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not return after cancellation")
	}
	assert.Equal(t, 1, client.CallCount())
}

func TestPoll_Failures(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(req *http.Request) (*http.Response, error)
		wantCode string
	}{
		{
			name: "transport failure",
			respond: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("tls: handshake failure")
			},
			wantCode: "POLL_TRANSPORT",
		},
		{
			name: "not found",
			respond: func(req *http.Request) (*http.Response, error) {
				return mocks.NewJSONResponse(http.StatusNotFound, "", nil), nil
			},
			wantCode: "UNEXPECTED_STATUS",
		},
		{
			name: "body is not JSON",
			respond: func(req *http.Request) (*http.Response, error) {
				return mocks.NewJSONResponse(http.StatusOK, "<html>maintenance</html>", nil), nil
			},
			wantCode: "MALFORMED_STATUS",
		},
		{
			name: "missing status",
			respond: func(req *http.Request) (*http.Response, error) {
				return mocks.NewJSONResponse(http.StatusOK, `{"id":"AB23"}`, nil), nil
			},
			wantCode: "MALFORMED_STATUS",
		},
		{
			name: "body over the size limit",
			respond: func(req *http.Request) (*http.Response, error) {
				return mocks.NewJSONResponse(http.StatusOK, `{"status":"PAID","message":"`+strings.Repeat("x", maxResponseBytes)+`"}`, nil), nil
			},
			wantCode: "RESPONSE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockHTTPClient(tt.respond)
			poller, waits := newTestPoller()

			_, err := poller.Poll(context.Background(), NewChannel(client, nil), testHandle, DefaultPollConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, pkgerrors.ErrPoll))
			assert.Equal(t, 1, client.CallCount(), "failed status requests are not retried")
			assert.Equal(t, 0, waits.count())

			var stageErr *pkgerrors.StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.wantCode, stageErr.Code)
		})
	}
}

func TestPoll_RejectsNonPositiveMaxAttempts(t *testing.T) {
	client := mocks.NewMockHTTPClient(nil)
	poller, _ := newTestPoller()

	_, err := poller.Poll(context.Background(), NewChannel(client, nil), testHandle, PollConfig{Interval: time.Second})
	require.Error(t, err)

	var validationErr *pkgerrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, 0, client.CallCount())
}
