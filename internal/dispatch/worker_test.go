package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"survey_compliance_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptClient scripts per-call results for the chat platform client.
type scriptClient struct {
	mu        sync.Mutex
	sendFn    func(call int, p telegram.SendParams) (int, error)
	pinFn     func(call int) error
	banFn     func(call int) error
	sendCalls int
	pinCalls  int
	banCalls  int
}

func (c *scriptClient) Send(_ context.Context, p telegram.SendParams) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++
	if c.sendFn != nil {
		return c.sendFn(c.sendCalls, p)
	}
	return 100 + c.sendCalls, nil
}

func (c *scriptClient) Pin(_ context.Context, _ int64, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinCalls++
	if c.pinFn != nil {
		return c.pinFn(c.pinCalls)
	}
	return nil
}

func (c *scriptClient) Ban(_ context.Context, _, _ int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banCalls++
	if c.banFn != nil {
		return c.banFn(c.banCalls)
	}
	return nil
}

func (c *scriptClient) calls() (send, pin, ban int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls, c.pinCalls, c.banCalls
}

// newTestQueue builds a started queue whose retry timers fire immediately
// while still recording the requested delays.
func newTestQueue(t *testing.T, client telegram.Client) (*Queue, func() []time.Duration) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	q := New(Config{Workers: 2, Capacity: 64, BulkDelay: time.Millisecond}, client, log.WithField("component", "dispatch"))

	var mu sync.Mutex
	var delays []time.Duration
	q.schedule = func(d time.Duration, f func()) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		go f()
	}

	q.Start()
	t.Cleanup(q.Stop)
	return q, func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		out := append([]time.Duration(nil), delays...)
		return out
	}
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job outcome")
		return Outcome{}
	}
}

func TestDeliverSendSuccess(t *testing.T) {
	client := &scriptClient{}
	q, _ := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindSend, ChatID: 42, Text: "hello"})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.True(t, out.OK)
	assert.Equal(t, 101, out.MessageID)
	assert.NotEmpty(t, out.JobID)
}

func TestRateLimitRetryUsesMandatedWait(t *testing.T) {
	client := &scriptClient{
		sendFn: func(call int, _ telegram.SendParams) (int, error) {
			if call == 1 {
				return 0, &telegram.RateLimitError{RetryAfter: 30 * time.Second}
			}
			return 7, nil
		},
	}
	q, delays := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindSend, ChatID: 1, Text: "x"})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.True(t, out.OK)
	assert.Equal(t, 7, out.MessageID)

	sends, _, _ := client.calls()
	assert.Equal(t, 2, sends)
	require.Len(t, delays(), 1)
	assert.Equal(t, 30*time.Second, delays()[0])
}

func TestNetworkErrorBackoffUntilMaxAttempts(t *testing.T) {
	connErr := &telegram.ConnectivityError{Err: errors.New("connection reset")}
	client := &scriptClient{
		sendFn: func(int, telegram.SendParams) (int, error) { return 0, connErr },
	}
	q, delays := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindSend, ChatID: 1, Text: "x"})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.False(t, out.OK)
	require.Error(t, out.Err)
	assert.ErrorContains(t, out.Err, "network error after 5 attempts")

	sends, _, _ := client.calls()
	assert.Equal(t, DefaultSendAttempts, sends)
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 40 * time.Second, 80 * time.Second,
	}, delays())
}

func TestRateLimitDoesNotAdvanceBackoffCounter(t *testing.T) {
	client := &scriptClient{
		sendFn: func(call int, _ telegram.SendParams) (int, error) {
			switch call {
			case 1:
				return 0, &telegram.RateLimitError{RetryAfter: 45 * time.Second}
			case 2:
				return 0, &telegram.ConnectivityError{Err: errors.New("timeout")}
			default:
				return 9, nil
			}
		},
	}
	q, delays := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindSend, ChatID: 1, Text: "x"})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.True(t, out.OK)
	// The rate-limit wait is the server's, and the first network retry still
	// starts the backoff sequence at its initial step.
	assert.Equal(t, []time.Duration{45 * time.Second, 10 * time.Second}, delays())
}

func TestPermanentAPIErrorIsNotRetried(t *testing.T) {
	client := &scriptClient{
		sendFn: func(int, telegram.SendParams) (int, error) {
			return 0, errors.New("telegram: chat not found (400)")
		},
	}
	q, delays := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindSend, ChatID: 1, Text: "x"})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.False(t, out.OK)
	sends, _, _ := client.calls()
	assert.Equal(t, 1, sends)
	assert.Empty(t, delays())
}

func TestSendAndPinFailureRetriesWholeJob(t *testing.T) {
	client := &scriptClient{
		pinFn: func(call int) error {
			if call == 1 {
				return &telegram.ConnectivityError{Err: errors.New("timeout")}
			}
			return nil
		},
	}
	q, _ := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindSendAndPin, ChatID: 1, Text: "pinned"})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.True(t, out.OK)

	// The retry re-sends before pinning again: the duplicate send is the
	// documented cost of treating pin failure as a whole-job failure.
	sends, pins, _ := client.calls()
	assert.Equal(t, 2, sends)
	assert.Equal(t, 2, pins)
}

func TestBanJobUsesSmallerAttemptBudget(t *testing.T) {
	client := &scriptClient{
		banFn: func(int) error {
			return &telegram.ConnectivityError{Err: errors.New("connection refused")}
		},
	}
	q, _ := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: KindBan, ChatID: 1, UserID: 99})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.False(t, out.OK)
	_, _, bans := client.calls()
	assert.Equal(t, DefaultBanAttempts, bans)
}

func TestBackoffDelayCap(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{4, 160 * time.Second},
		{5, 300 * time.Second},
		{12, 300 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.n), "backoffDelay(%d)", tt.n)
	}
}

func TestUnknownKindFailsPermanently(t *testing.T) {
	client := &scriptClient{}
	q, _ := newTestQueue(t, client)

	ch, err := q.EnqueueWait(Job{Kind: Kind("noop"), ChatID: 1})
	require.NoError(t, err)

	out := waitOutcome(t, ch)
	assert.False(t, out.OK)
	assert.ErrorContains(t, out.Err, "unknown job kind")
}
