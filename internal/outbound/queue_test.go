package outbound

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/qrush/internal/circuitbreaker"
	"github.com/yourusername/qrush/internal/transport"
)

type fakeTransport struct {
	mu  sync.Mutex
	got []transport.OutboundMessage
	err error
}

func (f *fakeTransport) Send(ctx context.Context, msg transport.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, msg)
	return nil
}

func (f *fakeTransport) messages() []transport.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.OutboundMessage, len(f.got))
	copy(out, f.got)
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.RatePerSecond = 1000
	cfg.RateBurst = 1000
	cfg.BaseBackoff = time.Millisecond
	cfg.SendTimeout = time.Second
	return cfg
}

func TestQueue_DeliversEnqueuedMessage(t *testing.T) {
	ft := &fakeTransport{}
	breaker := circuitbreaker.New("whatsapp", circuitbreaker.DefaultConfig())
	q := New(testConfig(), ft, breaker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(Request{Recipient: "+1555", Kind: KindText, Priority: PriorityNormal, Message: transport.OutboundMessage{Recipient: "+1555", Body: "hello"}})

	require.Eventually(t, func() bool { return len(ft.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", ft.messages()[0].Body)
}

func TestQueue_PreservesPerRecipientOrder(t *testing.T) {
	ft := &fakeTransport{}
	breaker := circuitbreaker.New("whatsapp", circuitbreaker.DefaultConfig())
	q := New(testConfig(), ft, breaker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	for i := 0; i < 5; i++ {
		q.Enqueue(Request{
			Recipient: "+1555", Kind: KindText, Priority: PriorityNormal,
			Message: transport.OutboundMessage{Recipient: "+1555", Body: string(rune('a' + i))},
		})
	}

	require.Eventually(t, func() bool { return len(ft.messages()) == 5 }, time.Second, 5*time.Millisecond)
	msgs := ft.messages()
	for i, m := range msgs {
		assert.Equal(t, string(rune('a'+i)), m.Body)
	}
}

func TestQueue_DropsAfterMaxAttemptsOnTransientFailure(t *testing.T) {
	ft := &fakeTransport{err: &transport.TransportError{StatusCode: 503, Err: assertError{}}}
	breaker := circuitbreaker.New("whatsapp", circuitbreaker.Config{FailureThreshold: 1000, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	cfg := testConfig()
	cfg.MaxAttempts = 2
	q := New(cfg, ft, breaker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(Request{Recipient: "+1555", Kind: KindText, Priority: PriorityNormal, AttemptsLeft: 2,
		Message: transport.OutboundMessage{Recipient: "+1555", Body: "x"}})

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, ft.messages(), "transport send always fails, so nothing should ever be recorded as delivered")
}

type assertError struct{}

func (assertError) Error() string { return "service unavailable" }
