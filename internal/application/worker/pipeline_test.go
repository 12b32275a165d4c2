package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/gateway"
	"github.com/erp/refundengine/internal/domain/queuemsg"
	"github.com/erp/refundengine/internal/domain/shared"
)

type fakeHandler struct {
	err error
}

func (h fakeHandler) Handle(context.Context, queuemsg.Message) error { return h.err }

type recordingPublisher struct {
	mu       sync.Mutex
	messages []queuemsg.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg queuemsg.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) snapshot() []queuemsg.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queuemsg.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

type recordingDeadLetter struct {
	mu      sync.Mutex
	parked  []queuemsg.Message
	parkErr error
}

func (d *recordingDeadLetter) Park(_ context.Context, msg queuemsg.Message, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parked = append(d.parked, msg)
	return d.parkErr
}

func newTestPipeline(publisher queuemsg.Publisher, deadLetter DeadLetterSink) *Pipeline {
	return NewPipeline(publisher, deadLetter, RetryConfig{Initial: 5 * time.Millisecond, Factor: 2, MaxAttempts: 3, JitterFrac: 0}, zap.NewNop())
}

func TestPipeline_Dispatch_RetryableErrorAcksAndSchedulesRepublish(t *testing.T) {
	publisher := &recordingPublisher{}
	deadLetter := &recordingDeadLetter{}
	p := newTestPipeline(publisher, deadLetter)
	p.RegisterHandler(queuemsg.TypeProcessRefund, fakeHandler{err: gateway.NewError(gateway.ErrorTimeout, "timeout", true)})

	msg := queuemsg.Message{Type: queuemsg.TypeProcessRefund, IdempotencyKey: "refund-1:process:1", Attempt: 0}
	err := p.dispatch(context.Background(), msg)

	// The original delivery is acked; the backoff republish, not the
	// consumer's own Nak-driven redelivery, is the only retry path.
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(publisher.snapshot()) == 1 }, time.Second, time.Millisecond)
	got := publisher.snapshot()[0]
	assert.Equal(t, 1, got.Attempt)
	assert.NotEqual(t, msg.IdempotencyKey, got.IdempotencyKey, "the republish must not reuse the original Nats-Msg-Id or JetStream's dedup window drops it")
}

func TestPipeline_Dispatch_TerminalErrorAcksWithoutRepublish(t *testing.T) {
	publisher := &recordingPublisher{}
	deadLetter := &recordingDeadLetter{}
	p := newTestPipeline(publisher, deadLetter)
	p.RegisterHandler(queuemsg.TypeProcessRefund, fakeHandler{err: shared.NewDomainError("VALIDATION_FAILED", "bad input")})

	err := p.dispatch(context.Background(), queuemsg.Message{Type: queuemsg.TypeProcessRefund})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, publisher.snapshot())
	assert.Empty(t, deadLetter.parked)
}

func TestPipeline_Dispatch_ExhaustedRetriesParks(t *testing.T) {
	publisher := &recordingPublisher{}
	deadLetter := &recordingDeadLetter{}
	p := newTestPipeline(publisher, deadLetter)
	p.RegisterHandler(queuemsg.TypeProcessRefund, fakeHandler{err: gateway.NewError(gateway.ErrorTimeout, "timeout", true)})

	msg := queuemsg.Message{Type: queuemsg.TypeProcessRefund, Attempt: p.retry.MaxAttempts - 1}
	err := p.dispatch(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, deadLetter.parked, 1)
	assert.Empty(t, publisher.snapshot(), "a parked message should not also be republished")
}

func TestPipeline_Dispatch_UnknownTypeAcks(t *testing.T) {
	publisher := &recordingPublisher{}
	deadLetter := &recordingDeadLetter{}
	p := newTestPipeline(publisher, deadLetter)

	err := p.dispatch(context.Background(), queuemsg.Message{Type: "UNKNOWN"})
	require.NoError(t, err)
	assert.Empty(t, publisher.snapshot())
}
