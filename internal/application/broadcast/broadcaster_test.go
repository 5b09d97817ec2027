package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
	eventsmem "github.com/loopfi/conductor/pkg/adapters/events/memory"
)

type noopMetrics struct{}

func (noopMetrics) RecordExecutionStarted()                                  {}
func (noopMetrics) RecordExecutionCompleted(string, time.Duration)           {}
func (noopMetrics) RecordNodeExecuted(string, string, time.Duration)         {}
func (noopMetrics) RecordNodeRetry(string)                                   {}
func (noopMetrics) RecordLendingOperation(string, string, string, time.Duration) {}
func (noopMetrics) SetActiveExecutions(int)                                  {}
func (noopMetrics) SetSubscriberCount(int)                                   {}
func (noopMetrics) RecordTokenIssued()                                       {}
func (noopMetrics) RecordTokenRejected(string)                               {}

func testEvent(executionID string, eventType domain.EventType) domain.ExecutionEvent {
	return domain.ExecutionEvent{
		ID:          string(eventType) + "-" + executionID,
		Type:        eventType,
		ExecutionID: executionID,
		Timestamp:   time.Now(),
	}
}

func TestSubscribersSeeEventsInPublishOrder(t *testing.T) {
	b := New(noopMetrics{}, zap.NewNop())
	bus := eventsmem.NewInMemoryEventBus()
	require.NoError(t, b.Start(context.Background(), bus))

	sub1 := b.Subscribe("exec-1")
	defer sub1.Close()
	sub2 := b.Subscribe("exec-1")
	defer sub2.Close()

	sequence := []domain.EventType{
		domain.EventTypeExecutionStarted,
		domain.EventTypeNodeStarted,
		domain.EventTypeNodeSucceeded,
		domain.EventTypeExecutionSucceeded,
	}
	for _, eventType := range sequence {
		require.NoError(t, bus.Publish(context.Background(), ports.TopicExecutionEvents, testEvent("exec-1", eventType)))
	}

	for _, sub := range []*Subscription{sub1, sub2} {
		for _, want := range sequence {
			select {
			case got := <-sub.Events():
				assert.Equal(t, want, got.Type)
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}
}

func TestEventsScopedToExecution(t *testing.T) {
	b := New(noopMetrics{}, zap.NewNop())

	sub := b.Subscribe("exec-1")
	defer sub.Close()

	b.Publish(testEvent("exec-2", domain.EventTypeExecutionStarted))
	b.Publish(testEvent("exec-1", domain.EventTypeExecutionStarted))

	select {
	case got := <-sub.Events():
		assert.Equal(t, "exec-1", got.ExecutionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case got := <-sub.Events():
		t.Fatalf("unexpected event for execution %s", got.ExecutionID)
	default:
	}
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	b := New(noopMetrics{}, zap.NewNop())

	b.Publish(testEvent("exec-1", domain.EventTypeExecutionStarted))

	sub := b.Subscribe("exec-1")
	defer sub.Close()

	select {
	case <-sub.Events():
		t.Fatal("late subscriber must not receive events published before attach")
	default:
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	b := New(noopMetrics{}, zap.NewNop())

	sub := b.Subscribe("exec-1")
	require.Equal(t, 1, b.SubscriberCount("exec-1"))

	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount("exec-1"))

	// Channel is closed after detach.
	_, open := <-sub.Events()
	assert.False(t, open)

	// Double close is safe.
	sub.Close()
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New(noopMetrics{}, zap.NewNop())

	sub := b.Subscribe("exec-1")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(testEvent("exec-1", domain.EventTypeNodeStarted))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
