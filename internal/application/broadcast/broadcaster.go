package broadcast

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped; delivery is best-effort, clients re-fetch current status on
// reconnect
const subscriberBuffer = 16

// Broadcaster fans execution events out to live-status subscribers. The
// per-execution subscriber sets are the one piece of shared mutable state
// between the coordinator (producer) and subscriber connections (consumers);
// all access goes through the lock.
type Broadcaster struct {
	metrics ports.MetricsCollector
	logger  *zap.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{} // executionID -> set
	total       int
}

// Subscription is one attached subscriber connection
type Subscription struct {
	executionID string
	events      chan domain.ExecutionEvent
	broadcaster *Broadcaster
	once        sync.Once
}

// Events returns the subscriber's ordered event feed
func (s *Subscription) Events() <-chan domain.ExecutionEvent {
	return s.events
}

// Close detaches the subscription. Detachment on connection teardown is
// mandatory; the broadcaster never grows unboundedly.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broadcaster.detach(s)
	})
}

// New creates an event broadcaster
func New(metrics ports.MetricsCollector, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		metrics:     metrics,
		logger:      logger,
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

// Start attaches the broadcaster to the execution event topic
func (b *Broadcaster) Start(ctx context.Context, bus ports.EventBus) error {
	return bus.Subscribe(ctx, ports.TopicExecutionEvents, func(ctx context.Context, event domain.ExecutionEvent) error {
		b.Publish(event)
		return nil
	})
}

// Subscribe attaches a new subscriber to an execution's fan-out set.
// Authorization happens at the transport layer before this is called; the
// broadcaster itself never sees tokens.
func (b *Broadcaster) Subscribe(executionID string) *Subscription {
	sub := &Subscription{
		executionID: executionID,
		events:      make(chan domain.ExecutionEvent, subscriberBuffer),
		broadcaster: b,
	}

	b.mu.Lock()
	set, ok := b.subscribers[executionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subscribers[executionID] = set
	}
	set[sub] = struct{}{}
	b.total++
	b.metrics.SetSubscriberCount(b.total)
	b.mu.Unlock()

	b.logger.Debug("subscriber attached", zap.String("execution_id", executionID))
	return sub
}

// Publish writes an event to every subscriber currently attached to its
// execution. There is no history: a subscriber attached after an event
// fired simply misses it.
func (b *Broadcaster) Publish(event domain.ExecutionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[event.ExecutionID] {
		select {
		case sub.events <- event:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				zap.String("execution_id", event.ExecutionID),
				zap.String("event_type", string(event.Type)))
		}
	}
}

// SubscriberCount returns the number of subscribers attached to an execution
func (b *Broadcaster) SubscriberCount(executionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[executionID])
}

func (b *Broadcaster) detach(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subscribers[sub.executionID]
	if !ok {
		return
	}
	if _, attached := set[sub]; !attached {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subscribers, sub.executionID)
	}
	b.total--
	b.metrics.SetSubscriberCount(b.total)
	close(sub.events)

	b.logger.Debug("subscriber detached", zap.String("execution_id", sub.executionID))
}
