package messaging

import (
	"context"
	"log/slog"
	"sync"

	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

const defaultBufferSize = 128

// Bus is the event bus used by the API process and the outbox relay.
// Delivery is in-process publish/subscribe; brokers are recorded for the
// external transport and not dialed yet.
type Bus struct {
	mu          sync.RWMutex
	brokers     []string
	bufferSize  int
	subscribers map[string][]chan ports.EventEnvelope
	logger      *slog.Logger
}

func NewBus(brokers []string, bufferSize int, logger *slog.Logger) (*Bus, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		brokers:     append([]string(nil), brokers...),
		bufferSize:  bufferSize,
		subscribers: make(map[string][]chan ports.EventEnvelope),
		logger:      logger,
	}, nil
}

func (b *Bus) Brokers() []string {
	return append([]string(nil), b.brokers...)
}

// Publish fans event out to every subscriber of topic. A subscriber whose
// buffer is full misses the event; the publisher never blocks on it.
func (b *Bus) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	b.mu.RLock()
	subs := append([]chan ports.EventEnvelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"event", "bus_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
			)
		}
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"subscribers", len(subs),
	)
	return nil
}

func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch := b.attach(topic)

	go func() {
		defer b.detach(topic, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

// Open returns a channel of events on topic. The channel is closed once ctx
// is done and the subscription is removed.
func (b *Bus) Open(ctx context.Context, topic string) (<-chan ports.EventEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := b.attach(topic)
	out := make(chan ports.EventEnvelope)

	go func() {
		defer close(out)
		defer b.detach(topic, in)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-in:
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *Bus) attach(topic string) chan ports.EventEnvelope {
	ch := make(chan ports.EventEnvelope, b.bufferSize)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}

func (b *Bus) detach(topic string, target chan ports.EventEnvelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan ports.EventEnvelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	if len(filtered) == 0 {
		delete(b.subscribers, topic)
		return
	}
	b.subscribers[topic] = filtered
}

func (b *Bus) subscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

var _ ports.EventPublisher = (*Bus)(nil)
var _ ports.EventSubscriber = (*Bus)(nil)
var _ ports.EventStream = (*Bus)(nil)
