package audit

import (
	"context"
	"log/slog"
)

// ChannelPublisher buffers events on a channel consumed by a Worker. When
// the buffer is full the event is dropped and counted, never blocking the
// request path: a slow audit sink must not slow down verification.
type ChannelPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewChannelPublisher creates a publisher with the given buffer size and
// returns it together with the receive side for a Worker.
func NewChannelPublisher(buffer int, logger *slog.Logger) (*ChannelPublisher, <-chan Event) {
	inbox := make(chan Event, buffer)
	return &ChannelPublisher{inbox: inbox, logger: logger}, inbox
}

// Publish enqueues the event, filling in its category from the action.
func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	if event.Category == "" {
		event.Category = CategoryOf(event.Action)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		return nil
	}
}

// Fanout publishes every event to all wrapped publishers. Used to persist
// locally and ship to Kafka at the same time.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
