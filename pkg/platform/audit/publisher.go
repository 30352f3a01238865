package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"market/pkg/requestcontext"
)

const defaultBufferSize = 1024

// Publisher hands events to a background worker without blocking the request.
// A full buffer drops the event and counts it.
type Publisher struct {
	inbox   chan Event
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewPublisher(bufferSize int, logger *slog.Logger) *Publisher {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{inbox: make(chan Event, bufferSize), logger: logger}
}

// Inbox is the channel a Worker drains.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Emit fills in id, category, timestamp and request id, then enqueues the event.
// A nil Publisher discards events.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", string(event.Action),
			"category", string(event.Category),
		)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}
