package worker

import (
	"context"
	"log/slog"
	"time"

	audit "market/pkg/platform/audit"
)

const drainTimeout = 5 * time.Second

// Worker consumes audit events from a channel and persists them. A failed
// append is logged and the worker moves on.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run persists events until ctx is done, then drains whatever is still buffered.
// Cancel ctx only once every producer has stopped emitting. An append that is
// already running when ctx is cancelled is allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	appendCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.inbox:
			w.append(appendCtx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to persist audit event",
			"error", err,
			"action", string(event.Action),
			"event_id", event.ID,
		)
	}
}
