package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market/pkg/platform/audit"
	"market/pkg/platform/audit/store/memory"
	"market/pkg/platform/audit/worker"
)

// fakeServer blocks in ListenAndServe until shut down. onShutdown stands in for
// handlers that finish while Shutdown waits for them.
type fakeServer struct {
	closed     chan struct{}
	listenErr  error
	onShutdown func()
}

func newFakeServer() *fakeServer {
	return &fakeServer{closed: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.closed
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	if f.onShutdown != nil {
		f.onShutdown()
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServeStopsWorkerAfterServer(t *testing.T) {
	store := memory.NewInMemoryStore()
	publisher := audit.NewPublisher(8, discardLogger())
	srv := newFakeServer()
	srv.onShutdown = func() {
		// A registration completing during graceful shutdown.
		time.Sleep(20 * time.Millisecond)
		publisher.Emit(context.Background(), audit.Event{Action: audit.EventMarketUserRegistered, Subject: "alice"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- serve(ctx, srv, worker.NewWorker(store, publisher.Inbox(), discardLogger()), time.Second, discardLogger())
	}()
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1, "event emitted during shutdown must be persisted")
	assert.Equal(t, audit.EventMarketUserRegistered, all[0].Action)
}

func TestServeReturnsServerError(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("address already in use")
	store := memory.NewInMemoryStore()
	publisher := audit.NewPublisher(1, discardLogger())

	err := serve(context.Background(), srv, worker.NewWorker(store, publisher.Inbox(), discardLogger()), time.Second, discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}
