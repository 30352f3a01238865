package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type backgroundWorker interface {
	Run(ctx context.Context) error
}

// serve runs srv and the audit worker until ctx is done or srv fails. The server
// is shut down first and the worker is stopped only after Shutdown returns, so
// audit events emitted by requests still in flight are persisted by the drain.
func serve(ctx context.Context, srv server, auditWorker backgroundWorker, shutdownTimeout time.Duration, log *slog.Logger) error {
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- auditWorker.Run(workerCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	err := g.Wait()

	stopWorker()
	if workerErr := <-workerDone; workerErr != nil {
		err = errors.Join(err, workerErr)
	}
	return err
}
