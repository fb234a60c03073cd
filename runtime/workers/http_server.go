package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerWorker serves until its context ends, then drains in-flight requests
// for at most shutdownTimeout.
type HTTPServerWorker struct {
	server          *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// NewHTTPServerWorker takes an already bound listener so bind errors surface at startup.
func NewHTTPServerWorker(server *http.Server, listener net.Listener, shutdownTimeout time.Duration, log *slog.Logger) *HTTPServerWorker {
	return &HTTPServerWorker{
		server:          server,
		listener:        listener,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener := w.listener
	w.listener = nil
	if listener == nil {
		// Restarted after a crash: the previous listener was closed by Serve.
		var err error
		if listener, err = net.Listen("tcp", w.server.Addr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", w.server.Addr, err)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String(), "at", time.Now().UTC())
		errChan <- w.server.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	w.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server did not drain in time", "error", err)
		_ = w.server.Close()
	}
	<-errChan
	return nil
}
