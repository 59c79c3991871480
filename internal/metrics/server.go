package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// disabledAddr reports whether the configured listen address turns the
// metrics endpoint off.
func disabledAddr(addr string) bool {
	switch strings.ToLower(addr) {
	case "", "off", "disabled", "false":
		return true
	}
	return false
}

// StartServer serves /metrics on addr until ctx is cancelled, returning a
// channel that carries the listener's failure if it ever stops on its own.
// A disabled addr returns a nil channel.
func StartServer(ctx context.Context, addr string) <-chan error {
	addr = strings.TrimSpace(addr)
	if disabledAddr(addr) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return errCh
}
