package sensors

import (
	"context"
	"net/http"
	"time"

	"github.com/kilianp07/cdsensor/core/history"
	"github.com/kilianp07/cdsensor/core/logger"
)

// Mux assembles the API routes. A nil store leaves the history route out
// and a nil metrics handler leaves /metrics out.
func Mux(p SnapshotProvider, store history.Store, token string, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/sensors", NewSensorsHandler(p))
	if store != nil {
		mux.Handle("/api/sensors/history", NewHistoryHandler(store, token))
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

// Serve runs an HTTP server on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("http server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
