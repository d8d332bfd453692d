package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServer serves the Prometheus text exposition format at a configured
// path, independent of the reactor's own socket set (SPEC_FULL.md §6:
// "run on its own goroutine ... shares no mutable reactor state").
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer builds an HTTPServer bound to addr, exposing reg's metrics
// at path.
func NewHTTPServer(addr, path string, reg *prometheus.Registry) *HTTPServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &HTTPServer{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start blocks serving HTTP until ctx is canceled or ListenAndServe fails.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the metrics server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
