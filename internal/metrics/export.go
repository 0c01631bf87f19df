package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/graphite"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

const shutdownTimeout = 5 * time.Second

// NewRegistry returns a registry holding the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered from g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger roachtx.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(g),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics on http://%s/metrics", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type loggerFunc func(...interface{})

// Println implements graphite.Logger.
func (lf loggerFunc) Println(v ...interface{}) {
	lf(v...)
}

// PushGraphite pushes the metrics gathered from g to a Graphite or Carbon
// endpoint every interval until ctx is done, and once more on the way out.
// Push failures are logged, not returned.
func PushGraphite(ctx context.Context, endpoint string, interval time.Duration, g prometheus.Gatherer, logger roachtx.Logger) error {
	if endpoint == "" {
		return errors.New("graphite endpoint is not set")
	}
	host, err := os.Hostname()
	if err != nil {
		return err
	}

	bridge, err := graphite.NewBridge(&graphite.Config{
		URL:           endpoint,
		Gatherer:      g,
		Prefix:        host + ".roachtx",
		Timeout:       10 * time.Second,
		ErrorHandling: graphite.ContinueOnError,
		Logger: loggerFunc(func(args ...interface{}) {
			logger.Verbose("graphite: %s", fmt.Sprint(args...))
		}),
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := bridge.Push(); err != nil {
				logger.Error("graphite push failed: %v", err)
			}
			return nil
		case <-ticker.C:
			if err := bridge.Push(); err != nil {
				logger.Error("graphite push failed: %v", err)
			}
		}
	}
}
