// Package metrics exposes Prometheus counters for processed documents and
// dispatch outcomes.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "documents_processed_total",
		Help:      "Source documents that completed the pipeline.",
	})
	DocumentsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "documents_failed_total",
		Help:      "Source documents rejected before dispatch.",
	})
	RunsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "runs_detected_total",
		Help:      "Runs detected across all documents.",
	})
	RunsUnassigned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "runs_unassigned_total",
		Help:      "Runs with no recipient in the mapping.",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "messages_sent_total",
		Help:      "Combined run sheets delivered to a recipient.",
	})
	MessagesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "messages_failed_total",
		Help:      "Recipient sends that failed.",
	})
	DispatchSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsheets",
		Name:      "dispatch_skipped_total",
		Help:      "Dispatch cycles skipped for incomplete mail configuration.",
	})
)

var registerOnce sync.Once

// Init registers collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DocumentsProcessed,
			DocumentsFailed,
			RunsDetected,
			RunsUnassigned,
			MessagesSent,
			MessagesFailed,
			DispatchSkipped,
		)
	})
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve runs a /metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	Init()

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
