// Package metrics exposes Prometheus instruments for the conversation view.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every supportdesk collector. It is separate from the default
// registry so tests can gather it without global process collectors.
var Registry = prometheus.NewRegistry()

var (
	// LiveFrames counts inbound live frames by decode result.
	LiveFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "live",
			Name:      "frames_total",
			Help:      "Live frames received, by decode result (message, no_payload, malformed).",
		},
		[]string{"result"},
	)

	// LiveConnections tracks live channels per lifecycle state.
	LiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "supportdesk",
			Subsystem: "live",
			Name:      "connections",
			Help:      "Live channels by state.",
		},
		[]string{"state"},
	)

	// LiveCloses counts transitions into closed by reason.
	LiveCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "live",
			Name:      "closes_total",
			Help:      "Live channel closes, by reason.",
		},
		[]string{"reason"},
	)

	// LiveReconnects counts scheduled reconnect attempts.
	LiveReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "live",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled after a dropped live channel.",
		},
	)

	// HistoryLoads counts history loads by outcome (ok, error, stale).
	HistoryLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "history",
			Name:      "loads_total",
			Help:      "History loads, by outcome.",
		},
		[]string{"outcome"},
	)

	// HistoryLoadSeconds observes history fetch latency.
	HistoryLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "supportdesk",
			Subsystem: "history",
			Name:      "load_seconds",
			Help:      "Time to fetch conversation metadata and messages.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Sends counts composer submissions by outcome (ok, error, stale).
	Sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "compose",
			Name:      "sends_total",
			Help:      "Message submissions, by outcome.",
		},
		[]string{"outcome"},
	)

	// StoreMessages is the size of the currently displayed conversation.
	StoreMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "supportdesk",
			Subsystem: "timeline",
			Name:      "messages",
			Help:      "Messages held for the open conversation.",
		},
	)
)

func init() {
	Registry.MustRegister(
		LiveFrames,
		LiveConnections,
		LiveCloses,
		LiveReconnects,
		HistoryLoads,
		HistoryLoadSeconds,
		Sends,
		StoreMessages,
		collectors.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
