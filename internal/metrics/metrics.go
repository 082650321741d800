// Package metrics exposes prometheus counters for the warm-up pipeline.
//
// All methods are safe on a nil *Metrics so components can run without a
// registry in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lspwarm"

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	Admissions   prometheus.Counter
	GateSkips    *prometheus.CounterVec
	Ticks        prometheus.Counter
	Runs         *prometheus.CounterVec
	Stalls       *prometheus.CounterVec
	DidOpenSends *prometheus.CounterVec
	Flushes      *prometheus.CounterVec
	FlushEntries prometheus.Gauge
	WalkFiles    prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Admissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "opener",
			Name:      "admissions_total",
			Help:      "Files handed to the notification gate",
		}),
		GateSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "skips_total",
			Help:      "Files the gate skipped, by reason",
		}, []string{"reason"}),
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "opener",
			Name:      "ticks_total",
			Help:      "Batch ticks executed",
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "opener",
			Name:      "runs_total",
			Help:      "Finished opener runs, by final state",
		}, []string{"state"}),
		Stalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "opener",
			Name:      "stalls_total",
			Help:      "Opener runs stalled by a ceiling",
		}, []string{"ceiling"}),
		DidOpenSends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "did_open_total",
			Help:      "didOpen notifications sent, by result",
		}, []string{"result"}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnostics",
			Name:      "flushes_total",
			Help:      "Aggregator flushes, by outcome",
		}, []string{"outcome"}),
		FlushEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "diagnostics",
			Name:      "summary_entries",
			Help:      "Entries in the last written summary",
		}),
		WalkFiles: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "files",
			Help:      "Files returned per walk",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2000, 5000},
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Admitted() {
	if m != nil {
		m.Admissions.Inc()
	}
}

func (m *Metrics) Skipped(reason string) {
	if m != nil {
		m.GateSkips.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Tick() {
	if m != nil {
		m.Ticks.Inc()
	}
}

func (m *Metrics) RunFinished(state string) {
	if m != nil {
		m.Runs.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) Stalled(ceiling string) {
	if m != nil {
		m.Stalls.WithLabelValues(ceiling).Inc()
	}
}

func (m *Metrics) DidOpen(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DidOpenSends.WithLabelValues(result).Inc()
}

func (m *Metrics) Flushed(outcome string, entries int) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(outcome).Inc()
	if outcome == "written" {
		m.FlushEntries.Set(float64(entries))
	}
}

func (m *Metrics) Walked(files int) {
	if m != nil {
		m.WalkFiles.Observe(float64(files))
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
