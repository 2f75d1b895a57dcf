// Package observability exposes Prometheus metrics for sanitization jobs.
package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
	"datasanitizer/internal/wipe"
)

const namespace = "datasanitizer"

// Metrics holds the job metrics on a private registry.
// It implements wipe.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsActive    prometheus.Gauge
	bytesWritten  prometheus.Counter
	chunkRetries  prometheus.Counter
	verdictsTotal *prometheus.CounterVec
}

var _ wipe.Recorder = (*Metrics)(nil)

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished sanitization jobs by status and reason code",
			},
			[]string{"status", "reason"},
		),

		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of sanitization jobs in seconds",
				Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400, 43200},
			},
			[]string{"status"},
		),

		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of sanitization jobs currently holding a volume",
		}),

		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes written to devices across all passes",
		}),

		chunkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_retries_total",
			Help:      "Total number of retried chunk writes",
		}),

		verdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verdicts_total",
				Help:      "Safety classifications by decision and reason code",
			},
			[]string{"decision", "reason"},
		),
	}

	reg.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.jobsActive,
		m.bytesWritten,
		m.chunkRetries,
		m.verdictsTotal,
	)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve отдаёт /metrics на addr до отмены ctx
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen metrics on %s", addr)
	}
	defer ln.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}

// JobStarted records that a job acquired its volume.
func (m *Metrics) JobStarted(*wipe.Job) {
	m.jobsActive.Inc()
}

// JobFinished records the terminal outcome of a started job.
func (m *Metrics) JobFinished(_ *wipe.Job, code reason.Code, elapsed time.Duration) {
	status := "succeeded"
	if code != reason.None {
		status = "failed"
	}
	m.jobsActive.Dec()
	m.jobsTotal.WithLabelValues(status, string(code)).Inc()
	m.jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// BytesWritten adds n written bytes.
func (m *Metrics) BytesWritten(n int) {
	m.bytesWritten.Add(float64(n))
}

// ChunkRetried records one retried chunk write.
func (m *Metrics) ChunkRetried() {
	m.chunkRetries.Inc()
}

// RecordVerdict records a classification result.
func (m *Metrics) RecordVerdict(v security.Verdict) {
	m.verdictsTotal.WithLabelValues(string(v.Decision), string(v.Reason)).Inc()
}
