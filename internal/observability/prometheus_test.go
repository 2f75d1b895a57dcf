package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasanitizer/internal/logging"
	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
	"datasanitizer/internal/testsupport"
	"datasanitizer/internal/wipe"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	assert.NotNil(t, m.registry)
}

func TestRecorderEvents(t *testing.T) {
	m := NewMetrics()

	m.JobStarted(nil)
	m.BytesWritten(4096)
	m.BytesWritten(4096)
	m.ChunkRetried()
	m.JobFinished(nil, reason.IOError, 2*time.Second)
	m.RecordVerdict(security.Verdict{Decision: security.Unsafe, Reason: reason.SystemVolume})

	body := scrape(t, m)
	assert.Contains(t, body, `datasanitizer_jobs_total{reason="IOError",status="failed"} 1`)
	assert.Contains(t, body, "datasanitizer_bytes_written_total 8192")
	assert.Contains(t, body, "datasanitizer_chunk_retries_total 1")
	assert.Contains(t, body, "datasanitizer_jobs_active 0")
	assert.Contains(t, body, "datasanitizer_job_duration_seconds")
	assert.Contains(t, body, `datasanitizer_verdicts_total{decision="Unsafe",reason="SystemVolume"} 1`)
}

func TestMetricsRecordSchedulerRun(t *testing.T) {
	const target = "/dev/sdm"
	opener := testsupport.NewMemOpener()
	opener.AddDisk(target, 64<<10, 0x11)

	m := NewMetrics()
	s := wipe.NewScheduler(opener, wipe.NewLockRegistry(""),
		wipe.Options{VerifyMode: wipe.VerifyFull, RetryInterval: time.Millisecond}, logging.NewNop())
	s.SetRecorder(m)

	ps, err := wipe.ParsePatterns([]string{"zero", "random"})
	require.NoError(t, err)
	job, err := wipe.NewJob(target, 32<<10, ps, 8<<10)
	require.NoError(t, err)
	require.NoError(t, job.ConfirmSafety(security.Verdict{
		Identifier: target, Decision: security.Safe, Reason: reason.None, CheckedAt: time.Now(),
	}))

	_, err = s.Run(context.Background(), job)
	require.NoError(t, err)

	body := scrape(t, m)
	assert.Contains(t, body, `datasanitizer_jobs_total{reason="None",status="succeeded"} 1`)
	assert.Contains(t, body, "datasanitizer_bytes_written_total 65536")
	assert.Contains(t, body, "datasanitizer_jobs_active 0")
}

func TestServeStopsOnCancel(t *testing.T) {
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
