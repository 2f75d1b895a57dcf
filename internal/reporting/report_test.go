package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasanitizer/internal/config"
	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
	"datasanitizer/internal/wipe"
)

func sampleResult() wipe.Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return wipe.Result{
		JobID:             "job-1",
		VolumeIdentifier:  "/dev/sdb",
		BoundBytes:        1 << 30,
		BytesWritten:      1 << 30,
		TotalBytesWritten: 3 << 30,
		PassCount:         3,
		PassesCompleted:   3,
		Patterns:          []string{"zero", "ones", "random"},
		Verification:      wipe.Outcome{Matched: true, Mode: wipe.VerifyFull, MismatchOffset: -1, BytesChecked: 1 << 30},
		StartedAt:         start,
		CompletedAt:       start.Add(90 * time.Second),
	}
}

func TestFromResult(t *testing.T) {
	p := FromResult(sampleResult())

	assert.Equal(t, StatusSucceeded, p.Status)
	assert.Equal(t, reason.None, p.Reason)
	assert.Equal(t, "/dev/sdb", p.Volume)
	assert.Equal(t, uint64(1<<30), p.BytesCovered)
	assert.Equal(t, "1.0 GiB", p.BytesCoveredHuman)
	assert.Equal(t, 3, p.PassesCompleted)
	assert.Equal(t, "1m30s", p.Duration)
	require.NotNil(t, p.Verification)
	assert.True(t, p.Verification.Matched)
	assert.Nil(t, p.Verification.MismatchOffset)
}

func TestFromErrorCarriesPartialProgress(t *testing.T) {
	cause := reason.New(reason.IOError, "write at offset 4096 failed")
	err := &wipe.JobError{
		JobID:           "job-2",
		Target:          "/dev/sdc",
		Cause:           reason.IOError,
		PassesCompleted: 1,
		BytesWritten:    4096,
		Err:             cause,
	}
	p := FromError("/dev/sdc", errors.Wrap(err, "sanitize"), time.Now())

	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, reason.IOError, p.Reason)
	assert.Equal(t, "job-2", p.JobID)
	assert.Equal(t, 1, p.PassesCompleted)
	assert.Zero(t, p.BytesCovered, "a failed job covers nothing")
	assert.Contains(t, p.Message, "passes completed: 1")
}

func TestFromErrorKeepsHints(t *testing.T) {
	err := reason.WithHint(reason.New(reason.AccessDenied, "open /dev/sdb"), "run as root")
	p := FromError("/dev/sdb", err, time.Now())

	assert.Equal(t, reason.AccessDenied, p.Reason)
	assert.Equal(t, []string{"run as root"}, p.Hints)
	assert.Contains(t, Text(p), "hint:         run as root")
}

func TestFromErrorUnmarkedIsInternal(t *testing.T) {
	p := FromError("D:", errors.New("boom"), time.Now())
	assert.Equal(t, reason.Internal, p.Reason)
	assert.True(t, strings.HasPrefix(p.Message, "internal error"))
}

func TestFromVerdict(t *testing.T) {
	now := time.Now()
	unsafe := FromVerdict(security.Verdict{
		Identifier: "/dev/sda", Decision: security.Unsafe, Reason: reason.SystemVolume,
		Detail: "mounted at /", CheckedAt: now,
	})
	assert.Equal(t, StatusUnsafe, unsafe.Status)
	assert.Equal(t, reason.SystemVolume, unsafe.Reason)
	assert.Contains(t, unsafe.Message, "mounted at /")

	safe := FromVerdict(security.Verdict{
		Identifier: "/dev/sdb", Decision: security.Safe, Reason: reason.None, CheckedAt: now,
	})
	assert.Equal(t, StatusSafe, safe.Status)
}

func TestEveryCodeHasMessage(t *testing.T) {
	codes := []reason.Code{
		reason.None, reason.EnumerationError, reason.UnresolvedIdentifier, reason.SystemVolume,
		reason.NotWritable, reason.Excluded, reason.PreconditionFailed, reason.ConfirmationRequired,
		reason.SafetyNotConfirmed, reason.AlreadyInProgress, reason.AccessDenied, reason.IOError,
		reason.VerificationFailed, reason.Cancelled, reason.InvalidRequest, reason.Internal,
	}
	for _, c := range codes {
		assert.NotEqual(t, string(c), Message(c), "no message for %s", c)
	}
}

func TestTextShowsMismatch(t *testing.T) {
	r := sampleResult()
	r.Verification = wipe.Outcome{Matched: false, Mode: wipe.VerifyFull, MismatchOffset: 12345, BytesChecked: 12345}
	out := Text(FromResult(r))

	assert.Contains(t, out, "SUCCEEDED /dev/sdb")
	assert.Contains(t, out, "mismatch at:  12345")
	assert.Contains(t, out, "1,073,741,824 bytes")
}

func TestSaveReport(t *testing.T) {
	cfg := config.Default()
	cfg.Reporting.Enabled = true
	cfg.Reporting.LocalPath = filepath.Join(t.TempDir(), "reports")

	ops := []Payload{
		FromResult(sampleResult()),
		FromError("/dev/sdc", reason.New(reason.Cancelled, "stopped"), time.Now()),
	}
	report := NewReport(ops, cfg, 1, time.Now())
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Succeeded)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, uint64(1<<30), report.Summary.BytesCovered)

	path, err := SaveReport(report, cfg)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), report.RunID[:8])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	require.Len(t, decoded.Operations, 2)
	assert.Equal(t, reason.Cancelled, decoded.Operations[1].Reason)
}

func TestSaveReportDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Reporting.Enabled = false
	cfg.Reporting.LocalPath = filepath.Join(t.TempDir(), "reports")

	path, err := SaveReport(NewReport(nil, cfg, 0, time.Now()), cfg)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoDirExists(t, cfg.Reporting.LocalPath)
}
