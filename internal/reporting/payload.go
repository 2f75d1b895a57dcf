package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
	"datasanitizer/internal/wipe"
)

// Status итог для отображения
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSafe      Status = "safe"
	StatusUnsafe    Status = "unsafe"
)

// Verification - сводка проверки в отчёте
type Verification struct {
	Mode           string `json:"mode"`
	Matched        bool   `json:"matched"`
	BytesChecked   uint64 `json:"bytes_checked"`
	MismatchOffset *int64 `json:"mismatch_offset,omitempty"`
}

// Payload - структурированный результат для фронтенда и отчётов
type Payload struct {
	Status            Status        `json:"status"`
	Volume            string        `json:"volume"`
	JobID             string        `json:"job_id,omitempty"`
	Reason            reason.Code   `json:"reason"`
	Message           string        `json:"message"`
	Hints             []string      `json:"hints,omitempty"`
	BoundBytes        uint64        `json:"bound_bytes,omitempty"`
	BoundHuman        string        `json:"bound_human,omitempty"`
	BytesCovered      uint64        `json:"bytes_covered"`
	BytesCoveredHuman string        `json:"bytes_covered_human"`
	TotalBytesWritten uint64        `json:"total_bytes_written,omitempty"`
	PassCount         int           `json:"pass_count,omitempty"`
	PassesCompleted   int           `json:"passes_completed"`
	Patterns          []string      `json:"patterns,omitempty"`
	Verification      *Verification `json:"verification,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
	Duration          string        `json:"duration,omitempty"`
}

// reasonMessages - текст для пользователя по коду причины
var reasonMessages = map[reason.Code]string{
	reason.None:                 "operation completed",
	reason.EnumerationError:     "the volume list could not be read; try again",
	reason.UnresolvedIdentifier: "the identifier does not name a device on this host",
	reason.SystemVolume:         "the volume hosts the running operating system and is protected",
	reason.NotWritable:          "the volume cannot be written: missing, read-only, empty or busy",
	reason.Excluded:             "the volume is excluded by configuration",
	reason.PreconditionFailed:   "the request does not satisfy the operation's preconditions",
	reason.ConfirmationRequired: "explicit confirmation is required before any data is destroyed",
	reason.SafetyNotConfirmed:   "the safety check is missing or stale; classify the volume again",
	reason.AlreadyInProgress:    "a sanitization job is already running on this volume",
	reason.AccessDenied:         "the device could not be opened exclusively",
	reason.IOError:              "a write failed and retries were exhausted",
	reason.VerificationFailed:   "the volume content does not match the last pass",
	reason.Cancelled:            "the operation was cancelled",
	reason.InvalidRequest:       "the request is malformed",
	reason.Internal:             "internal error",
}

// Message возвращает текст для кода причины
func Message(code reason.Code) string {
	if m, ok := reasonMessages[code]; ok {
		return m
	}
	return string(code)
}

// FromResult строит payload успешного задания
func FromResult(r wipe.Result) Payload {
	p := Payload{
		Status:            StatusSucceeded,
		Volume:            r.VolumeIdentifier,
		JobID:             r.JobID,
		Reason:            reason.None,
		Message:           fmt.Sprintf("%d-pass sanitization of the first %s verified", r.PassCount, humanize.IBytes(r.BoundBytes)),
		BoundBytes:        r.BoundBytes,
		BoundHuman:        humanize.IBytes(r.BoundBytes),
		BytesCovered:      r.BytesWritten,
		BytesCoveredHuman: humanize.IBytes(r.BytesWritten),
		TotalBytesWritten: r.TotalBytesWritten,
		PassCount:         r.PassCount,
		PassesCompleted:   r.PassesCompleted,
		Patterns:          append([]string(nil), r.Patterns...),
		Verification:      verificationOf(r.Verification),
		Timestamp:         r.CompletedAt,
		Duration:          r.Duration().Round(time.Millisecond).String(),
	}
	return p
}

// FromError строит payload отказа; частичный прогресс берётся из wipe.JobError
func FromError(identifier string, err error, now time.Time) Payload {
	code := reason.Of(err)
	p := Payload{
		Status:            StatusFailed,
		Volume:            identifier,
		Reason:            code,
		Message:           Message(code),
		Hints:             reason.Hints(err),
		BytesCoveredHuman: humanize.IBytes(0),
		Timestamp:         now,
	}
	if err != nil {
		p.Message = fmt.Sprintf("%s: %v", Message(code), err)
	}

	var jobErr *wipe.JobError
	if errors.As(err, &jobErr) {
		p.JobID = jobErr.JobID
		if jobErr.Target != "" {
			p.Volume = jobErr.Target
		}
		p.PassesCompleted = jobErr.PassesCompleted
		// частично перезаписанный диапазон не считается покрытым
		p.Message = fmt.Sprintf("%s (passes completed: %d, bytes written in the interrupted pass: %s): %v",
			Message(code), jobErr.PassesCompleted, humanize.IBytes(jobErr.BytesWritten), jobErr.Err)
	}
	return p
}

// FromVerdict строит payload классификации
func FromVerdict(v security.Verdict) Payload {
	p := Payload{
		Status:            StatusUnsafe,
		Volume:            v.Identifier,
		Reason:            v.Reason,
		Message:           fmt.Sprintf("%s: %s", Message(v.Reason), v.Detail),
		BytesCoveredHuman: humanize.IBytes(0),
		Timestamp:         v.CheckedAt,
	}
	if v.IsSafe() {
		p.Status = StatusSafe
		p.Message = "no disqualifying condition; the volume may be sanitized"
	}
	return p
}

func verificationOf(o wipe.Outcome) *Verification {
	v := &Verification{Mode: string(o.Mode), Matched: o.Matched, BytesChecked: o.BytesChecked}
	if !o.Matched && o.MismatchOffset >= 0 {
		off := o.MismatchOffset
		v.MismatchOffset = &off
	}
	return v
}

// Text форматирует payload для терминала
func Text(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", strings.ToUpper(string(p.Status)), p.Volume)
	if p.Reason != reason.None && p.Reason != "" {
		fmt.Fprintf(&b, " [%s]", p.Reason)
	}
	b.WriteString("\n  " + p.Message + "\n")
	if p.JobID != "" {
		fmt.Fprintf(&b, "  job:          %s\n", p.JobID)
	}
	if p.BoundBytes > 0 {
		fmt.Fprintf(&b, "  range:        first %s (%s bytes)\n", p.BoundHuman, humanize.Comma(int64(p.BoundBytes)))
	}
	if p.PassCount > 0 {
		fmt.Fprintf(&b, "  passes:       %d/%d %s\n", p.PassesCompleted, p.PassCount, strings.Join(p.Patterns, ","))
	} else if p.Status == StatusFailed && p.JobID != "" {
		fmt.Fprintf(&b, "  passes done:  %d\n", p.PassesCompleted)
	}
	if p.Verification != nil {
		fmt.Fprintf(&b, "  verification: %s, matched=%t, checked %s\n",
			p.Verification.Mode, p.Verification.Matched, humanize.IBytes(p.Verification.BytesChecked))
		if p.Verification.MismatchOffset != nil {
			fmt.Fprintf(&b, "  mismatch at:  %d\n", *p.Verification.MismatchOffset)
		}
	}
	if p.Duration != "" {
		fmt.Fprintf(&b, "  duration:     %s\n", p.Duration)
	}
	for _, h := range p.Hints {
		fmt.Fprintf(&b, "  hint:         %s\n", h)
	}
	return b.String()
}
