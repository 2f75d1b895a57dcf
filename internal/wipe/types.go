package wipe

import (
	"fmt"
	"time"

	"datasanitizer/internal/reason"
)

// ProgressInfo информация о прогрессе задания
type ProgressInfo struct {
	JobID        string
	State        State
	Pass         int // с 1
	PassCount    int
	Pattern      string
	BytesWritten uint64 // в текущем проходе
	BoundBytes   uint64
	Percentage   float64 // по всему заданию
	SpeedMBps    float64
}

// Result - подтверждение успешной санитизации. Возвращается только при успехе.
type Result struct {
	JobID            string `json:"jobId"`
	VolumeIdentifier string `json:"volumeIdentifier"`
	BoundBytes       uint64 `json:"boundBytes"`
	// BytesWritten - диапазон, покрытый каждым проходом
	BytesWritten      uint64    `json:"bytesWritten"`
	TotalBytesWritten uint64    `json:"totalBytesWritten"`
	PassCount         int       `json:"passCount"`
	PassesCompleted   int       `json:"passesCompleted"`
	Patterns          []string  `json:"patterns"`
	Verification      Outcome   `json:"verification"`
	StartedAt         time.Time `json:"startedAt"`
	CompletedAt       time.Time `json:"completedAt"`
}

// Duration длительность задания
func (r Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// JobError - отказ задания с частичным прогрессом для аудита
type JobError struct {
	JobID           string
	Target          string
	Cause           reason.Code
	PassesCompleted int
	// BytesWritten - байты текущего незавершённого прохода
	BytesWritten uint64
	Err          error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s on %s failed (%s) after %d completed passes: %v",
		e.JobID, e.Target, e.Cause, e.PassesCompleted, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// VerifyMode режим проверки после последнего прохода
type VerifyMode string

const (
	VerifyFull    VerifyMode = "full"
	VerifySampled VerifyMode = "sampled"
)

// Outcome результат верификации
type Outcome struct {
	Matched bool       `json:"matched"`
	Mode    VerifyMode `json:"mode"`
	// MismatchOffset - первое расходящееся смещение, -1 при совпадении
	MismatchOffset int64  `json:"mismatchOffset"`
	BytesChecked   uint64 `json:"bytesChecked"`
	Samples        int    `json:"samples,omitempty"`
}

// Recorder получает события заданий для метрик
type Recorder interface {
	JobStarted(job *Job)
	JobFinished(job *Job, code reason.Code, elapsed time.Duration)
	BytesWritten(n int)
	ChunkRetried()
}

type nopRecorder struct{}

func (nopRecorder) JobStarted(*Job)                              {}
func (nopRecorder) JobFinished(*Job, reason.Code, time.Duration) {}
func (nopRecorder) BytesWritten(int)                             {}
func (nopRecorder) ChunkRetried()                                {}
