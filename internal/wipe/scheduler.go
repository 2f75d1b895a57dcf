package wipe

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"

	"datasanitizer/internal/config"
	"datasanitizer/internal/logging"
	"datasanitizer/internal/reason"
)

// Options параметры выполнения заданий
type Options struct {
	MaxRetries    int
	RetryInterval time.Duration
	MaxSpeedMBps  float64
	MaxDuration   time.Duration
	MaxVerdictAge time.Duration
	VerifyMode    VerifyMode
	VerifySamples int
}

// OptionsFromConfig переносит секцию sanitize/security конфигурации
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRetries:    cfg.Sanitize.MaxRetries,
		RetryInterval: cfg.GetRetryInterval(),
		MaxSpeedMBps:  cfg.Sanitize.MaxSpeedMBps,
		MaxDuration:   cfg.GetMaxDuration(),
		MaxVerdictAge: cfg.GetMaxVerdictAge(),
		VerifyMode:    VerifyMode(cfg.Sanitize.VerifyMode),
		VerifySamples: cfg.Sanitize.VerifySamples,
	}
}

// Scheduler выполняет подтверждённые задания
type Scheduler struct {
	opener   Opener
	locks    *LockRegistry
	verifier *Verifier
	opts     Options
	logger   *logging.EnterpriseLogger
	recorder Recorder
	now      func() time.Time
}

// NewScheduler создаёт планировщик
func NewScheduler(opener Opener, locks *LockRegistry, opts Options, logger *logging.EnterpriseLogger) *Scheduler {
	if opts.MaxVerdictAge <= 0 {
		opts.MaxVerdictAge = 30 * time.Second
	}
	return &Scheduler{
		opener:   opener,
		locks:    locks,
		verifier: NewVerifier(opener, opts.VerifyMode, opts.VerifySamples),
		opts:     opts,
		logger:   logger.Named("wipe"),
		recorder: nopRecorder{},
		now:      time.Now,
	}
}

// SetRecorder подключает метрики
func (s *Scheduler) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// Locks реестр блокировок планировщика
func (s *Scheduler) Locks() *LockRegistry { return s.locks }

// Run выполняет задание без отчёта о прогрессе
func (s *Scheduler) Run(ctx context.Context, job *Job) (Result, error) {
	return s.RunWithProgress(ctx, job, nil)
}

// RunWithProgress выполняет задание: блокировка, эксклюзивное открытие, проходы, верификация.
// События прогресса отправляются в progress без блокировки.
func (s *Scheduler) RunWithProgress(ctx context.Context, job *Job, progress chan<- ProgressInfo) (Result, error) {
	run := &jobRun{s: s, job: job, progress: progress, logger: s.logger.With("job", job.ID, "volume", job.TargetIdentifier)}
	return run.execute(ctx)
}

type jobRun struct {
	s        *Scheduler
	job      *Job
	progress chan<- ProgressInfo
	logger   *logging.EnterpriseLogger

	started         time.Time
	passesCompleted int
	passBytes       uint64
	totalBytes      uint64
}

func (r *jobRun) execute(ctx context.Context) (res Result, err error) {
	job := r.job
	r.started = r.s.now()

	// до begin задание принадлежит не этому запуску: отказ не меняет его состояние
	if err := job.ready(r.started, r.s.opts.MaxVerdictAge); err != nil {
		return Result{}, r.reject(err)
	}

	release, err := r.s.locks.Acquire(job.TargetIdentifier, job.ID, job.Related...)
	if err != nil {
		return Result{}, r.reject(err)
	}
	defer release()

	if err := job.begin(r.s.now(), r.s.opts.MaxVerdictAge); err != nil {
		return Result{}, r.reject(err)
	}
	r.s.recorder.JobStarted(job)
	defer func() {
		r.s.recorder.JobFinished(job, reason.Of(err), r.s.now().Sub(r.started))
	}()

	if r.s.opts.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.s.opts.MaxDuration)
		defer cancel()
	}

	r.logger.Log("INFO", "sanitization started",
		"bound_bytes", job.BoundBytes, "passes", job.PassCount(), "patterns", job.PatternNames())

	dev, err := r.s.opener.OpenExclusive(job.TargetIdentifier)
	if err != nil {
		if !reason.Is(err, reason.AccessDenied) {
			err = reason.Wrap(err, reason.AccessDenied, "open %s", job.TargetIdentifier)
		}
		return Result{}, r.failure(err)
	}
	devClosed := false
	defer func() {
		if !devClosed {
			dev.Close()
		}
	}()

	size, err := dev.Size()
	if err != nil {
		return Result{}, r.failure(reason.Wrap(err, reason.IOError, "query size of %s", job.TargetIdentifier))
	}
	if size < job.BoundBytes {
		return Result{}, r.failure(reason.New(reason.PreconditionFailed, "device %s holds %d bytes, less than bound %d", job.TargetIdentifier, size, job.BoundBytes))
	}

	if err := r.writePasses(ctx, dev); err != nil {
		return Result{}, r.failure(err)
	}

	// дескриптор записи закрывается до чтения: заблокированный том Windows не читается вторым дескриптором
	devClosed = true
	if err := dev.Close(); err != nil {
		return Result{}, r.failure(reason.Wrap(err, reason.IOError, "close %s", job.TargetIdentifier))
	}

	job.verifying()
	r.emit(StateVerifying, job.PassCount(), job.BoundBytes)
	last := job.PassPatterns[job.PassCount()-1]
	outcome, err := r.s.verifier.Verify(ctx, job.TargetIdentifier, job.BoundBytes, last)
	if err != nil {
		if ctx.Err() != nil {
			err = r.cancelled(ctx, err)
		}
		return Result{}, r.failure(err)
	}
	if !outcome.Matched {
		return Result{}, r.failure(reason.New(reason.VerificationFailed,
			"content of %s differs from pass %d pattern at offset %d", job.TargetIdentifier, job.PassCount(), outcome.MismatchOffset))
	}

	job.succeed()
	res = Result{
		JobID:             job.ID,
		VolumeIdentifier:  job.TargetIdentifier,
		BoundBytes:        job.BoundBytes,
		BytesWritten:      job.BoundBytes,
		TotalBytesWritten: r.totalBytes,
		PassCount:         job.PassCount(),
		PassesCompleted:   r.passesCompleted,
		Patterns:          job.PatternNames(),
		Verification:      outcome,
		StartedAt:         r.started,
		CompletedAt:       r.s.now(),
	}
	r.logger.Log("INFO", "sanitization succeeded",
		"bytes_written", res.BytesWritten, "total_bytes", res.TotalBytesWritten,
		"verify_mode", outcome.Mode, "bytes_checked", outcome.BytesChecked,
		"duration", res.Duration().String())
	return res, nil
}

func (r *jobRun) writePasses(ctx context.Context, dev Device) error {
	job := r.job
	chunk := int(job.ChunkSize)
	buf := GetBuffer(chunk)
	defer PutBuffer(buf)

	throttle := NewThrottle(r.s.opts.MaxSpeedMBps, chunk)
	policy := retryPolicy{maxRetries: r.s.opts.MaxRetries, interval: r.s.opts.RetryInterval}

	for pass, pattern := range job.PassPatterns {
		job.advance(pass)
		r.passBytes = 0
		passStart := r.s.now()
		r.logger.Log("DEBUG", "pass started", "pass", pass+1, "pattern", pattern.Name())

		for off := uint64(0); off < job.BoundBytes; {
			// отмена проверяется на границе чанка
			if err := ctx.Err(); err != nil {
				return r.cancelled(ctx, err)
			}

			n := uint64(chunk)
			if rest := job.BoundBytes - off; rest < n {
				n = rest
			}
			b := buf[:n]
			if err := pattern.Fill(b, off); err != nil {
				return reason.Wrap(err, reason.Internal, "fill pattern %s", pattern.Name())
			}
			if err := throttle.Wait(ctx, len(b)); err != nil {
				return r.cancelled(ctx, err)
			}

			attempt := 0
			err := policy.do(ctx, func() error {
				attempt++
				return writeChunk(dev, b, int64(off))
			}, func(err error, wait time.Duration) {
				r.s.recorder.ChunkRetried()
				r.logger.Log("WARN", "chunk write failed, retrying",
					"pass", pass+1, "offset", off, "attempt", attempt, "wait", wait.String(), "error", err)
			})
			if err != nil {
				if ctx.Err() != nil {
					return r.cancelled(ctx, err)
				}
				return reason.Wrap(err, reason.IOError, "write %s pass %d at offset %d after %d attempts",
					job.TargetIdentifier, pass+1, off, attempt)
			}

			off += n
			r.passBytes += n
			r.totalBytes += n
			r.s.recorder.BytesWritten(int(n))
			r.emitPass(pass, passStart)
		}

		if err := dev.Sync(); err != nil {
			return reason.Wrap(err, reason.IOError, "sync %s after pass %d", job.TargetIdentifier, pass+1)
		}
		r.passesCompleted++
		r.logger.Log("INFO", "pass completed", "pass", pass+1, "pattern", pattern.Name(),
			"duration", r.s.now().Sub(passStart).String())
	}
	return nil
}

// writeChunk пишет чанк целиком и сбрасывает его на носитель
func writeChunk(dev Device, b []byte, off int64) error {
	n, err := dev.WriteAt(b, off)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return dev.Sync()
}

func (r *jobRun) cancelled(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, err) {
		err = errors.WithSecondaryError(err, cause)
	}
	return reason.Wrap(err, reason.Cancelled, "job %s cancelled", r.job.ID)
}

// failure переводит задание в Failed и оборачивает ошибку в JobError
func (r *jobRun) failure(err error) error {
	code := reason.Of(err)
	r.job.fail(code)
	r.logger.Log("ERROR", "sanitization failed", "reason", string(code),
		"passes_completed", r.passesCompleted, "bytes_written", r.passBytes, "error", err)
	return r.jobError(err)
}

// reject - отказ до начала записи; состояние задания остаётся прежним
func (r *jobRun) reject(err error) error {
	r.logger.Log("WARN", "sanitization rejected", "reason", string(reason.Of(err)), "state", string(r.job.State()), "error", err)
	return r.jobError(err)
}

func (r *jobRun) jobError(err error) error {
	code := reason.Of(err)
	return &JobError{
		JobID:           r.job.ID,
		Target:          r.job.TargetIdentifier,
		Cause:           code,
		PassesCompleted: r.passesCompleted,
		BytesWritten:    r.passBytes,
		Err:             err,
	}
}

func (r *jobRun) emitPass(pass int, passStart time.Time) {
	if r.progress == nil {
		return
	}
	info := r.info(StateInProgress, pass+1, r.passBytes)
	if elapsed := r.s.now().Sub(passStart).Seconds(); elapsed > 0 {
		info.SpeedMBps = float64(r.passBytes) / (1024 * 1024) / elapsed
	}
	r.send(info)
}

func (r *jobRun) emit(state State, pass int, bytes uint64) {
	if r.progress == nil {
		return
	}
	r.send(r.info(state, pass, bytes))
}

func (r *jobRun) info(state State, pass int, bytes uint64) ProgressInfo {
	job := r.job
	info := ProgressInfo{
		JobID:        job.ID,
		State:        state,
		Pass:         pass,
		PassCount:    job.PassCount(),
		BytesWritten: bytes,
		BoundBytes:   job.BoundBytes,
	}
	if pass >= 1 && pass <= job.PassCount() {
		info.Pattern = job.PassPatterns[pass-1].Name()
	}
	total := float64(job.BoundBytes) * float64(job.PassCount())
	if total > 0 {
		info.Percentage = float64(r.totalBytes) / total * 100
	}
	return info
}

// send не блокирует: медленный потребитель теряет промежуточные события
func (r *jobRun) send(info ProgressInfo) {
	select {
	case r.progress <- info:
	default:
	}
}
