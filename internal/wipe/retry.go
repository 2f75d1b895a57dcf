package wipe

import (
	"context"
	"errors"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// permanentErrnos - ошибки, при которых повтор записи бессмысленен
var permanentErrnos = []syscall.Errno{
	syscall.ENODEV,
	syscall.ENXIO,
	syscall.EROFS,
	syscall.ENOSPC,
	syscall.EACCES,
	syscall.EPERM,
	syscall.EBADF,
	syscall.EINVAL,
}

// IsPermanentIOError: устройство пропало, защищено от записи или закончилось
func IsPermanentIOError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		for _, p := range permanentErrnos {
			if errno == p {
				return true
			}
		}
		for _, p := range platformPermanentErrnos {
			if errno == p {
				return true
			}
		}
		return false
	}
	if errors.Is(err, io.ErrShortWrite) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space") ||
		strings.Contains(msg, "not enough space") ||
		strings.Contains(msg, "write protected") ||
		strings.Contains(msg, "no such device")
}

// retryPolicy - экспоненциальный повтор операции над чанком
type retryPolicy struct {
	maxRetries int
	interval   time.Duration
}

func (p retryPolicy) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 100 * time.Millisecond
	}
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxRetries)), ctx)
}

// do выполняет op с повторами; onRetry вызывается перед каждым повтором
func (p retryPolicy) do(ctx context.Context, op func() error, onRetry func(err error, wait time.Duration)) error {
	wrapped := func() error {
		err := op()
		if err != nil && IsPermanentIOError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(wrapped, p.backoff(ctx), onRetry)
}
