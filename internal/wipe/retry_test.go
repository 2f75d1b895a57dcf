package wipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPermanentIOError(t *testing.T) {
	assert.False(t, IsPermanentIOError(nil))
	assert.False(t, IsPermanentIOError(syscall.EIO))
	assert.False(t, IsPermanentIOError(syscall.EAGAIN))
	assert.False(t, IsPermanentIOError(io.ErrShortWrite))
	assert.True(t, IsPermanentIOError(syscall.ENOSPC))
	assert.True(t, IsPermanentIOError(&os.PathError{Op: "write", Path: "/dev/sdb", Err: syscall.EROFS}))
	assert.True(t, IsPermanentIOError(fmt.Errorf("wrap: %w", syscall.ENODEV)))
	assert.True(t, IsPermanentIOError(errors.New("There is not enough space on the disk")))
}

func TestRetryPolicyRetriesTransientErrors(t *testing.T) {
	p := retryPolicy{maxRetries: 3, interval: time.Millisecond}
	calls, retries := 0, 0
	err := p.do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return syscall.EIO
		}
		return nil
	}, func(error, time.Duration) { retries++ })

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestRetryPolicyGivesUp(t *testing.T) {
	p := retryPolicy{maxRetries: 2, interval: time.Millisecond}
	calls := 0
	err := p.do(context.Background(), func() error {
		calls++
		return syscall.EIO
	}, nil)

	assert.ErrorIs(t, err, syscall.EIO)
	assert.Equal(t, 3, calls, "one attempt plus max_retries")
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	p := retryPolicy{maxRetries: 5, interval: time.Millisecond}
	calls := 0
	err := p.do(context.Background(), func() error {
		calls++
		return syscall.EROFS
	}, nil)

	assert.ErrorIs(t, err, syscall.EROFS)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retryPolicy{maxRetries: 10, interval: time.Hour}
	calls := 0
	err := p.do(ctx, func() error {
		calls++
		cancel()
		return syscall.EIO
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
