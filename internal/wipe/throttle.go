package wipe

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle ограничивает скорость записи в МБ/с. Нулевой лимит - без ограничения.
type Throttle struct {
	limiter *rate.Limiter
	burst   int
}

// NewThrottle создаёт ограничитель; burst не меньше размера чанка,
// иначе WaitN никогда не пропустит чанк целиком
func NewThrottle(maxSpeedMBps float64, chunkSize int) *Throttle {
	if maxSpeedMBps <= 0 {
		return nil
	}
	bytesPerSec := maxSpeedMBps * 1024 * 1024
	burst := chunkSize
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		burst:   burst,
	}
}

// Wait блокируется, пока запись n байт не уложится в лимит
func (t *Throttle) Wait(ctx context.Context, n int) error {
	if t == nil {
		return nil
	}
	for n > 0 {
		step := n
		if step > t.burst {
			step = t.burst
		}
		if err := t.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
