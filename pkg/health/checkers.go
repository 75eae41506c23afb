package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are alive.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// BacklogCheck fails when count reports more than threshold pending items,
// e.g. orders still waiting for their payment to settle.
func BacklogCheck(count func() int, threshold int) CheckFunc {
	return func(context.Context) error {
		if n := count(); n > threshold {
			return errors.Errorf("backlog %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is a dependency that answers a ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p does not answer.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
