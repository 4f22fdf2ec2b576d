package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the process runs more goroutines than
// threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is a dependency that can be probed for connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p, wrapping its error with the dependency name.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrapf(err, "ping %s", name)
		}
		return nil
	}
}

// QueueDepthCheck fails when depth reports more than max pending items.
func QueueDepthCheck(depth func() int, max int) CheckFunc {
	return func(_ context.Context) error {
		if n := depth(); n > max {
			return errors.Errorf("queue depth %d exceeds %d", n, max)
		}
		return nil
	}
}
