package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck reports whether the database answers a ping.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping database")
		}
		return nil
	}
}

// GoroutineCountCheck fails when the goroutine count exceeds max, which
// usually means a handler is leaking goroutines.
func GoroutineCountCheck(max int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return errors.Errorf("goroutine count %d exceeds %d", n, max)
		}
		return nil
	}
}

// DeadlineCheck wraps fn and fails when a single run takes longer than
// limit even if the context allows more time.
func DeadlineCheck(fn CheckFunc, limit time.Duration) CheckFunc {
	return func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		if d := time.Since(start); d > limit {
			return errors.Errorf("check took %s, limit %s", d, limit)
		}
		return err
	}
}
