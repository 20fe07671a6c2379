package health

import (
	"context"
	"runtime"
	"time"

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

// FreshnessCheck fails when last reports a time older than maxAge. A zero
// time passes, so a service that has not finished its first cycle is not
// reported stale.
func FreshnessCheck(what string, maxAge time.Duration, last func() time.Time, now func() time.Time) CheckFunc {
	return func(context.Context) error {
		at := last()
		if at.IsZero() {
			return nil
		}
		if age := now().Sub(at); age > maxAge {
			return errors.Errorf("%s is stale: last update %s ago", what, age.Truncate(time.Second))
		}
		return nil
	}
}
