// Package service holds the savings state machines and the use cases the
// HTTP layer calls.
package service

import (
	"context"
	"time"

	"github.com/samiecode/babylon/pkg/metrics"
)

// Clock is swapped in tests.
type Clock func() time.Time

// Invalidator drops cached watch-list state after local wallet writes.
type Invalidator interface {
	Invalidate()
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate() {}

// withConfirmTimeout bounds a chain call plus its confirmation wait.
func withConfirmTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// detached keeps request values but survives cancellation, for commits that
// must follow a chain call that already landed.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func countTransition(machine string, to string) {
	metrics.StateTransitionsTotal.WithLabelValues(machine, to).Inc()
}
