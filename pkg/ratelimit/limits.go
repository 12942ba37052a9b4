package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/samiecode/babylon/pkg/safe"
)

// Quota is a token bucket shape: PerSecond refill with Burst capacity.
type Quota struct {
	PerSecond float64
	Burst     int
}

type bucketKey struct {
	group  string
	client string
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// ClientLimits keeps one bucket per (group, client). Groups without a quota
// are not limited.
type ClientLimits struct {
	mu      sync.Mutex
	quotas  map[string]Quota
	buckets map[bucketKey]*bucket
	idle    time.Duration
	now     func() time.Time
}

func NewClientLimits(quotas map[string]Quota, idle time.Duration) *ClientLimits {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	q := make(map[string]Quota, len(quotas))
	for g, v := range quotas {
		q[g] = v
	}
	return &ClientLimits{
		quotas:  q,
		buckets: make(map[bucketKey]*bucket),
		idle:    idle,
		now:     time.Now,
	}
}

// Allow takes one token from the client's bucket in group.
func (l *ClientLimits) Allow(group, client string) bool {
	l.mu.Lock()
	q, ok := l.quotas[group]
	if !ok {
		l.mu.Unlock()
		return true
	}
	k := bucketKey{group: group, client: client}
	b := l.buckets[k]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(q.PerSecond), q.Burst)}
		l.buckets[k] = b
	}
	b.seen = l.now()
	l.mu.Unlock()
	return b.limiter.Allow()
}

// Sweep drops buckets idle for longer than the idle window and returns how
// many went.
func (l *ClientLimits) Sweep() int {
	cut := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.buckets {
		if b.seen.Before(cut) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// RunSweeper sweeps every interval until ctx ends.
func (l *ClientLimits) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	safe.GoCtx(ctx, func(ctx context.Context) {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	})
}
