package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samiecode/babylon/pkg/metrics"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while a breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

type Rule struct {
	// probes allowed in half-open (0 is treated as 1 by gobreaker)
	MaxRequests uint32

	// closed-state counting window
	Interval time.Duration

	// rolling window bucket; <= 0 keeps a fixed window
	BucketPeriod time.Duration

	// open duration before half-open
	Timeout time.Duration

	TripConsecutiveFailures uint32
	TripFailureRate         float64 // 0~1
	TripMinRequests         uint32
}

type Manager struct {
	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[struct{}]

	defaultRule Rule
	rules       map[string]Rule

	// IsSuccessful decides which errors do not count as breaker failures.
	IsSuccessful func(err error) bool
}

func NewManager(defaultRule Rule, perName map[string]Rule) *Manager {
	if defaultRule.MaxRequests == 0 {
		defaultRule.MaxRequests = 1
	}
	if defaultRule.Timeout <= 0 {
		defaultRule.Timeout = 30 * time.Second
	}
	if defaultRule.Interval <= 0 {
		defaultRule.Interval = time.Minute
	}
	if defaultRule.TripConsecutiveFailures == 0 && defaultRule.TripFailureRate == 0 {
		defaultRule.TripConsecutiveFailures = 5
	}
	if defaultRule.TripMinRequests == 0 {
		defaultRule.TripMinRequests = 20
	}

	return &Manager{
		m:            make(map[string]*gobreaker.CircuitBreaker[struct{}], 8),
		defaultRule:  defaultRule,
		rules:        perName,
		IsSuccessful: IsTransportHealthy,
	}
}

// Do runs fn through the breaker registered under name.
func (m *Manager) Do(name string, fn func() error) error {
	_, err := m.Get(name).Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (m *Manager) Get(name string) *gobreaker.CircuitBreaker[struct{}] {
	m.mu.RLock()
	cb := m.m[name]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb = m.m[name]; cb != nil {
		return cb
	}

	rule, ok := m.rules[name]
	if !ok {
		rule = m.defaultRule
	}
	isSuccessful := m.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = IsTransportHealthy
	}
	st := gobreaker.Settings{
		Name:         name,
		MaxRequests:  rule.MaxRequests,
		Interval:     rule.Interval,
		BucketPeriod: rule.BucketPeriod,
		Timeout:      rule.Timeout,

		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				failRate := float64(c.TotalFailures) / float64(c.Requests)
				return failRate >= rule.TripFailureRate
			}
			return false
		},
		OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsSuccessful: isSuccessful,
	}

	cb = gobreaker.NewCircuitBreaker[struct{}](st)
	m.m[name] = cb
	return cb
}

// IsTransportHealthy treats caller cancellation as success so a client that
// gives up does not trip the breaker.
func IsTransportHealthy(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
