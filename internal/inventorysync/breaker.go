package inventorysync

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without a network call while the platform is
// considered down.
var ErrCircuitOpen = errors.New("inventory sync circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker fast-fails pushes after consecutive platform failures and lets a
// single probe through once openTimeout has elapsed.
type breaker struct {
	mu               sync.Mutex
	state            breakerState
	failures         int
	openedAt         time.Time
	failureThreshold int
	openTimeout      time.Duration
	now              func() time.Time
}

func newBreaker(failureThreshold int, openTimeout time.Duration) *breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if openTimeout <= 0 {
		openTimeout = 60 * time.Second
	}
	return &breaker{
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
	}
}

// allow reports whether a call may proceed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.openTimeout {
			return false
		}
		b.state = breakerHalfOpen
		return true
	case breakerHalfOpen:
		// one probe at a time
		return false
	default:
		return true
	}
}

func (b *breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !failed {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}
