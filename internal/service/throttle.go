package service

import (
	"sync"
	"time"
)

// AccessThrottle is an in-memory sliding-window attempt limiter for the
// anonymous access endpoint, used when redis is not configured.
type AccessThrottle struct {
	attempts map[string][]time.Time
	mu       sync.Mutex
	window   time.Duration
	maxReqs  int
}

// NewAccessThrottle creates a new attempt limiter
func NewAccessThrottle(window time.Duration, maxReqs int) *AccessThrottle {
	return &AccessThrottle{
		attempts: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
	}
}

// Allow records an attempt for key and reports whether it is within the limit
func (t *AccessThrottle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	if reqs, exists := t.attempts[key]; exists {
		var valid []time.Time
		for _, at := range reqs {
			if now.Sub(at) < t.window {
				valid = append(valid, at)
			}
		}
		t.attempts[key] = valid
	}

	if len(t.attempts[key]) >= t.maxReqs {
		return false
	}

	t.attempts[key] = append(t.attempts[key], now)
	return true
}
