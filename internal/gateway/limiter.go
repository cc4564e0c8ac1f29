package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// convLimiter applies per-conversation request rate limiting to the
// operation endpoints, shedding load from a single misbehaving client
// without affecting others. Grounded on the teacher's RateLimiter
// (relay/bandwidth.go), keyed by conversation id instead of source IP.
type convLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newConvLimiter(r rate.Limit, burst int) *convLimiter {
	l := &convLimiter{
		limiters: make(map[string]*entry),
		rate:     r,
		burst:    burst,
	}
	go l.evictStale()
	return l
}

func (l *convLimiter) evictStale() {
	for range time.Tick(5 * time.Minute) {
		l.mu.Lock()
		for id, e := range l.limiters {
			if time.Since(e.lastSeen) > 10*time.Minute {
				delete(l.limiters, id)
			}
		}
		l.mu.Unlock()
	}
}

func (l *convLimiter) allow(conversationID string) bool {
	l.mu.Lock()
	e, ok := l.limiters[conversationID]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[conversationID] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()
	return e.lim.Allow()
}
