package handler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UserLimiter gives every user their own token bucket for clip requests.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    time.Duration
	burst    int
	now      func() time.Time
}

// NewUserLimiter allows one request per every, with bursts of up to burst.
func NewUserLimiter(every time.Duration, burst int) *UserLimiter {
	return &UserLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    burst,
		now:      time.Now,
	}
}

// DefaultUserLimiter allows one clip every two seconds with a burst of three.
func DefaultUserLimiter() *UserLimiter {
	return NewUserLimiter(2*time.Second, 3)
}

// Allow reports whether userID may make a request now and spends a token
// if so.
func (l *UserLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limiters[userID] = limiter
	}
	allowed := limiter.AllowN(now, 1)

	// Forget users whose bucket has refilled so the map only holds
	// recently active users.
	if len(l.limiters) > 1024 {
		for id, lim := range l.limiters {
			if lim.TokensAt(now) >= float64(l.burst) {
				delete(l.limiters, id)
			}
		}
	}
	return allowed
}
