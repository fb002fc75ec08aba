package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mobiledjay/backend/pkg/utils"
)

// limiterEntry tracks one client's bucket and when it was last used.
type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps an independent token bucket per client IP. Idle
// buckets are evicted after ttl.
type RateLimiter struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	startCleanup sync.Once
	stopOnce     sync.Once
	stop         chan struct{}
}

// NewRateLimiter builds a limiter allowing rps sustained requests with
// bursts of up to burst per client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rate.Limit(rps),
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
}

// Handler rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait, ok := rl.allow(clientKey(r)); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			utils.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop ends the eviction goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// allow spends a token for key. When none is available it reports how
// long until one will be.
func (rl *RateLimiter) allow(key string) (time.Duration, bool) {
	rl.startCleanup.Do(func() {
		go rl.cleanupLoop(time.Minute)
	})

	now := rl.now()
	res := rl.get(key, now).ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

func (rl *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if e, ok := rl.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(rl.rps, rl.burst)
	rl.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

func (rl *RateLimiter) cleanupLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets idle for longer than ttl.
func (rl *RateLimiter) evict() {
	cutoff := rl.now().Add(-rl.ttl)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, e := range rl.m {
		if e.lastSeen.Before(cutoff) {
			delete(rl.m, k)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.m)
}

// clientKey uses the host part of RemoteAddr, which chi's RealIP has
// already rewritten when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
