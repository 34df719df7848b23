package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateErr struct {
	Error string `json:"error"`
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ByClientIP charges requests to the remote address.
func ByClientIP(r *http.Request) string {
	return "ip:" + clientIP(r)
}

// ByIdentity charges authenticated requests to the user and falls back to
// the client IP. It must run after AuthMiddleware.
func ByIdentity(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return ByClientIP(r)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key and forgets keys idle for
// longer than idleTTL.
type KeyedLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	entries  map[string]*limiterEntry
	lastScan time.Time
	now      func() time.Time
}

// NewKeyedLimiter returns nil when rps <= 0, which disables limiting.
func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.evictIdle(now)

	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (k *KeyedLimiter) evictIdle(now time.Time) {
	if now.Sub(k.lastScan) < k.idleTTL {
		return
	}
	k.lastScan = now
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.entries, key)
		}
	}
}

// maxRetryAfter caps the hint for very low rates.
const maxRetryAfter = 3600

func (k *KeyedLimiter) retryAfter() int {
	secs := math.Ceil(1.0 / float64(k.limit))
	if secs > maxRetryAfter || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return maxRetryAfter
	}
	return int(secs)
}

func RateLimitMiddleware(l *KeyedLimiter, key KeyFunc) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(key(r)) {
				next.ServeHTTP(w, r)
				return
			}
			rateLimitedTotal.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(rateErr{Error: "too_many_requests"})
		})
	}
}
