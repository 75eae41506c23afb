package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration

	// KeyFunc groups requests. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window approximates a sliding window from two fixed windows.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// Limiter is a per-key sliding window rate limiter.
type Limiter struct {
	max  int
	span time.Duration
	key  func(*http.Request) string
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter creates a Limiter. Non-positive limits fall back to 100 requests
// per minute.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &Limiter{
		max:     cfg.Max,
		span:    cfg.Window,
		key:     cfg.KeyFunc,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// take counts one request for key if the weighted count is below the limit.
func (l *Limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[key]
	if !found {
		w = &window{start: now.Truncate(l.span)}
		l.windows[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.span {
		if elapsed >= 2*l.span {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(l.span)
	}

	weight := 1 - now.Sub(w.start).Seconds()/l.span.Seconds()
	count := w.prev*math.Max(weight, 0) + w.curr
	reset = w.start.Add(l.span)
	if count >= float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(l.max-int(math.Ceil(count+1)), 0), reset, true
}

// Sweep drops keys idle for two windows.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if now.Sub(w.start) >= 2*l.span {
			delete(l.windows, k)
		}
	}
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps idle keys until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(2 * l.span)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}

// Middleware rejects requests over the limit with 429. Every response carries
// the X-RateLimit-* headers.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.now()
			remaining, reset, ok := l.take(l.key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := math.Ceil(max(reset.Sub(now), 0).Seconds())
				h.Set("Retry-After", strconv.Itoa(int(wait)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit returns a limiter middleware without background sweeping.
func RateLimit(cfg RateLimitConfig) Middleware {
	return NewLimiter(cfg).Middleware()
}

// RateLimitWithCleanup also sweeps idle keys until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.Run(ctx)
	return l.Middleware()
}

// ClientIP keys a request by the first X-Forwarded-For hop, X-Real-IP or the
// remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError writes {"code":..., "message":...} with status.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
