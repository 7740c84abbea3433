package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	// Requests allowed per Window per client key. Zero disables limiting.
	Requests int           `default:"120"`
	Window   time.Duration `default:"1m"`
}

// KeyFunc derives the rate-limit bucket key from a request.
type KeyFunc func(*http.Request) string

// ClientIPKey keys requests by client IP, honouring X-Forwarded-For and
// X-Real-IP set by a fronting proxy.
func ClientIPKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateWindow struct {
	start time.Time
	count int
}

type rateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*rateWindow
}

// allow reports whether a request keyed by k may proceed, together with
// the remaining quota and the time the current window resets.
func (l *rateLimiter) allow(k string) (ok bool, remaining int, reset time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[k]
	if w == nil || now.Sub(w.start) >= l.cfg.Window {
		w = &rateWindow{start: now}
		l.windows[k] = w
	}
	reset = w.start.Add(l.cfg.Window)

	if w.count >= l.cfg.Requests {
		return false, 0, reset
	}
	w.count++
	return true, l.cfg.Requests - w.count, reset
}

// cleanup drops expired windows until ctx is cancelled.
func (l *rateLimiter) cleanup(ctx context.Context) {
	t := time.NewTicker(l.cfg.Window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := l.now()
			l.mu.Lock()
			for k, w := range l.windows {
				if now.Sub(w.start) >= l.cfg.Window {
					delete(l.windows, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// RateLimit enforces a fixed-window per-client request limit. Rejected
// requests get a 429 with a JSON body and Retry-After header. The cleanup
// goroutine stops when ctx is cancelled.
func RateLimit(ctx context.Context, cfg RateLimitConfig, key KeyFunc) Middleware {
	if key == nil {
		key = ClientIPKey
	}
	l := &rateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*rateWindow),
	}
	if cfg.Requests > 0 {
		go l.cleanup(ctx)
	}

	limit := strconv.Itoa(cfg.Requests)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ok, remaining, reset := l.allow(key(r))
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":429,"message":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
