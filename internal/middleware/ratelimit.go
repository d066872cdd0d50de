package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is an in-memory fixed-window limiter keyed by client IP.
// It guards the abuse-prone write endpoints (comment creation,
// webhooks); state is per process, which is enough for a single-node
// deployment.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go rl.reap()
	return rl
}

func (rl *RateLimiter) reap() {
	for {
		time.Sleep(rl.period)
		rl.mu.Lock()
		now := time.Now()
		for ip, w := range rl.clients {
			if now.Sub(w.start) > rl.period {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		rl.mu.Lock()
		win, ok := rl.clients[ip]
		if !ok || time.Since(win.start) > rl.period {
			win = &window{start: time.Now()}
			rl.clients[ip] = win
		}
		win.count++
		over := win.count > rl.limit
		retryAfter := rl.period - time.Since(win.start)
		rl.mu.Unlock()

		if over {
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
