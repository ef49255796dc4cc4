package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// clientLimiter tracks a rate limiter and its last access time
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client IP. Payment lifecycles hold a provider
// slot for minutes, so bursts from one client are refused before they reach Swish.
type RateLimiter struct {
	mu              sync.Mutex
	limiters        map[string]*clientLimiter
	rate            rate.Limit
	burst           int
	maxSize         int
	cleanupInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond per client with the given burst
func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		limiters:        make(map[string]*clientLimiter),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxSize:         10000,
		cleanupInterval: 5 * time.Minute,
		logger:          logger,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			if removed := rl.cleanup(); removed > 0 {
				rl.logger.Debug("Removed idle rate limiters", zap.Int("removed", removed))
			}
		}
	}
}

// cleanup drops limiters idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cleanupInterval)
	removed := 0
	for client, l := range rl.limiters {
		if l.lastAccess.Before(cutoff) {
			delete(rl.limiters, client)
			removed++
		}
	}
	return removed
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if l, ok := rl.limiters[client]; ok {
		l.lastAccess = now
		return l.limiter
	}

	if len(rl.limiters) >= rl.maxSize {
		rl.evictOldest()
	}

	l := &clientLimiter{
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastAccess: now,
	}
	rl.limiters[client] = l
	return l.limiter
}

// evictOldest removes the least recently used limiter. Caller holds mu.
func (rl *RateLimiter) evictOldest() {
	var oldest string
	var oldestTime time.Time
	for client, l := range rl.limiters {
		if oldest == "" || l.lastAccess.Before(oldestTime) {
			oldest = client
			oldestTime = l.lastAccess
		}
	}
	delete(rl.limiters, oldest)
}

// Middleware rejects clients over their limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)

		if !rl.getLimiter(client).Allow() {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client", client),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.rate <= 0 {
		return 60
	}
	seconds := int(1 / float64(rl.rate))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// clientIP strips the port from the remote address
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
