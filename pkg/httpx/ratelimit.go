package httpx

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/swiftlogistics/platform/pkg/slogx"
)

// RateLimitConfig defines a fixed-window request budget.
type RateLimitConfig struct {
	// Name separates the counters of different profiles sharing one store.
	Name string
	// RequestsPerWindow is the number of requests allowed in one window
	RequestsPerWindow int
	// Window is the length of each fixed window
	Window time.Duration
}

// Common rate limit profiles for different endpoint types
// These can be overridden via environment variables (see init() below)
var (
	// StrictLimit for credential endpoints (login, register)
	// Override with: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC
	StrictLimit = RateLimitConfig{Name: "strict", RequestsPerWindow: 10, Window: time.Minute}

	// ModerateLimit for authenticated writes
	// Override with: RATELIMIT_MODERATE_REQUESTS, RATELIMIT_MODERATE_WINDOW_SEC
	ModerateLimit = RateLimitConfig{Name: "moderate", RequestsPerWindow: 30, Window: time.Minute}

	// GlobalLimit is the gateway-wide budget, 100 requests per 15 minutes.
	// Override with: RATELIMIT_GLOBAL_REQUESTS, RATELIMIT_GLOBAL_WINDOW_SEC
	GlobalLimit = RateLimitConfig{Name: "global", RequestsPerWindow: 100, Window: 15 * time.Minute}

	// PublicLimit for health probes and public tracking
	// Override with: RATELIMIT_PUBLIC_REQUESTS, RATELIMIT_PUBLIC_WINDOW_SEC
	PublicLimit = RateLimitConfig{Name: "public", RequestsPerWindow: 1000, Window: time.Minute}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
	GlobalLimit = ParseRateLimitFromEnv("GLOBAL", GlobalLimit)
	PublicLimit = ParseRateLimitFromEnv("PUBLIC", PublicLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	return config
}

// WindowCount is the state of one counter after an increment.
type WindowCount struct {
	Count   int64
	ResetAt time.Time
}

// WindowCounter increments the counter for key in the current fixed window.
// Counters never carry over from one window to the next.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (WindowCount, error)
}

// WindowStart aligns t to the start of its fixed window.
func WindowStart(t time.Time, window time.Duration) time.Time {
	return t.Truncate(window)
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, client ID, etc.)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserIDKeyExtractor extracts the user ID from the request context.
// Returns empty string if no user ID is found.
func UserIDKeyExtractor(r *http.Request) string {
	if userID, ok := r.Context().Value(CtxKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// FirstKeyExtractor returns the first non-empty key, so a subject id wins
// over the caller address when both are available.
func FirstKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				return key
			}
		}
		return ""
	}
}

// MemoryWindowCounter keeps fixed-window counters in process memory.
type MemoryWindowCounter struct {
	// Now is the clock, overridable in tests.
	Now func() time.Time

	mu          sync.Mutex
	windows     map[string]*memoryWindow
	lastCleanup time.Time
}

type memoryWindow struct {
	start time.Time
	end   time.Time
	count int64
}

// NewMemoryWindowCounter returns an empty in-process counter.
func NewMemoryWindowCounter() *MemoryWindowCounter {
	return &MemoryWindowCounter{
		Now:     time.Now,
		windows: make(map[string]*memoryWindow),
	}
}

func (c *MemoryWindowCounter) Incr(_ context.Context, key string, window time.Duration) (WindowCount, error) {
	now := c.Now()
	start := WindowStart(now, window)

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &memoryWindow{start: start, end: start.Add(window)}
		c.windows[key] = w
	}
	w.count++

	c.maybeCleanup(now)
	return WindowCount{Count: w.count, ResetAt: w.end}, nil
}

// maybeCleanup drops windows that have already closed. Caller holds mu.
func (c *MemoryWindowCounter) maybeCleanup(now time.Time) {
	if now.Sub(c.lastCleanup) < 5*time.Minute {
		return
	}
	c.lastCleanup = now

	for key, w := range c.windows {
		if !now.Before(w.end) {
			delete(c.windows, key)
		}
	}
}

// RateLimitMiddleware rejects requests once the key's budget for the current
// window is spent. A nil counter gets a private in-memory one. Counter
// failures let the request through.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor, counter WindowCounter) Middleware {
	if counter == nil {
		counter = NewMemoryWindowCounter()
	}
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			wc, err := counter.Incr(ctx, config.Name+":"+key, config.Window)
			if err != nil {
				log.Warn("rate limit: counter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(int64(config.RequestsPerWindow)-wc.Count, 0)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(wc.ResetAt.Unix(), 10))

			if wc.Count > int64(config.RequestsPerWindow) {
				retryAfter := max(int(time.Until(wc.ResetAt).Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded",
					"key", key,
					"profile", config.Name,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by caller address only.
func RateLimitByIP(config RateLimitConfig, counter WindowCounter) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor, counter)
}

// RateLimitByUser limits by authenticated subject id, falling back to the
// caller address for anonymous requests.
func RateLimitByUser(config RateLimitConfig, counter WindowCounter) Middleware {
	return RateLimitMiddleware(config, FirstKeyExtractor(UserIDKeyExtractor, IPKeyExtractor), counter)
}
