package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/server/handlers"
)

// RateLimiter ограничивает число запросов на ключ фиксированным окном
type RateLimiter struct {
	clock   clock.Clock
	windows map[string]*window
	logger  *slog.Logger
	limit   int
	period  time.Duration
	mu      sync.Mutex
}

type window struct {
	start time.Time
	used  int
}

// Quota результат проверки лимита для одного запроса
type Quota struct {
	// Reset время до начала следующего окна
	Reset     time.Duration
	Remaining int
	Allowed   bool
}

// NewRateLimiter разрешает limit запросов на ключ за каждый period
func NewRateLimiter(limit int, period time.Duration, clk clock.Clock, logger *slog.Logger) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &RateLimiter{
		clock:   clk,
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		logger:  logger,
	}
}

// Run периодически забывает ключи без активности, пока не отменен ctx
func (rl *RateLimiter) Run(ctx context.Context) error {
	ticker := rl.clock.NewTicker(rl.period * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			rl.evictIdle()
		case <-ctx.Done():
			return nil
		}
	}
}

// evictIdle удаляет окна, закончившиеся больше одного периода назад
func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, w := range rl.windows {
		if now.Sub(w.start) > rl.period*2 {
			delete(rl.windows, key)
		}
	}

	rl.logger.Debug("Rate limiter windows evicted", "remaining", len(rl.windows))
}

// Take расходует один запрос из окна key
func (rl *RateLimiter) Take(key string) Quota {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.period {
		w = &window{start: now}
		rl.windows[key] = w
	}

	q := Quota{Reset: w.start.Add(rl.period).Sub(now)}
	if w.used >= rl.limit {
		return q
	}
	w.used++
	q.Allowed = true
	q.Remaining = rl.limit - w.used
	return q
}

// RateLimitMiddleware ограничивает частоту запросов.
// Аутентифицированные запросы считаются по владельцу, остальные по IP,
// так что все устройства одного пользователя делят один лимит
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)
			q := limiter.Take(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))

			if !q.Allowed {
				logger.Warn("Rate limit exceeded",
					"key", key,
					"method", r.Method,
					"path", r.URL.Path,
					"reset", q.Reset,
				)

				h.Set("Retry-After", retryAfter(q.Reset))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if ownerID, ok := handlers.GetOwnerID(r.Context()); ok {
		return "owner:" + ownerID
	}
	return "ip:" + clientIP(r)
}

// retryAfter округляет d вверх до целых секунд, минимум одна
func retryAfter(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// clientIP возвращает адрес клиента без порта.
// За прокси берется первый адрес X-Forwarded-For, затем X-Real-IP
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
