package appview

import (
	"net/http"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/labstack/echo/v4"
)

// RateLimiter applies a per-IP sliding window across the whole API.
// Limiter instances are created lazily per remote address and kept for
// the life of the process; the window state is in-memory only.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*slidingwindow.Limiter

	perSecond int64
}

func NewRateLimiter(perSecond int64) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*slidingwindow.Limiter),
		perSecond: perSecond,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *slidingwindow.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if lim, ok := rl.limiters[ip]; ok {
		return lim
	}
	lim, _ := slidingwindow.NewLimiter(time.Second, rl.perSecond, func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return slidingwindow.NewLocalWindow()
	})
	rl.limiters[ip] = lim
	return lim
}

// Allow reports whether another request from the address fits the
// window.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.limiterFor(ip).Allow()
}

func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
