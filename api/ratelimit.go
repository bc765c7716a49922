package api

import (
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// uploadLimiter hands out one token bucket per username.
type uploadLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newUploadLimiter returns nil when r is negative, which disables limiting.
func newUploadLimiter(r float64, burst int) *uploadLimiter {
	if r < 0 {
		return nil
	}
	return &uploadLimiter{
		limit:    rate.Limit(r),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *uploadLimiter) get(username string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[username]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[username] = lim
	}
	return lim
}

// limitUploads answers 429 when the caller exhausted their upload bucket.
// It runs after requireUser.
func (s *Server) limitUploads(c *fiber.Ctx) error {
	if s.uploads == nil {
		return c.Next()
	}

	user := currentUser(c)
	if user == nil {
		return c.Next()
	}

	res := s.uploads.get(user.Username).Reserve()
	if !res.OK() {
		return detail(c, fiber.StatusTooManyRequests, detailThrottled)
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(delay.Seconds())+1))
		return detail(c, fiber.StatusTooManyRequests, detailThrottled)
	}
	return c.Next()
}
