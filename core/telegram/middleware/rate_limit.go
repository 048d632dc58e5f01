package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/synthbot/core/logger"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the sustained gap between updates of one user.
	Interval time.Duration
	// Burst updates may arrive back to back before Interval applies. Values
	// below one mean one.
	Burst int
	// Exclude lists update kinds that bypass the limit (callback, message,
	// inline_query).
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware drops updates from users who exceed their token bucket
// and answers them with OnLimited.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	buckets := newUserBuckets(rate.Every(opts.Interval), max(opts.Burst, 1))
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if buckets.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}

// userBuckets keeps one limiter per user and forgets users idle for longer
// than idleAfter.
type userBuckets struct {
	every rate.Limit
	burst int

	mu    sync.Mutex
	users map[int64]*bucket
	swept time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const idleAfter = 10 * time.Minute

func newUserBuckets(every rate.Limit, burst int) *userBuckets {
	return &userBuckets{every: every, burst: burst, users: make(map[int64]*bucket)}
}

func (u *userBuckets) allow(userID int64, now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if now.Sub(u.swept) > time.Minute {
		for id, b := range u.users {
			if now.Sub(b.seen) > idleAfter {
				delete(u.users, id)
			}
		}
		u.swept = now
	}
	b, ok := u.users[userID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(u.every, u.burst)}
		u.users[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
