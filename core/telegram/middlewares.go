package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	"github.com/m3rciful/synthbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions carries the optional hooks of DefaultMiddlewares.
type MiddlewareOptions struct {
	// Access turns users away before rate limiting and handlers see them.
	Access    *middleware.AccessOptions
	OnLimited tele.HandlerFunc
}

// DefaultMiddlewares returns the global chain in installation order:
// recover, access, rate_limit, logger, metrics. Access and rate_limit are
// left out when not configured.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if opts.Access != nil {
		chain = append(chain, Middleware{Name: "access", Use: middleware.AccessMiddleware(*opts.Access)})
	}
	if rl, ok := rateLimit(cfg, opts.OnLimited); ok {
		chain = append(chain, Middleware{Name: "rate_limit", Use: rl})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) (tele.MiddlewareFunc, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   exclude,
		OnLimited: onLimited,
	}), true
}
