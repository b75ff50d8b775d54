package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter bounds how fast invocations are dispatched to the external
// binary. Limits are keyed by subcommand so that expensive operations can
// be throttled independently of cheap read-only queries.
type RateLimiter interface {
	// Allow reports whether an invocation of the subcommand may proceed now.
	Allow(subcommand string) bool

	// Wait blocks until an invocation of the subcommand may proceed or the
	// context is canceled.
	Wait(ctx context.Context, subcommand string) error

	// SetLimit updates the rate limit for a subcommand.
	SetLimit(subcommand string, limit rate.Limit, burst int)
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// DefaultLimit is the default invocations per second.
	DefaultLimit float64

	// DefaultBurst is the default burst size.
	DefaultBurst int

	// PerSubcommand enables per-subcommand limiting. When false a single
	// global limiter governs all invocations.
	PerSubcommand bool

	// SubcommandLimits contains per-subcommand overrides.
	SubcommandLimits map[string]SubcommandLimit
}

// SubcommandLimit defines the rate limit for one subcommand.
type SubcommandLimit struct {
	Limit float64
	Burst int
}

// DefaultRateLimiterConfig returns the default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultLimit:     100,
		DefaultBurst:     150,
		PerSubcommand:    true,
		SubcommandLimits: make(map[string]SubcommandLimit),
	}
}

type rateLimiter struct {
	config        RateLimiterConfig
	globalLimiter *rate.Limiter
	perSubcommand map[string]*rate.Limiter
	mu            sync.RWMutex
}

// NewRateLimiter creates a rate limiter from the configuration.
func NewRateLimiter(config RateLimiterConfig) RateLimiter {
	rl := &rateLimiter{
		config:        config,
		globalLimiter: rate.NewLimiter(rate.Limit(config.DefaultLimit), config.DefaultBurst),
		perSubcommand: make(map[string]*rate.Limiter),
	}

	for subcommand, limit := range config.SubcommandLimits {
		rl.perSubcommand[subcommand] = rate.NewLimiter(rate.Limit(limit.Limit), limit.Burst)
	}

	return rl
}

// Allow implements RateLimiter.Allow.
func (rl *rateLimiter) Allow(subcommand string) bool {
	if !rl.config.PerSubcommand {
		return rl.globalLimiter.Allow()
	}
	return rl.getLimiter(subcommand).Allow()
}

// Wait implements RateLimiter.Wait.
func (rl *rateLimiter) Wait(ctx context.Context, subcommand string) error {
	if !rl.config.PerSubcommand {
		return rl.globalLimiter.Wait(ctx)
	}
	return rl.getLimiter(subcommand).Wait(ctx)
}

// SetLimit implements RateLimiter.SetLimit.
func (rl *rateLimiter) SetLimit(subcommand string, limit rate.Limit, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.perSubcommand[subcommand]; ok {
		limiter.SetLimit(limit)
		limiter.SetBurst(burst)
	} else {
		rl.perSubcommand[subcommand] = rate.NewLimiter(limit, burst)
	}
}

func (rl *rateLimiter) getLimiter(subcommand string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.perSubcommand[subcommand]
	rl.mu.RUnlock()

	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Re-check under the write lock.
	if limiter, ok := rl.perSubcommand[subcommand]; ok {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(rl.config.DefaultLimit), rl.config.DefaultBurst)
	rl.perSubcommand[subcommand] = limiter
	return limiter
}
