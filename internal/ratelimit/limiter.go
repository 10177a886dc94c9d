// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by Check when a tool call is rejected.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// refill returns the bucket for key with tokens accrued up to now. Callers hold mu.
func (l *Limiter) refill(key string) *bucket {
	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens < 1.0 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the tokens currently available for key.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refill(key).tokens
}

// ToolLimit is the configured budget of one tool.
type ToolLimit struct {
	Tool      string
	PerMinute float64
	Burst     int
}

// DefaultLimits bounds the simulation tools by cost: sweeps run many
// scenarios, single simulations one, and store reads are cheap.
var DefaultLimits = []ToolLimit{
	{Tool: "entrysim_simulate", PerMinute: 20, Burst: 5},
	{Tool: "entrysim_sweep", PerMinute: 4, Burst: 1},
	{Tool: "entrysim_runs", PerMinute: 60, Burst: 10},
	{Tool: "entrysim_series", PerMinute: 60, Burst: 10},
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates one limiter per entry of limits.
func NewToolLimiters(limits []ToolLimit) ToolLimiters {
	out := make(ToolLimiters, len(limits))
	for _, tl := range limits {
		out[tl.Tool] = NewLimiter(tl.PerMinute/60.0, tl.Burst)
	}
	return out
}

// Check returns nil if a call to tool is allowed and an error wrapping
// ErrRateLimited otherwise. Tools without a configured limiter are always
// allowed.
func (tl ToolLimiters) Check(tool string) error {
	limiter, ok := tl[tool]
	if !ok {
		return nil
	}
	if !limiter.Allow(tool) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, tool)
	}
	return nil
}
