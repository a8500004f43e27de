// Package resource bounds the engine's use of shared resources: how many
// feature extractions may run at once and how fast they may arrive.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentExtractions caps extractions in flight.
	// If 0, defaults to 4.
	MaxConcurrentExtractions int64

	// ExtractionsPerSecond rate-limits admission to the extractor.
	// If 0, unlimited.
	ExtractionsPerSecond float64

	// ExtractionBurst is the rate limiter burst. If 0, defaults to the
	// ceiling of ExtractionsPerSecond (minimum 1).
	ExtractionBurst int
}

// Controller admits extraction work under the configured limits.
// A nil *Controller admits everything.
type Controller struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewController creates a resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentExtractions <= 0 {
		cfg.MaxConcurrentExtractions = 4
	}

	c := &Controller{
		sem: semaphore.NewWeighted(cfg.MaxConcurrentExtractions),
	}

	if cfg.ExtractionsPerSecond > 0 {
		burst := cfg.ExtractionBurst
		if burst <= 0 {
			burst = int(cfg.ExtractionsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.ExtractionsPerSecond), burst)
	}

	return c
}

// Acquire blocks until an extraction slot is available (and the rate limiter
// admits the call), or the context is done. Every successful Acquire must be
// paired with Release.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return c.sem.Acquire(ctx, 1)
}

// Release frees a slot acquired by Acquire.
func (c *Controller) Release() {
	if c == nil {
		return
	}
	c.sem.Release(1)
}
