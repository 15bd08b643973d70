package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds call limits.
type Config struct {
	// MaxInFlight is the maximum number of concurrent remote calls.
	// If 0, unlimited.
	MaxInFlight int64

	// RequestsPerSecond is the sustained call rate.
	// If 0, unlimited.
	RequestsPerSecond float64

	// Burst is the token bucket size. Defaults to 1 when a rate is set.
	Burst int
}

// Controller throttles remote calls.
type Controller struct {
	cfg Config

	inFlightSem *semaphore.Weighted // nil if unlimited
	inFlight    atomic.Int64
	total       atomic.Int64

	limiter *rate.Limiter // nil if unlimited
}

// NewController creates a new call controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxInFlight > 0 {
		c.inFlightSem = semaphore.NewWeighted(cfg.MaxInFlight)
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c
}

// Acquire blocks until a call may start or ctx is done.
// The returned release func must be called once the call has finished.
func (c *Controller) Acquire(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if c.inFlightSem != nil {
		if err := c.inFlightSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	c.inFlight.Add(1)
	c.total.Add(1)

	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		c.inFlight.Add(-1)
		if c.inFlightSem != nil {
			c.inFlightSem.Release(1)
		}
	}, nil
}

// InFlight returns the number of calls currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Total returns the number of calls admitted since creation.
func (c *Controller) Total() int64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}
