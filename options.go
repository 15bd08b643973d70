package filesaga

import "time"

// DefaultCompensationTimeout bounds the rollback of a master entry.
const DefaultCompensationTimeout = 10 * time.Second

type options struct {
	metricsCollector    MetricsCollector
	logger              *Logger
	compensationTimeout time.Duration
}

// Option configures Service constructor behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &filesaga.BasicMetricsCollector{}
//	svc, _ := filesaga.New(objects, perms, filesaga.WithMetricsCollector(metrics))
//	// ... use svc ...
//	stats := metrics.GetStats()
//	fmt.Printf("Creates: %d, failed: %d\n", stats.CreateCount, stats.CreateErrors)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompensationTimeout bounds the rollback of a master entry after a
// failed step. The rollback outlives the caller's context, so a cancelled or
// timed out request still removes what it created.
// Values <= 0 select DefaultCompensationTimeout.
func WithCompensationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.compensationTimeout = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.compensationTimeout <= 0 {
		o.compensationTimeout = DefaultCompensationTimeout
	}
	return o
}
