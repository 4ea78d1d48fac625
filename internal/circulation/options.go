// internal/circulation/options.go
package circulation

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"lendingregistry/internal/journal"
)

// Option configures a registry.
type Option func(*registry)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracerProvider sets where registry spans are reported.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *registry) {
		if tp != nil {
			r.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider sets where registry counters are reported.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *registry) {
		if mp != nil {
			r.meter = mp.Meter(instrumentationName)
		}
	}
}

// WithJournal replaces the journal events are appended to.
func WithJournal(j *journal.Journal) Option {
	return func(r *registry) {
		if j != nil {
			r.journal = j
		}
	}
}

// WithDefaultMaxItems sets the cap for members registered without one.
func WithDefaultMaxItems(n int) Option {
	return func(r *registry) {
		if n > 0 {
			r.defaultMaxItems = n
		}
	}
}
