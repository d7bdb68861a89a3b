package converter

import "context"

// Metrics is an interface that is used for the collection of the converter
// cache statistics.
type Metrics interface {
	// IncrementLookups increments the number of cache lookups.  hit is true if
	// the result was found in the cache.
	IncrementLookups(ctx context.Context, hit bool)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// IncrementLookups implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementLookups(_ context.Context, _ bool) {}
