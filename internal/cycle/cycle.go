// Package cycle contains the orchestrator of the rebuild-and-reload cycles:
// preparation, partitioning, conversion, persistence, and reload.
package cycle

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/partition"
	"github.com/AdguardTeam/golibs/errors"
)

// Request describes a single cycle.
type Request struct {
	// Prepare, if not nil, is called on the worker before anything else.  If
	// it returns an error, the cycle is aborted without touching the
	// enforcement backend.  It is the supported place to change the settings.
	Prepare func(ctx context.Context) (err error)

	// Filters, if not nil, are used instead of the filters from the source.
	Filters []*partition.Filter

	// UserRules are the user rules used along with Filters.  They are ignored
	// if Filters is nil.
	UserRules *partition.UserRules
}

// Reloader reloads all content blockers.
type Reloader interface {
	// ReloadAll reloads the content blockers of all categories.
	ReloadAll(ctx context.Context) (err error)
}

// Error values.
const (
	// ErrAllConversionsFailed is returned when no category could be
	// converted, in which case nothing is saved.
	ErrAllConversionsFailed errors.Error = "all conversions failed"

	// ErrShutdown is returned for the cycles requested after the orchestrator
	// has been shut down or dropped during the shutdown.
	ErrShutdown errors.Error = "orchestrator is shut down"

	// ErrQueueFull is returned when there are too many pending cycles.
	ErrQueueFull errors.Error = "cycle queue is full"

	// ErrWorkerContext is returned when a blocking cycle is requested from the
	// worker itself.
	ErrWorkerContext errors.Error = "blocking cycle requested from the cycle worker"
)

// PrepareError is returned when the preparation step of a cycle fails.
type PrepareError struct {
	Err error
}

// type check
var _ errors.Wrapper = (*PrepareError)(nil)

// Error implements the error interface for *PrepareError.
func (err *PrepareError) Error() (msg string) {
	return fmt.Sprintf("preparing: %s", err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *PrepareError.
func (err *PrepareError) Unwrap() (unwrapped error) {
	return err.Err
}

// SaveError is returned when the converted artifacts cannot be saved.
type SaveError struct {
	Err error
}

// type check
var _ errors.Wrapper = (*SaveError)(nil)

// Error implements the error interface for *SaveError.
func (err *SaveError) Error() (msg string) {
	return fmt.Sprintf("saving: %s", err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *SaveError.
func (err *SaveError) Unwrap() (unwrapped error) {
	return err.Err
}

// Metrics is an interface that is used for the collection of the cycle
// statistics.
type Metrics interface {
	// ObserveCycle records the duration of a cycle and its result.
	ObserveCycle(ctx context.Context, dur float64, err error)

	// SetConversion records the conversion result of c.
	SetConversion(ctx context.Context, c blocker.Category, res *blocker.ConversionResult)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveCycle implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveCycle(_ context.Context, _ float64, _ error) {}

// SetConversion implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetConversion(
	_ context.Context,
	_ blocker.Category,
	_ *blocker.ConversionResult,
) {
}
