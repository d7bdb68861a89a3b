// Package reload contains the coordinator that reloads the content blockers
// against the enforcement backend.
package reload

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// ErrMissingCoordinator is returned for the reloads attempted after the
// coordinator has been closed.  Such errors are never retried.
const ErrMissingCoordinator errors.Error = "reload coordinator is missing"

// Error is the reload error of a single category.
type Error struct {
	// Err is the underlying error.
	Err error

	// Category is the category that failed to reload.
	Category blocker.Category
}

// type check
var _ errors.Wrapper = (*Error)(nil)

// Error implements the error interface for *Error.
func (err *Error) Error() (msg string) {
	return fmt.Sprintf("reloading %s: %s", err.Category, err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *Error.
func (err *Error) Unwrap() (unwrapped error) {
	return err.Err
}

// RetryPolicy defines how many times a failed reload is attempted.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts, including the first one.
	// It must be positive.
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultMaxAttempts is the default value of [RetryPolicy.MaxAttempts]: a
// failed reload is retried once.
const DefaultMaxAttempts = 2

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() (p *RetryPolicy) {
	return &RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
	}
}

// type check
var _ validate.Interface = (*RetryPolicy)(nil)

// Validate implements the [validate.Interface] interface for *RetryPolicy.
func (p *RetryPolicy) Validate() (err error) {
	if p == nil {
		return errors.ErrNoValue
	}

	return validate.Positive("max_attempts", p.MaxAttempts)
}

// ShouldRetry returns true if another attempt must be made after attempt
// number attempt, counting from one, has ended with err.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) (ok bool) {
	return err != nil && !errors.Is(err, ErrMissingCoordinator) && attempt < p.MaxAttempts
}

// Result is the outcome of reloading all categories.
type Result struct {
	// Errors contains the errors of the categories that failed to reload.  The
	// successfully reloaded categories are absent.
	Errors map[blocker.Category]error
}

// Err returns the aggregated error of r: the error of the last failed category
// in the fixed category order, or nil if all categories have been reloaded.
func (r *Result) Err() (err error) {
	for _, c := range blocker.Categories() {
		if catErr := r.Errors[c]; catErr != nil {
			err = catErr
		}
	}

	return err
}

// Metrics is an interface that is used for the collection of the reload
// statistics.
type Metrics interface {
	// ObserveReload records the result of reloading c.  attempts is the number
	// of backend calls made.
	ObserveReload(ctx context.Context, c blocker.Category, attempts int, err error)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveReload implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveReload(_ context.Context, _ blocker.Category, _ int, _ error) {}
