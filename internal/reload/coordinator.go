package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/AdguardTeam/AdGuardCB/internal/backend"
	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Coordinator reloads the content blockers of all categories against the
// enforcement backend and answers the enablement queries.
type Coordinator struct {
	logger      *slog.Logger
	backend     backend.Interface
	notifier    *Notifier
	metrics     Metrics
	retry       *RetryPolicy
	closed      *atomic.Bool
	appBundleID string
}

// Config is the configuration structure for [Coordinator].
type Config struct {
	// Logger is used for logging the reloads.  It must not be nil.
	Logger *slog.Logger

	// Backend is the enforcement backend.  It must not be nil.
	Backend backend.Interface

	// Notifier delivers the lifecycle notifications.  It must not be nil.
	Notifier *Notifier

	// Metrics is used for the collection of the reload statistics.  It must
	// not be nil.
	Metrics Metrics

	// RetryPolicy defines the retries of the failed reloads.  It must not be
	// nil.
	RetryPolicy *RetryPolicy

	// AppBundleID is the bundle identifier of the application, which is the
	// prefix of the content-blocker identifiers.  It must not be empty.
	AppBundleID string
}

// New returns a new properly initialized *Coordinator.  c must not be nil.
func New(c *Config) (coord *Coordinator) {
	return &Coordinator{
		logger:      c.Logger,
		backend:     c.Backend,
		notifier:    c.Notifier,
		metrics:     c.Metrics,
		retry:       c.RetryPolicy,
		closed:      &atomic.Bool{},
		appBundleID: c.AppBundleID,
	}
}

// Close marks the coordinator as closed.  The reloads attempted after that end
// with [ErrMissingCoordinator].
func (c *Coordinator) Close() {
	c.closed.Store(true)
}

// ReloadAll reloads the content blockers of all categories and returns the
// aggregated error.  See [Result.Err].
func (c *Coordinator) ReloadAll(ctx context.Context) (err error) {
	return c.ReloadAllResult(ctx).Err()
}

// catResult is the result of reloading a single category.
type catResult struct {
	err error
	cat blocker.Category
}

// ReloadAllResult reloads the content blockers of all categories concurrently
// and returns the per-category outcome.  The observers are notified before the
// reload starts and after all categories are done, whatever the outcome.
func (c *Coordinator) ReloadAllResult(ctx context.Context) (res *Result) {
	// The backend calls are not cancelled.
	ctx = context.WithoutCancel(ctx)

	c.notifier.notifyStarted(ctx)
	defer c.notifier.notifyFinished(ctx)

	cats := blocker.Categories()
	resCh := make(chan catResult, len(cats))
	for _, cat := range cats {
		go c.reloadOneAsync(ctx, cat, resCh)
	}

	res = &Result{
		Errors: map[blocker.Category]error{},
	}

	for range cats {
		r := <-resCh
		if r.err != nil {
			res.Errors[r.cat] = r.err
		}
	}

	c.logger.InfoContext(
		ctx,
		"reloaded content blockers",
		"total", len(cats),
		"failed", len(res.Errors),
	)

	return res
}

// reloadOneAsync reloads cat and sends the result to resCh.  It is intended to
// be used as a goroutine.
func (c *Coordinator) reloadOneAsync(
	ctx context.Context,
	cat blocker.Category,
	resCh chan<- catResult,
) {
	defer c.recoverAndSend(ctx, cat, resCh)

	resCh <- catResult{
		err: c.reloadOne(ctx, cat),
		cat: cat,
	}
}

// recoverAndSend is a deferred helper that recovers from a panic, logs it, and
// sends it to resCh as the error of cat.
func (c *Coordinator) recoverAndSend(
	ctx context.Context,
	cat blocker.Category,
	resCh chan<- catResult,
) {
	v := recover()
	if v == nil {
		return
	}

	err := errors.FromRecovered(v)
	c.logger.ErrorContext(ctx, "recovered from panic", "category", cat, slogutil.KeyError, err)
	slogutil.PrintStack(ctx, c.logger, slog.LevelError)

	resCh <- catResult{
		err: &Error{
			Err:      err,
			Category: cat,
		},
		cat: cat,
	}
}

// reloadOne reloads the content blocker of cat, retrying according to the
// retry policy.  Any error returned has the type [*Error].
func (c *Coordinator) reloadOne(ctx context.Context, cat blocker.Category) (err error) {
	id := blocker.NewID(c.appBundleID, cat)
	l := c.logger.With("category", cat)

	attempt := 0
	for {
		attempt++

		err = c.reloadAttempt(ctx, id)
		if !c.retry.ShouldRetry(attempt, err) {
			break
		}

		l.WarnContext(ctx, "retrying reload", "attempt", attempt, slogutil.KeyError, err)
	}

	c.metrics.ObserveReload(ctx, cat, attempt, err)

	if err != nil {
		l.ErrorContext(ctx, "reload failed", "attempts", attempt, slogutil.KeyError, err)

		return &Error{
			Err:      err,
			Category: cat,
		}
	}

	l.DebugContext(ctx, "reloaded", "attempts", attempt)

	return nil
}

// reloadAttempt makes a single reload call to the backend and waits for its
// result.
func (c *Coordinator) reloadAttempt(ctx context.Context, id blocker.ID) (err error) {
	if c.closed.Load() {
		return ErrMissingCoordinator
	}

	errCh := make(chan error, 1)
	c.backend.Reload(ctx, id, func(err error) {
		errCh <- err
	})

	err = <-errCh
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	return nil
}

// workerContextKey is the context key marking the contexts of the cycle
// worker.
type workerContextKey struct{}

// ContextWithWorker returns a copy of the parent context marked as the context
// of the cycle worker.  [Coordinator.Enabled] refuses to block on such
// contexts.
func ContextWithWorker(parent context.Context) (ctx context.Context) {
	return context.WithValue(parent, workerContextKey{}, true)
}

// IsWorkerContext returns true if ctx is marked as the context of the cycle
// worker.
func IsWorkerContext(ctx context.Context) (ok bool) {
	ok, _ = ctx.Value(workerContextKey{}).(bool)

	return ok
}

// errWorkerContext is reported when a blocking query is made from the cycle
// worker.
const errWorkerContext errors.Error = "blocking state query from the cycle worker"

// Enabled returns true if the content blocker of cat is enabled.  It blocks
// until the backend answers, without any timeout, so it must not be called
// from the cycle worker; in that case, it logs an error and returns false.
// Backend errors are logged and reported as false.
func (c *Coordinator) Enabled(ctx context.Context, cat blocker.Category) (ok bool) {
	if IsWorkerContext(ctx) {
		c.logger.ErrorContext(
			ctx,
			"checking state",
			"category", cat,
			slogutil.KeyError, errWorkerContext,
		)

		return false
	}

	type state struct {
		err     error
		enabled bool
	}

	stateCh := make(chan state, 1)
	id := blocker.NewID(c.appBundleID, cat)
	c.backend.State(context.WithoutCancel(ctx), id, func(enabled bool, err error) {
		stateCh <- state{
			err:     err,
			enabled: enabled,
		}
	})

	st := <-stateCh
	if st.err != nil {
		c.logger.ErrorContext(ctx, "checking state", "category", cat, slogutil.KeyError, st.err)

		return false
	}

	return st.enabled
}

// AllStates returns the enablement states of the content blockers of all
// categories.  See [Coordinator.Enabled].
func (c *Coordinator) AllStates(ctx context.Context) (states map[blocker.Category]bool) {
	cats := blocker.Categories()
	states = make(map[blocker.Category]bool, len(cats))
	for _, cat := range cats {
		states[cat] = c.Enabled(ctx, cat)
	}

	return states
}
