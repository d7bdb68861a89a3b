package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/artifactstore"
	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/converter"
	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/AdGuardCB/internal/partition"
	"github.com/AdguardTeam/AdGuardCB/internal/reload"
	"github.com/AdguardTeam/AdGuardCB/internal/source"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// job is a single queued cycle.
type job struct {
	ctx        context.Context
	req        *Request
	onComplete func(err error)
}

// Orchestrator runs the rebuild-and-reload cycles one at a time on a single
// worker goroutine.
type Orchestrator struct {
	logger    *slog.Logger
	source    source.Interface
	converter converter.Interface
	convOpts  *converter.Options
	store     artifactstore.Interface
	reloader  Reloader
	errColl   errcoll.Interface
	metrics   Metrics
	callbacks reload.Executor

	// wake is signaled when a job is added to the queue.
	wake chan struct{}

	// done is closed on shutdown.
	done chan struct{}

	// stopped is closed when the worker exits.
	stopped chan struct{}

	// mu protects queue, started, and isShutDown.
	mu         *sync.Mutex
	queue      []*job
	started    bool
	isShutDown bool

	maxQueued int
}

// Config is the configuration structure for [Orchestrator].  All fields must
// not be empty.
type Config struct {
	// Logger is used for logging the cycles.
	Logger *slog.Logger

	// Source provides the filters and the user rules when the request has
	// none.
	Source source.Interface

	// Converter converts the rule lists of the categories.
	Converter converter.Interface

	// ConverterOptions are the options of the conversion.
	ConverterOptions *converter.Options

	// Store persists the conversion results.
	Store artifactstore.Interface

	// Reloader reloads the content blockers after the results are saved.
	Reloader Reloader

	// ErrColl is used to collect the conversion errors.
	ErrColl errcoll.Interface

	// Metrics is used for the collection of the cycle statistics.
	Metrics Metrics

	// Callbacks runs the completion callbacks.  It must not run them on the
	// goroutine calling Execute.
	Callbacks reload.Executor

	// MaxQueued is the maximum number of cycles waiting for the worker.  It
	// must be positive.
	MaxQueued int
}

// New returns a new properly initialized *Orchestrator.  c must not be nil.
func New(c *Config) (o *Orchestrator) {
	return &Orchestrator{
		logger:    c.Logger,
		source:    c.Source,
		converter: c.Converter,
		convOpts:  c.ConverterOptions,
		store:     c.Store,
		reloader:  c.Reloader,
		errColl:   c.ErrColl,
		metrics:   c.Metrics,
		callbacks: c.Callbacks,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		mu:        &sync.Mutex{},
		maxQueued: c.MaxQueued,
	}
}

// type check
var _ service.Interface = (*Orchestrator)(nil)

// Start implements the [service.Interface] interface for *Orchestrator.  It
// starts the worker, which restores the conversion statistics from the store
// before running any cycles.  err is always nil.
func (o *Orchestrator) Start(ctx context.Context) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return nil
	}

	o.started = true
	go o.work(context.WithoutCancel(ctx))

	return nil
}

// Shutdown implements the [service.Interface] interface for *Orchestrator.  It
// fails the queued cycles with [ErrShutdown] and waits for the current one to
// finish.
func (o *Orchestrator) Shutdown(ctx context.Context) (err error) {
	o.mu.Lock()
	if o.isShutDown {
		o.mu.Unlock()

		return nil
	}

	o.isShutDown = true
	pending := o.queue
	o.queue = nil
	started := o.started
	o.mu.Unlock()

	close(o.done)
	for _, j := range pending {
		o.complete(j, ErrShutdown)
	}

	if !started {
		return nil
	}

	select {
	case <-o.stopped:
		o.logger.InfoContext(ctx, "shut down successfully")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for the current cycle: %w", ctx.Err())
	}
}

// RunCycle queues a cycle described by req and returns immediately.  req must
// not be nil.  onComplete, if not nil, is called with the result of the cycle
// on the callback executor.  The cycles run in the order of the calls.
func (o *Orchestrator) RunCycle(ctx context.Context, req *Request, onComplete func(err error)) {
	j := &job{
		ctx:        ctx,
		req:        req,
		onComplete: onComplete,
	}

	o.mu.Lock()
	var err error
	switch {
	case o.isShutDown:
		err = ErrShutdown
	case len(o.queue) >= o.maxQueued:
		err = ErrQueueFull
	default:
		o.queue = append(o.queue, j)
	}
	o.mu.Unlock()

	if err != nil {
		o.complete(j, err)

		return
	}

	select {
	case o.wake <- struct{}{}:
	default:
		// The worker has already been woken up.
	}
}

// Cycle runs a cycle described by req and waits for its result.  It must not
// be called from the worker, for example from [Request.Prepare].
func (o *Orchestrator) Cycle(ctx context.Context, req *Request) (err error) {
	if reload.IsWorkerContext(ctx) {
		return ErrWorkerContext
	}

	errCh := make(chan error, 1)
	o.RunCycle(ctx, req, func(cycleErr error) {
		errCh <- cycleErr
	})

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for cycle: %w", ctx.Err())
	}
}

// type check
var _ service.Refresher = (*Orchestrator)(nil)

// Refresh implements the [service.Refresher] interface for *Orchestrator.  It
// runs a cycle with the filters from the source and no preparation.
func (o *Orchestrator) Refresh(ctx context.Context) (err error) {
	o.logger.InfoContext(ctx, "refresh started")
	defer o.logger.InfoContext(ctx, "refresh finished")

	return o.Cycle(ctx, &Request{})
}

// complete schedules the completion callback of j with err, if there is one.
func (o *Orchestrator) complete(j *job, err error) {
	if j.onComplete == nil {
		return
	}

	o.callbacks.Execute(func() { j.onComplete(err) })
}

// work runs the queued cycles until shutdown.  It is intended to be used as a
// goroutine.
func (o *Orchestrator) work(ctx context.Context) {
	defer close(o.stopped)
	defer slogutil.RecoverAndLog(ctx, o.logger)

	o.logger.InfoContext(ctx, "starting worker")

	o.restoreStats(ctx)

	for {
		select {
		case <-o.done:
			o.logger.InfoContext(ctx, "worker finished")

			return
		case <-o.wake:
			o.runQueued()
		}
	}
}

// runQueued runs the queued cycles until the queue is empty or the
// orchestrator is shut down.
func (o *Orchestrator) runQueued() {
	for j := o.next(); j != nil; j = o.next() {
		o.complete(j, o.run(j))
	}
}

// next returns the next queued job or nil if there is none.
func (o *Orchestrator) next() (j *job) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.queue) == 0 || o.isShutDown {
		return nil
	}

	j = o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]

	return j
}

// run performs the cycle described by j.
func (o *Orchestrator) run(j *job) (err error) {
	ctx := reload.ContextWithWorker(context.WithoutCancel(j.ctx))

	start := time.Now()
	defer func() {
		o.metrics.ObserveCycle(ctx, time.Since(start).Seconds(), err)
		if err != nil {
			o.logger.ErrorContext(ctx, "cycle failed", slogutil.KeyError, err)
		} else {
			o.logger.InfoContext(ctx, "cycle finished", "elapsed", time.Since(start))
		}
	}()

	defer func() {
		v := recover()
		if v == nil {
			return
		}

		err = fmt.Errorf("recovered from panic: %w", errors.FromRecovered(v))
		slogutil.PrintStack(ctx, o.logger, slog.LevelError)
	}()

	if j.req.Prepare != nil {
		err = j.req.Prepare(ctx)
		if err != nil {
			return &PrepareError{Err: err}
		}
	}

	filters, userRules := j.req.Filters, j.req.UserRules
	if filters == nil {
		filters, userRules, err = o.source.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading sources: %w", err)
		}
	}

	err = userRules.Validate()
	if err != nil {
		return fmt.Errorf("user rules: %w", err)
	}

	o.checkFilters(ctx, filters)

	rs := partition.Partition(filters, userRules)
	o.logger.DebugContext(ctx, "partitioned rules", "filters", len(filters), "rules", rs.Count())

	results, err := o.convertAll(ctx, rs)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	err = o.store.Save(ctx, results)
	if err != nil {
		return &SaveError{Err: err}
	}

	return o.reloader.ReloadAll(ctx)
}

// checkFilters logs the filters with invalid categories, since the rules
// without an affinity from such filters are dropped by partitioning.
func (o *Orchestrator) checkFilters(ctx context.Context, filters []*partition.Filter) {
	for i, f := range filters {
		err := f.Validate()
		if err != nil {
			o.logger.WarnContext(ctx, "dropping rules without affinity", "idx", i, slogutil.KeyError, err)
		}
	}
}

// restoreStats sets the conversion statistics of the categories from the
// artifacts saved by the previous runs, so that they are reported before the
// first cycle finishes.
func (o *Orchestrator) restoreStats(ctx context.Context) {
	restored := 0
	for _, c := range blocker.Categories() {
		res, err := o.store.Load(ctx, c)
		if err != nil {
			if !errors.Is(err, artifactstore.ErrNotFound) {
				catCtx := errcoll.ContextWithTag(ctx, "category", c.String())
				errcoll.Collect(catCtx, o.errColl, o.logger, "restoring stats", err)
			}

			continue
		}

		o.metrics.SetConversion(ctx, c, res)
		restored++
	}

	o.logger.DebugContext(ctx, "restored stats", "categories", restored)
}
