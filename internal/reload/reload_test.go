package reload_test

import (
	"context"
	"sync"
	"testing"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/cbtest"
	"github.com/AdguardTeam/AdGuardCB/internal/reload"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testError is the common error for tests.
const testError errors.Error = "test error"

// notification is a reload lifecycle notification for tests.
type notification string

// notification values.
const (
	notifStarted  notification = "started"
	notifFinished notification = "finished"
)

// newNotifier returns a notifier with an observer that sends all
// notifications to the returned channel.
func newNotifier() (n *reload.Notifier, notifCh chan notification) {
	notifCh = make(chan notification, 16)
	n = reload.NewNotifier(reload.NewSerialExecutor(cbtest.Logger))
	n.Subscribe(&cbtest.Observer{
		OnReloadStarted: func(_ context.Context) {
			notifCh <- notifStarted
		},
		OnReloadFinished: func(_ context.Context) {
			notifCh <- notifFinished
		},
	})

	return n, notifCh
}

// requireNotifications receives two notifications from notifCh and checks
// that they are the start and the finish ones.
func requireNotifications(t *testing.T, notifCh chan notification) {
	t.Helper()

	got, _ := testutil.RequireReceive(t, notifCh, cbtest.Timeout)
	assert.Equal(t, notifStarted, got)

	got, _ = testutil.RequireReceive(t, notifCh, cbtest.Timeout)
	assert.Equal(t, notifFinished, got)

	assert.Empty(t, notifCh)
}

// callCounter counts the reload calls per content-blocker identifier.
type callCounter struct {
	mu    *sync.Mutex
	calls map[blocker.ID]int
}

// newCallCounter returns a new properly initialized *callCounter.
func newCallCounter() (c *callCounter) {
	return &callCounter{
		mu:    &sync.Mutex{},
		calls: map[blocker.ID]int{},
	}
}

// inc increments the number of calls for id and returns the new value.
func (c *callCounter) inc(id blocker.ID) (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[id]++

	return c.calls[id]
}

// get returns the number of calls for id.
func (c *callCounter) get(id blocker.ID) (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[id]
}

// newCoordinator returns a new coordinator for tests with the backend reload
// function, the notifier, and the metrics.
func newCoordinator(
	onReload func(ctx context.Context, id blocker.ID, cb func(err error)),
	n *reload.Notifier,
	m reload.Metrics,
) (c *reload.Coordinator) {
	return reload.New(&reload.Config{
		Logger: cbtest.Logger,
		Backend: &cbtest.Backend{
			OnReload: onReload,
			OnState: func(_ context.Context, _ blocker.ID, cb func(enabled bool, err error)) {
				panic("not implemented")
			},
		},
		Notifier:    n,
		Metrics:     m,
		RetryPolicy: reload.DefaultRetryPolicy(),
		AppBundleID: cbtest.AppBundleID,
	})
}

// attemptsRecorder records the reload attempts reported to the metrics per
// category.
type attemptsRecorder struct {
	mu       *sync.Mutex
	attempts map[blocker.Category]int
	errs     map[blocker.Category]error
}

// newAttemptsRecorder returns a new properly initialized *attemptsRecorder and
// the metrics that report to it.
func newAttemptsRecorder() (r *attemptsRecorder, m *cbtest.ReloadMetrics) {
	r = &attemptsRecorder{
		mu:       &sync.Mutex{},
		attempts: map[blocker.Category]int{},
		errs:     map[blocker.Category]error{},
	}

	m = &cbtest.ReloadMetrics{
		OnObserveReload: func(_ context.Context, c blocker.Category, attempts int, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.attempts[c] = attempts
			r.errs[c] = err
		},
	}

	return r, m
}

func TestCoordinator_ReloadAll(t *testing.T) {
	t.Parallel()

	idSecurity := blocker.NewID(cbtest.AppBundleID, blocker.CategorySecurity)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		counter := newCallCounter()
		n, notifCh := newNotifier()
		c := newCoordinator(func(_ context.Context, id blocker.ID, cb func(err error)) {
			counter.inc(id)
			go cb(nil)
		}, n, reload.EmptyMetrics{})

		ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)
		require.NoError(t, c.ReloadAll(ctx))

		for _, cat := range blocker.Categories() {
			assert.Equal(t, 1, counter.get(blocker.NewID(cbtest.AppBundleID, cat)))
		}

		requireNotifications(t, notifCh)
	})

	t.Run("security_retry", func(t *testing.T) {
		t.Parallel()

		counter := newCallCounter()
		rec, m := newAttemptsRecorder()
		n, notifCh := newNotifier()
		c := newCoordinator(func(_ context.Context, id blocker.ID, cb func(err error)) {
			if counter.inc(id) == 1 && id == idSecurity {
				cb(testError)

				return
			}

			cb(nil)
		}, n, m)

		ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)
		res := c.ReloadAllResult(ctx)
		require.NoError(t, res.Err())

		assert.Empty(t, res.Errors)
		assert.Equal(t, 2, counter.get(idSecurity))

		rec.mu.Lock()
		defer rec.mu.Unlock()

		require.Len(t, rec.attempts, blocker.CategoriesCount)

		for _, cat := range blocker.Categories() {
			want := 1
			if cat == blocker.CategorySecurity {
				want = 2
			}

			assert.Equal(t, want, rec.attempts[cat], "category %s", cat)
			assert.NoError(t, rec.errs[cat], "category %s", cat)
		}

		requireNotifications(t, notifCh)
	})

	t.Run("persistent_failure", func(t *testing.T) {
		t.Parallel()

		counter := newCallCounter()
		rec, m := newAttemptsRecorder()
		n, notifCh := newNotifier()
		c := newCoordinator(func(_ context.Context, id blocker.ID, cb func(err error)) {
			counter.inc(id)
			if id == idSecurity {
				cb(testError)

				return
			}

			cb(nil)
		}, n, m)

		ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)
		err := c.ReloadAll(ctx)
		require.ErrorIs(t, err, testError)

		reloadErr := &reload.Error{}
		require.ErrorAs(t, err, &reloadErr)

		assert.Equal(t, blocker.CategorySecurity, reloadErr.Category)
		assert.Equal(t, reload.DefaultMaxAttempts, counter.get(idSecurity))

		rec.mu.Lock()
		defer rec.mu.Unlock()

		assert.Equal(t, reload.DefaultMaxAttempts, rec.attempts[blocker.CategorySecurity])
		assert.ErrorIs(t, rec.errs[blocker.CategorySecurity], testError)
		assert.Equal(t, 1, rec.attempts[blocker.CategoryGeneral])

		requireNotifications(t, notifCh)
	})

	t.Run("several_failures", func(t *testing.T) {
		t.Parallel()

		n, notifCh := newNotifier()
		c := newCoordinator(func(_ context.Context, id blocker.ID, cb func(err error)) {
			if id == idSecurity {
				go cb(nil)

				return
			}

			go cb(testError)
		}, n, reload.EmptyMetrics{})

		ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)
		res := c.ReloadAllResult(ctx)
		assert.Len(t, res.Errors, blocker.CategoriesCount-1)

		// The last failed category in the fixed order is custom.
		reloadErr := &reload.Error{}
		require.ErrorAs(t, res.Err(), &reloadErr)

		assert.Equal(t, blocker.CategoryCustom, reloadErr.Category)

		requireNotifications(t, notifCh)
	})

	t.Run("panic", func(t *testing.T) {
		t.Parallel()

		n, notifCh := newNotifier()
		c := newCoordinator(func(_ context.Context, id blocker.ID, cb func(err error)) {
			if id == idSecurity {
				panic(testError)
			}

			cb(nil)
		}, n, reload.EmptyMetrics{})

		ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)
		err := c.ReloadAll(ctx)
		assert.ErrorIs(t, err, testError)

		requireNotifications(t, notifCh)
	})
}

func TestCoordinator_Close(t *testing.T) {
	t.Parallel()

	var c *reload.Coordinator
	counter := newCallCounter()
	n, notifCh := newNotifier()
	c = newCoordinator(func(_ context.Context, id blocker.ID, cb func(err error)) {
		counter.inc(id)

		// The coordinator disappears while the first reload is in progress.
		c.Close()

		cb(testError)
	}, n, reload.EmptyMetrics{})

	ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)
	res := c.ReloadAllResult(ctx)
	require.Len(t, res.Errors, blocker.CategoriesCount)

	for _, cat := range blocker.Categories() {
		id := blocker.NewID(cbtest.AppBundleID, cat)
		assert.LessOrEqual(t, counter.get(id), 1)
	}

	assert.ErrorIs(t, res.Errors[blocker.CategoryGeneral], reload.ErrMissingCoordinator)

	requireNotifications(t, notifCh)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	p := reload.DefaultRetryPolicy()

	testCases := []struct {
		err     error
		name    string
		attempt int
		want    bool
	}{{
		err:     nil,
		name:    "success",
		attempt: 1,
		want:    false,
	}, {
		err:     testError,
		name:    "first_failure",
		attempt: 1,
		want:    true,
	}, {
		err:     testError,
		name:    "second_failure",
		attempt: 2,
		want:    false,
	}, {
		err:     reload.ErrMissingCoordinator,
		name:    "missing_coordinator",
		attempt: 1,
		want:    false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, p.ShouldRetry(tc.attempt, tc.err))
		})
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, reload.DefaultRetryPolicy().Validate())

	var p *reload.RetryPolicy
	assert.ErrorIs(t, p.Validate(), errors.ErrNoValue)

	p = &reload.RetryPolicy{}
	assert.ErrorContains(t, p.Validate(), "max_attempts")
}

func TestCoordinator_Enabled(t *testing.T) {
	t.Parallel()

	idPrivacy := blocker.NewID(cbtest.AppBundleID, blocker.CategoryPrivacy)
	idOther := blocker.NewID(cbtest.AppBundleID, blocker.CategoryOther)

	c := reload.New(&reload.Config{
		Logger: cbtest.Logger,
		Backend: &cbtest.Backend{
			OnReload: func(_ context.Context, _ blocker.ID, _ func(err error)) {
				panic("not implemented")
			},
			OnState: func(_ context.Context, id blocker.ID, cb func(enabled bool, err error)) {
				switch id {
				case idPrivacy:
					go cb(true, nil)
				case idOther:
					// Errors must be reported as disabled.
					go cb(true, testError)
				default:
					go cb(false, nil)
				}
			},
		},
		Notifier:    reload.NewNotifier(reload.NewSerialExecutor(cbtest.Logger)),
		Metrics:     reload.EmptyMetrics{},
		RetryPolicy: reload.DefaultRetryPolicy(),
		AppBundleID: cbtest.AppBundleID,
	})

	ctx := testutil.ContextWithTimeout(t, cbtest.Timeout)

	assert.True(t, c.Enabled(ctx, blocker.CategoryPrivacy))
	assert.False(t, c.Enabled(ctx, blocker.CategoryOther))
	assert.False(t, c.Enabled(ctx, blocker.CategoryGeneral))

	assert.False(t, c.Enabled(reload.ContextWithWorker(ctx), blocker.CategoryPrivacy))

	assert.Equal(t, map[blocker.Category]bool{
		blocker.CategoryGeneral:  false,
		blocker.CategoryPrivacy:  true,
		blocker.CategorySocial:   false,
		blocker.CategoryOther:    false,
		blocker.CategoryCustom:   false,
		blocker.CategorySecurity: false,
	}, c.AllStates(ctx))
}

func TestSerialExecutor(t *testing.T) {
	t.Parallel()

	const n = 100

	e := reload.NewSerialExecutor(cbtest.Logger)
	gotCh := make(chan int, n)
	for i := range n {
		e.Execute(func() {
			if i == n/2 {
				panic(testError)
			}

			gotCh <- i
		})
	}

	for i := range n {
		if i == n/2 {
			continue
		}

		got, _ := testutil.RequireReceive(t, gotCh, cbtest.Timeout)
		require.Equal(t, i, got)
	}
}
