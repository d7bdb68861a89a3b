package reload

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Observer receives the reload lifecycle notifications.
type Observer interface {
	// ReloadStarted is called before the content blockers are reloaded.
	ReloadStarted(ctx context.Context)

	// ReloadFinished is called after all content blockers have been reloaded,
	// successfully or not.
	ReloadFinished(ctx context.Context)
}

// Executor runs functions.
type Executor interface {
	// Execute schedules f to be run.  It must not block.
	Execute(f func())
}

// SerialExecutor is an [Executor] that runs the functions one after another,
// in the order of scheduling, on a goroutine that is separate from the
// caller's one.
type SerialExecutor struct {
	logger *slog.Logger

	// mu protects queue and running.
	mu      *sync.Mutex
	queue   []func()
	running bool
}

// NewSerialExecutor returns a new properly initialized *SerialExecutor.  l is
// used to log the panics of the functions.
func NewSerialExecutor(l *slog.Logger) (e *SerialExecutor) {
	return &SerialExecutor{
		logger: l,
		mu:     &sync.Mutex{},
	}
}

// type check
var _ Executor = (*SerialExecutor)(nil)

// Execute implements the [Executor] interface for *SerialExecutor.
func (e *SerialExecutor) Execute(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue = append(e.queue, f)
	if !e.running {
		e.running = true
		go e.drain()
	}
}

// drain runs the queued functions until the queue is empty.  It is intended
// to be used as a goroutine.
func (e *SerialExecutor) drain() {
	for f := e.next(); f != nil; f = e.next() {
		e.run(f)
	}
}

// next returns the next function from the queue or nil, if the queue is empty,
// in which case the executor is marked as not running.
func (e *SerialExecutor) next() (f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		e.running = false

		return nil
	}

	f = e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]

	return f
}

// run runs f and recovers from its panics.
func (e *SerialExecutor) run(f func()) {
	defer slogutil.RecoverAndLog(context.Background(), e.logger)

	f()
}

// Notifier is the registry of reload observers.
type Notifier struct {
	exec Executor

	// mu protects observers.
	mu        *sync.Mutex
	observers []Observer
}

// NewNotifier returns a new properly initialized *Notifier that delivers the
// notifications through exec.  exec must not be nil.
func NewNotifier(exec Executor) (n *Notifier) {
	return &Notifier{
		exec: exec,
		mu:   &sync.Mutex{},
	}
}

// Subscribe adds o to the observers.  o must not be nil.
func (n *Notifier) Subscribe(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.observers = append(n.observers, o)
}

// notifyStarted schedules [Observer.ReloadStarted] for all observers.
func (n *Notifier) notifyStarted(ctx context.Context) {
	for _, o := range n.snapshot() {
		n.exec.Execute(func() { o.ReloadStarted(ctx) })
	}
}

// notifyFinished schedules [Observer.ReloadFinished] for all observers.
func (n *Notifier) notifyFinished(ctx context.Context) {
	for _, o := range n.snapshot() {
		n.exec.Execute(func() { o.ReloadFinished(ctx) })
	}
}

// snapshot returns a copy of the current observers.
func (n *Notifier) snapshot() (observers []Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]Observer(nil), n.observers...)
}
