package metrics

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// Reload is the Prometheus-based implementation of the [reload.Metrics] and
// [reload.Observer] interfaces.
type Reload struct {
	// inProgress is a gauge that is 1 while the content blockers are being
	// reloaded.
	inProgress prometheus.Gauge

	// attempts is a counter vector of the reload calls to the backend.
	attempts *prometheus.CounterVec

	// retries is a counter vector of the reloads that needed more than one
	// attempt.
	retries *prometheus.CounterVec

	// errors is a counter vector of the reloads that failed after all
	// attempts.
	errors *prometheus.CounterVec
}

// NewReload registers the content-blocker reload metrics in reg and returns a
// properly initialized [Reload].
func NewReload(namespace string, reg prometheus.Registerer) (m *Reload, err error) {
	const (
		inProgress    = "in_progress"
		attemptsTotal = "attempts_total"
		retriesTotal  = "retries_total"
		errorsTotal   = "errors_total"
	)

	labels := []string{labelCategory}
	m = &Reload{
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      inProgress,
			Subsystem: subsystemReload,
			Namespace: namespace,
			Help:      "Whether the content blockers are being reloaded.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      attemptsTotal,
			Subsystem: subsystemReload,
			Namespace: namespace,
			Help:      "The total number of reload calls to the backend by category.",
		}, labels),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      retriesTotal,
			Subsystem: subsystemReload,
			Namespace: namespace,
			Help:      "The total number of reloads that were retried by category.",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      errorsTotal,
			Subsystem: subsystemReload,
			Namespace: namespace,
			Help:      "The total number of failed reloads by category.",
		}, labels),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   inProgress,
		Value: m.inProgress,
	}, {
		Key:   attemptsTotal,
		Value: m.attempts,
	}, {
		Key:   retriesTotal,
		Value: m.retries,
	}, {
		Key:   errorsTotal,
		Value: m.errors,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveReload implements the [reload.Metrics] interface for *Reload.
func (m *Reload) ObserveReload(_ context.Context, c blocker.Category, attempts int, err error) {
	cat := c.String()

	m.attempts.WithLabelValues(cat).Add(float64(attempts))
	if attempts > 1 {
		m.retries.WithLabelValues(cat).Inc()
	}

	if err != nil {
		m.errors.WithLabelValues(cat).Inc()
	}
}

// ReloadStarted implements the [reload.Observer] interface for *Reload.
func (m *Reload) ReloadStarted(_ context.Context) {
	m.inProgress.Set(1)
}

// ReloadFinished implements the [reload.Observer] interface for *Reload.
func (m *Reload) ReloadFinished(_ context.Context) {
	m.inProgress.Set(0)
}
