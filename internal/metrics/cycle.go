package metrics

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// Cycle is the Prometheus-based implementation of the [cycle.Metrics]
// interface.
type Cycle struct {
	// duration is a histogram with the duration of the cycles.
	duration prometheus.Histogram

	// errors is a counter of the failed cycles.
	errors prometheus.Counter

	// status is a gauge with the status of the last cycle: 1 means success, 0
	// means failure.
	status prometheus.Gauge

	// lastSuccess is a gauge with the time of the last successful cycle.
	lastSuccess prometheus.Gauge

	// rules is a gauge vector with the numbers of rules of the categories by
	// kind.
	rules *prometheus.GaugeVec

	// overlimit is a gauge vector that is 1 for the categories with dropped
	// rules.
	overlimit *prometheus.GaugeVec
}

// NewCycle registers the rebuild cycle metrics in reg and returns a properly
// initialized [Cycle].
func NewCycle(namespace string, reg prometheus.Registerer) (m *Cycle, err error) {
	const (
		duration    = "duration_seconds"
		errorsTotal = "errors_total"
		status      = "status"
		lastSuccess = "last_success_time"
		rules       = "rules"
		overlimit   = "overlimit"
	)

	m = &Cycle{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      duration,
			Subsystem: subsystemCycle,
			Namespace: namespace,
			Help:      "Time elapsed on rebuild cycles.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      errorsTotal,
			Subsystem: subsystemCycle,
			Namespace: namespace,
			Help:      "The total number of failed rebuild cycles.",
		}),
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      status,
			Subsystem: subsystemCycle,
			Namespace: namespace,
			Help:      "Status of the last rebuild cycle.  1 is okay, 0 means that something went wrong.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      lastSuccess,
			Subsystem: subsystemCycle,
			Namespace: namespace,
			Help:      "Time when the last successful rebuild cycle finished.",
		}),
		rules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      rules,
			Subsystem: subsystemCycle,
			Namespace: namespace,
			Help:      "The number of rules in the last conversion of the category by kind.",
		}, []string{labelCategory, "kind"}),
		overlimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      overlimit,
			Subsystem: subsystemCycle,
			Namespace: namespace,
			Help:      "Whether the last conversion of the category dropped rules over the limit.",
		}, []string{labelCategory}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   duration,
		Value: m.duration,
	}, {
		Key:   errorsTotal,
		Value: m.errors,
	}, {
		Key:   status,
		Value: m.status,
	}, {
		Key:   lastSuccess,
		Value: m.lastSuccess,
	}, {
		Key:   rules,
		Value: m.rules,
	}, {
		Key:   overlimit,
		Value: m.overlimit,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveCycle implements the [cycle.Metrics] interface for *Cycle.
func (m *Cycle) ObserveCycle(_ context.Context, dur float64, err error) {
	m.duration.Observe(dur)
	SetStatusGauge(m.status, err)

	if err != nil {
		m.errors.Inc()

		return
	}

	m.lastSuccess.SetToCurrentTime()
}

// SetConversion implements the [cycle.Metrics] interface for *Cycle.
func (m *Cycle) SetConversion(_ context.Context, c blocker.Category, res *blocker.ConversionResult) {
	cat := c.String()

	m.rules.WithLabelValues(cat, "total").Set(float64(res.TotalCount))
	m.rules.WithLabelValues(cat, "converted").Set(float64(res.ConvertedCount))
	m.rules.WithLabelValues(cat, "errors").Set(float64(res.ErrorsCount))

	overlimit := 0.0
	if res.Overlimit {
		overlimit = 1
	}

	m.overlimit.WithLabelValues(cat).Set(overlimit)
}

