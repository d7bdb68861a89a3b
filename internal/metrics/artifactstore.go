package metrics

import (
	"context"

	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// ArtifactStore is the Prometheus-based implementation of the
// [artifactstore.Metrics] interface.
type ArtifactStore struct {
	// saveDuration is a histogram with the duration of the save operations.
	saveDuration prometheus.Histogram

	// saveErrors is a counter of the failed save operations.
	saveErrors prometheus.Counter
}

// NewArtifactStore registers the artifact store metrics in reg and returns a
// properly initialized [ArtifactStore].
func NewArtifactStore(namespace string, reg prometheus.Registerer) (m *ArtifactStore, err error) {
	const (
		saveDuration = "save_duration_seconds"
		saveErrors   = "save_errors_total"
	)

	m = &ArtifactStore{
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      saveDuration,
			Subsystem: subsystemArtifactStore,
			Namespace: namespace,
			Help:      "Time elapsed on saving the conversion results.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1},
		}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      saveErrors,
			Subsystem: subsystemArtifactStore,
			Namespace: namespace,
			Help:      "The total number of failed saves of the conversion results.",
		}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   saveDuration,
		Value: m.saveDuration,
	}, {
		Key:   saveErrors,
		Value: m.saveErrors,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveSave implements the [artifactstore.Metrics] interface for
// *ArtifactStore.
func (m *ArtifactStore) ObserveSave(_ context.Context, dur float64, err error) {
	m.saveDuration.Observe(dur)

	if err != nil {
		m.saveErrors.Inc()
	}
}
