package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Converter is the Prometheus-based implementation of the [converter.Metrics]
// interface.
type Converter struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewConverter registers the conversion cache metrics in reg and returns a
// properly initialized [Converter].
func NewConverter(namespace string, reg prometheus.Registerer) (m *Converter, err error) {
	const cacheLookups = "cache_lookups_total"

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      cacheLookups,
		Subsystem: subsystemConverter,
		Namespace: namespace,
		Help:      "The total number of conversion cache lookups.  Label hit is 1 for hits.",
	}, []string{"hit"})

	m = &Converter{
		hits:   lookups.WithLabelValues(BoolString(true)),
		misses: lookups.WithLabelValues(BoolString(false)),
	}

	err = reg.Register(lookups)
	if err != nil {
		return nil, fmt.Errorf("registering metrics %q: %w", cacheLookups, err)
	}

	return m, nil
}

// IncrementLookups implements the [converter.Metrics] interface for
// *Converter.
func (m *Converter) IncrementLookups(_ context.Context, hit bool) {
	if hit {
		m.hits.Inc()
	} else {
		m.misses.Inc()
	}
}
