// Package metrics contains the Prometheus-based implementations of the metrics
// interfaces of AdGuardCB packages.
package metrics

import (
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the default namespace of the AdGuardCB metrics.
const Namespace = "cb"

// Constants with the subsystem names that we use in our prometheus metrics.
const (
	subsystemApplication   = "app"
	subsystemArtifactStore = "artifactstore"
	subsystemConverter     = "converter"
	subsystemCycle         = "cycle"
	subsystemReload        = "reload"
)

// labelCategory is the name of the label with the content-blocker category.
const labelCategory = "category"

// SetUpGauge registers the gauge that signals that the service has been
// started.
func SetUpGauge(
	namespace string,
	reg prometheus.Registerer,
	version string,
	committime string,
	branch string,
	revision string,
	goversion string,
) (err error) {
	const up = "up"

	upGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      up,
		Namespace: namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by ` +
			`version and goversion from which the program was built.`,
		ConstLabels: prometheus.Labels{
			"version":    version,
			"committime": committime,
			"branch":     branch,
			"revision":   revision,
			"goversion":  goversion,
		},
	})

	err = reg.Register(upGauge)
	if err != nil {
		return fmt.Errorf("registering metrics %q: %w", up, err)
	}

	upGauge.Set(1)

	return nil
}

// SetStatusGauge is a helper function that automatically checks if there's an
// error and sets the gauge to either 1 (success) or 0 (error).
func SetStatusGauge(gauge prometheus.Gauge, err error) {
	if err == nil {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}

// BoolString returns "1" if cond is true and "0" otherwise.
func BoolString(cond bool) (s string) {
	if cond {
		return "1"
	}

	return "0"
}

// registerAll registers all collectors in reg and returns the joined errors.
func registerAll(
	reg prometheus.Registerer,
	collectors container.KeyValues[string, prometheus.Collector],
) (err error) {
	var errs []error
	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	return errors.Join(errs...)
}
