// Package artifactstore contains the storages of the compiled content-blocker
// artifacts.
package artifactstore

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
)

// Interface is the storage of the conversion results of the categories.
//
// Implementations need not be safe for concurrent use, since all saves are
// performed by the cycle worker.
type Interface interface {
	// Save persists the results.  Categories missing from results keep their
	// previous artifacts.  If err is not nil, the previously saved artifacts
	// must be left intact.
	Save(ctx context.Context, results blocker.Results) (err error)

	// Load returns the last saved result for c.  If there is none, err is
	// [ErrNotFound].
	Load(ctx context.Context, c blocker.Category) (res *blocker.ConversionResult, err error)
}

// ErrNotFound is returned by [Interface.Load] when there is no artifact for
// the category.
const ErrNotFound errors.Error = "artifact not found"

// Metrics is an interface that is used for the collection of the artifact
// storage statistics.
type Metrics interface {
	// ObserveSave records the duration of a save operation and whether it was
	// successful.
	ObserveSave(ctx context.Context, dur float64, err error)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveSave implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveSave(_ context.Context, _ float64, _ error) {}

// sortedCategories returns the categories present in results in the fixed
// order.
func sortedCategories(results blocker.Results) (cats []blocker.Category) {
	for _, c := range blocker.Categories() {
		if results[c] != nil {
			cats = append(cats, c)
		}
	}

	return cats
}
