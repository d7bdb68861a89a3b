// Package source contains the loaders of the filter contents and the user
// rules.
package source

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/partition"
)

// Interface loads the inputs of a rebuild cycle.
type Interface interface {
	// Load returns the contents of the enabled filters and the user rules.
	// userRules may be nil.
	Load(ctx context.Context) (filters []*partition.Filter, userRules *partition.UserRules, err error)
}
