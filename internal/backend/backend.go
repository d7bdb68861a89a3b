// Package backend contains the interface of the content-blocker enforcement
// backend and its implementations.
package backend

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
)

// Interface is the enforcement backend that applies the compiled artifacts of
// the content blockers.  Both methods are asynchronous: they return
// immediately, and the callback is called exactly once, possibly on another
// goroutine.
type Interface interface {
	// Reload makes the backend load the last persisted artifact of the content
	// blocker with the given id.  cb is called with a nil error on success.
	Reload(ctx context.Context, id blocker.ID, cb func(err error))

	// State requests whether the content blocker with the given id is enabled
	// by the user.
	State(ctx context.Context, id blocker.ID, cb func(enabled bool, err error))
}
