// Package cbtest contains common helpers and mocks for AdGuardCB tests.
package cbtest

import (
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Common constants for tests.
const (
	// AppBundleID is the application bundle identifier for tests.
	AppBundleID = "com.example.app"

	// Timeout is the common timeout for tests.
	Timeout = 1 * time.Second
)

// Logger is the common discarding logger for tests.
var Logger = slogutil.NewDiscardLogger()

// NewResult returns a conversion result for tests that represents all rules.
func NewResult(rules []string) (res *blocker.ConversionResult) {
	return &blocker.ConversionResult{
		Artifact:       []byte("[]"),
		TotalCount:     len(rules),
		ConvertedCount: len(rules),
	}
}
