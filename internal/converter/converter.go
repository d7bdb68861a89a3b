// Package converter contains the interface and implementations of content
// blocker rule converters.
package converter

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// Interface is the content blocker rule converter.
type Interface interface {
	// Convert converts rules into an artifact.  The conversion must be
	// deterministic.  If there are more rules than opts.Limit, only the first
	// opts.Limit rules are converted and res.Overlimit is true.  opts must be
	// valid.
	Convert(ctx context.Context, rules []string, opts *Options) (res *blocker.ConversionResult, err error)
}

// DefaultLimit is the default maximum number of rules per content blocker.
const DefaultLimit = 50_000

// Options are the conversion options.
type Options struct {
	// Limit is the maximum number of rules to convert.  It must be positive.
	Limit int `yaml:"limit"`

	// Optimize, if true, makes the converter remove duplicate entries from the
	// artifact.
	Optimize bool `yaml:"optimize"`

	// AdvancedBlocking, if true, makes the converter keep the rules that
	// require advanced blocking in a separate artifact.
	AdvancedBlocking bool `yaml:"advanced_blocking"`
}

// DefaultOptions returns the default conversion options.
func DefaultOptions() (opts *Options) {
	return &Options{
		Limit:            DefaultLimit,
		Optimize:         false,
		AdvancedBlocking: false,
	}
}

// type check
var _ validate.Interface = (*Options)(nil)

// Validate implements the [validate.Interface] interface for *Options.
func (opts *Options) Validate() (err error) {
	if opts == nil {
		return errors.ErrNoValue
	}

	return validate.Positive("limit", opts.Limit)
}

// ErrEmptyRule is returned when the converter is given a rule that contains no
// pattern.
const ErrEmptyRule errors.Error = "empty rule"
