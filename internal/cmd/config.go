package cmd

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/AdGuardCB/internal/converter"
	"github.com/AdguardTeam/AdGuardCB/internal/reload"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v2"
)

// configuration represents the on-disk configuration of AdGuardCB.  The order
// of the fields should generally not be altered.
type configuration struct {
	// Converter is the configuration of the rule conversion.
	Converter *converterConfig `yaml:"converter"`

	// Reload is the retry policy of the content-blocker reloads.
	Reload *reload.RetryPolicy `yaml:"reload"`

	// Cycle is the configuration of the rebuild cycles.
	Cycle *cycleConfig `yaml:"cycle"`

	// Source is the configuration of the filter source.
	Source *sourceConfig `yaml:"source"`

	// Watcher is the configuration of the filter directory watcher.
	Watcher *watcherConfig `yaml:"watcher"`

	// Backend is the configuration of the enforcement backend client.  See the
	// environment type for the URL.
	Backend *backendConfig `yaml:"backend"`

	// AppBundleID is the bundle identifier of the application, which is the
	// prefix of the content-blocker identifiers.
	AppBundleID string `yaml:"app_bundle_id"`
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("app_bundle_id", c.AppBundleID),
	}

	// Keep this in the same order as the fields in the config.
	validators := container.KeyValues[string, validate.Interface]{{
		Key:   "converter",
		Value: c.Converter,
	}, {
		Key:   "reload",
		Value: c.Reload,
	}, {
		Key:   "cycle",
		Value: c.Cycle,
	}, {
		Key:   "source",
		Value: c.Source,
	}, {
		Key:   "watcher",
		Value: c.Watcher,
	}, {
		Key:   "backend",
		Value: c.Backend,
	}}

	for _, kv := range validators {
		errs = validate.Append(errs, kv.Key, kv.Value)
	}

	return errors.Join(errs...)
}

// converterConfig is the configuration of the rule conversion.
type converterConfig struct {
	// Options are the conversion options.
	Options converter.Options `yaml:",inline"`

	// CacheSize is the number of the conversion results kept in memory.  Zero
	// disables the cache.
	CacheSize int `yaml:"cache_size"`
}

// type check
var _ validate.Interface = (*converterConfig)(nil)

// Validate implements the [validate.Interface] interface for *converterConfig.
func (c *converterConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.NotNegative("cache_size", c.CacheSize),
		c.Options.Validate(),
	)
}

// cycleConfig is the configuration of the rebuild cycles.
type cycleConfig struct {
	// RefreshInterval is the interval between the periodic rebuilds.
	RefreshInterval timeutil.Duration `yaml:"refresh_interval"`

	// Timeout is the timeout of a single periodic rebuild.
	Timeout timeutil.Duration `yaml:"timeout"`

	// QueueSize is the maximum number of cycles waiting for the worker.
	QueueSize int `yaml:"queue_size"`
}

// type check
var _ validate.Interface = (*cycleConfig)(nil)

// Validate implements the [validate.Interface] interface for *cycleConfig.
func (c *cycleConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.Positive("refresh_interval", c.RefreshInterval),
		validate.Positive("timeout", c.Timeout),
		validate.Positive("queue_size", c.QueueSize),
	)
}

// sourceConfig is the configuration of the filter source.
type sourceConfig struct {
	// MaxFilterSize is the maximum size of a single filter file.
	MaxFilterSize datasize.ByteSize `yaml:"max_filter_size"`
}

// type check
var _ validate.Interface = (*sourceConfig)(nil)

// Validate implements the [validate.Interface] interface for *sourceConfig.
func (c *sourceConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return validate.Positive("max_filter_size", c.MaxFilterSize)
}

// watcherConfig is the configuration of the filter directory watcher.
type watcherConfig struct {
	// Debounce is the time without changes after which a rebuild starts.  It
	// must be positive if Enabled is true.
	Debounce timeutil.Duration `yaml:"debounce"`

	// Enabled defines if the directories are watched.
	Enabled bool `yaml:"enabled"`
}

// type check
var _ validate.Interface = (*watcherConfig)(nil)

// Validate implements the [validate.Interface] interface for *watcherConfig.
func (c *watcherConfig) Validate() (err error) {
	switch {
	case c == nil:
		return errors.ErrNoValue
	case !c.Enabled:
		return nil
	default:
		return validate.Positive("debounce", c.Debounce)
	}
}

// backendConfig is the configuration of the enforcement backend client.
type backendConfig struct {
	// Timeout is the timeout of a single request to the backend.
	Timeout timeutil.Duration `yaml:"timeout"`
}

// type check
var _ validate.Interface = (*backendConfig)(nil)

// Validate implements the [validate.Interface] interface for *backendConfig.
func (c *backendConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return validate.Positive("timeout", c.Timeout)
}

// parseConfig reads the configuration.
func parseConfig(confPath string) (c *configuration, err error) {
	// #nosec G304 -- Trust the path to the configuration file that is given
	// from the environment.
	yamlFile, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &configuration{}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}
