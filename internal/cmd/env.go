package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/AdguardTeam/AdGuardCB/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/AdGuardCB/internal/version"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/caarlos0/env/v7"
	"github.com/getsentry/sentry-go"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	BackendURL *urlutil.URL `env:"BACKEND_URL,notEmpty"`

	ArtifactCachePath string `env:"ARTIFACT_CACHE_PATH" envDefault:"./artifacts/"`
	ArtifactStoreType string `env:"ARTIFACT_STORE_TYPE" envDefault:"file"`
	ConfPath          string `env:"CONFIG_PATH" envDefault:"./config.yaml"`
	FiltersPath       string `env:"FILTERS_PATH" envDefault:"./filters/"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"text"`
	RedisAddr         string `env:"REDIS_ADDR"`
	RedisKeyPrefix    string `env:"REDIS_KEY_PREFIX" envDefault:"cb"`
	SentryDSN         string `env:"SENTRY_DSN" envDefault:"stderr"`
	SettingsPath      string `env:"SETTINGS_PATH" envDefault:"./settings.json"`
	UserRulesPath     string `env:"USER_RULES_PATH" envDefault:"./userrules/"`

	ListenAddr net.IP `env:"LISTEN_ADDR" envDefault:"127.0.0.1"`

	ListenPort uint16 `env:"LISTEN_PORT" envDefault:"8181"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	LogTimestamp strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
}

// Artifact store types.
const (
	artifactStoreFile  = "file"
	artifactStoreRedis = "redis"
)

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	errs := []error{
		validate.NotEmpty("FILTERS_PATH", envs.FiltersPath),
		validate.NotEmpty("USER_RULES_PATH", envs.UserRulesPath),
	}

	if envs.BackendURL == nil {
		errs = append(errs, fmt.Errorf("env BACKEND_URL: %w", errors.ErrNoValue))
	} else if _, err = agdhttp.ParseHTTPURL(envs.BackendURL.URL.String()); err != nil {
		errs = append(errs, fmt.Errorf("env BACKEND_URL: %w", err))
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	errs = envs.validateArtifactStore(errs)

	return errors.Join(errs...)
}

// validateArtifactStore appends validation errors to errs if the environment
// variables for the artifact store contain errors.
func (envs *environment) validateArtifactStore(errs []error) (res []error) {
	res = errs

	switch typ := envs.ArtifactStoreType; typ {
	case artifactStoreFile:
		res = append(res, validate.NotEmpty("env ARTIFACT_CACHE_PATH", envs.ArtifactCachePath))
	case artifactStoreRedis:
		res = append(res, validate.NotEmpty("env REDIS_KEY_PREFIX", envs.RedisKeyPrefix))

		_, err := envs.redisHostPort()
		if err != nil {
			res = append(res, fmt.Errorf("env REDIS_ADDR: %w", err))
		}
	default:
		err := fmt.Errorf("env ARTIFACT_STORE_TYPE: %w: %q", errors.ErrBadEnumValue, typ)
		res = append(res, err)
	}

	return res
}

// redisHostPort parses the address of the Redis server.
func (envs *environment) redisHostPort() (hp *netutil.HostPort, err error) {
	if envs.RedisAddr == "" {
		return nil, errors.ErrEmptyValue
	}

	host, portStr, err := net.SplitHostPort(envs.RedisAddr)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}

	return &netutil.HostPort{
		Host: host,
		Port: uint16(port),
	}, nil
}

// listenAddr returns the address of the debug HTTP service.
func (envs *environment) listenAddr() (addr string) {
	return netutil.JoinHostPort(envs.ListenAddr.String(), envs.ListenPort)
}

// buildErrColl builds and returns an error collector from environment.
// baseLogger must not be nil.
func (envs *environment) buildErrColl(
	baseLogger *slog.Logger,
) (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, err
	}

	l := baseLogger.With(slogutil.KeyPrefix, "sentry_errcoll")

	return errcoll.NewSentryErrorCollector(cli, l), nil
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) == 1 {
		switch b[0] {
		case '0':
			*sb = false

			return nil
		case '1':
			*sb = true

			return nil
		default:
			// Go on and return an error.
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
}
