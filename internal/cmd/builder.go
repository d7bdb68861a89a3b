package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardCB/internal/artifactstore"
	"github.com/AdguardTeam/AdGuardCB/internal/backend"
	"github.com/AdguardTeam/AdGuardCB/internal/converter"
	"github.com/AdguardTeam/AdGuardCB/internal/cycle"
	"github.com/AdguardTeam/AdGuardCB/internal/debugsvc"
	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/AdGuardCB/internal/metrics"
	"github.com/AdguardTeam/AdGuardCB/internal/reload"
	"github.com/AdguardTeam/AdGuardCB/internal/settings"
	"github.com/AdguardTeam/AdGuardCB/internal/source"
	"github.com/AdguardTeam/AdGuardCB/internal/watcher"
	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/redisutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Constants that define debug identifiers for the debug HTTP service.
const (
	debugIDConverter = "converter"
	debugIDCycle     = "cycle"
)

// Redis pool constants.
const (
	redisIdleTimeout     = 30 * time.Second
	redisMaxConnLifetime = 30 * time.Second

	redisMaxActive = 10
	redisMaxIdle   = 3
)

// defaultDirPerm is the default set of permissions for directories.
const defaultDirPerm fs.FileMode = 0o700

// builder contains the logic of configuring and combining together AdGuardCB
// entities.
//
// NOTE:  Keep method definitions in the rough order in which they are intended
// to be called.
type builder struct {
	// The fields below are initialized immediately on construction.  Keep them
	// sorted.

	baseLogger     *slog.Logger
	conf           *configuration
	debugCaches    debugsvc.Caches
	debugRefrs     debugsvc.Refreshers
	env            *environment
	errColl        errcoll.Interface
	logger         *slog.Logger
	mtrcNamespace  string
	promGatherer   prometheus.Gatherer
	promRegisterer prometheus.Registerer
	sigHdlr        *service.SignalHandler

	// The fields below are initialized later by calling the builder's methods.
	// Keep them sorted.

	artifactStore artifactstore.Interface
	backend       backend.Interface
	converter     converter.Interface
	coordinator   *reload.Coordinator
	executor      *reload.SerialExecutor
	notifier      *reload.Notifier
	orchestrator  *cycle.Orchestrator
	settings      *settings.Store
	source        source.Interface
}

// builderConfig contains the initial configuration for the builder.
type builderConfig struct {
	// envs contains the environment variables for the builder.  It must be
	// valid and must not be nil.
	envs *environment

	// conf contains the configuration from the configuration file for the
	// builder.  It must be valid and must not be nil.
	conf *configuration

	// baseLogger is used to create loggers for other entities.  It should not
	// have a prefix and must not be nil.
	baseLogger *slog.Logger

	// errColl is used to collect errors in the entities.  It must not be nil.
	errColl errcoll.Interface
}

// shutdownTimeout is the default shutdown timeout for all services.
const shutdownTimeout = 5 * time.Second

// newBuilder returns a new properly initialized builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		baseLogger:     c.baseLogger,
		conf:           c.conf,
		debugCaches:    debugsvc.Caches{},
		debugRefrs:     debugsvc.Refreshers{},
		env:            c.envs,
		errColl:        c.errColl,
		logger:         c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		mtrcNamespace:  metrics.Namespace,
		promGatherer:   prometheus.DefaultGatherer,
		promRegisterer: prometheus.DefaultRegisterer,
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
	}
}

// initSettings initializes the user settings storage.
func (b *builder) initSettings(ctx context.Context) (err error) {
	b.settings, err = settings.NewStore(&settings.StoreConfig{
		Logger: b.baseLogger.With(slogutil.KeyPrefix, "settings"),
		Path:   b.env.SettingsPath,
	})
	if err != nil {
		return fmt.Errorf("initializing settings: %w", err)
	}

	b.logger.DebugContext(ctx, "initialized settings", "path", b.env.SettingsPath)

	return nil
}

// initSource initializes the filter source.
//
// [builder.initSettings] must be called before this one.
func (b *builder) initSource(ctx context.Context) (err error) {
	b.source = source.NewFile(&source.FileConfig{
		Logger:        b.baseLogger.With(slogutil.KeyPrefix, "source"),
		Settings:      b.settings,
		FiltersDir:    b.env.FiltersPath,
		UserRulesDir:  b.env.UserRulesPath,
		MaxFilterSize: b.conf.Source.MaxFilterSize,
	})

	b.logger.DebugContext(
		ctx,
		"initialized source",
		"filters", b.env.FiltersPath,
		"user_rules", b.env.UserRulesPath,
	)

	return nil
}

// initConverter initializes the rule converter and, if enabled, its cache.  It
// also adds the cache with ID [debugIDConverter] to the debug caches.
func (b *builder) initConverter(ctx context.Context) (err error) {
	webKit := converter.NewWebKit(&converter.WebKitConfig{
		Logger: b.baseLogger.With(slogutil.KeyPrefix, "converter"),
	})

	c := b.conf.Converter
	if c.CacheSize == 0 {
		b.converter = webKit

		b.logger.DebugContext(ctx, "initialized converter without cache")

		return nil
	}

	mtrc, err := metrics.NewConverter(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering converter metrics: %w", err)
	}

	cached := converter.NewCached(&converter.CachedConfig{
		Converter: webKit,
		Metrics:   mtrc,
		Count:     c.CacheSize,
	})

	b.converter = cached
	b.debugCaches[debugIDConverter] = cached

	b.logger.DebugContext(ctx, "initialized converter", "cache_size", c.CacheSize)

	return nil
}

// initArtifactStore initializes the artifact store of the type from the
// environment.
func (b *builder) initArtifactStore(ctx context.Context) (err error) {
	mtrc, err := metrics.NewArtifactStore(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering artifact store metrics: %w", err)
	}

	l := b.baseLogger.With(slogutil.KeyPrefix, "artifactstore")

	switch typ := b.env.ArtifactStoreType; typ {
	case artifactStoreFile:
		dir := b.env.ArtifactCachePath
		err = os.MkdirAll(dir, defaultDirPerm)
		if err != nil {
			return fmt.Errorf("creating artifact dir: %w", err)
		}

		b.artifactStore = artifactstore.NewFile(&artifactstore.FileConfig{
			Logger:  l,
			Metrics: mtrc,
			Dir:     dir,
		})
	case artifactStoreRedis:
		var pool *redisutil.DefaultPool
		pool, err = b.newRedisPool(l)
		if err != nil {
			return fmt.Errorf("initializing redis pool: %w", err)
		}

		b.artifactStore = artifactstore.NewRedis(&artifactstore.RedisConfig{
			Logger:    l,
			Metrics:   mtrc,
			Pool:      pool,
			KeyPrefix: b.env.RedisKeyPrefix,
		})
	default:
		panic(fmt.Errorf("env ARTIFACT_STORE_TYPE: %w: %q", errors.ErrBadEnumValue, typ))
	}

	b.logger.DebugContext(ctx, "initialized artifact store", "type", b.env.ArtifactStoreType)

	return nil
}

// newRedisPool returns a new Redis connection pool from the environment.
func (b *builder) newRedisPool(l *slog.Logger) (p *redisutil.DefaultPool, err error) {
	addr, err := b.env.redisHostPort()
	if err != nil {
		// Don't expect errors here since the environment is validated.
		panic(err)
	}

	dialer, err := redisutil.NewDefaultDialer(&redisutil.DefaultDialerConfig{
		Addr: addr,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dialer: %w", err)
	}

	return redisutil.NewDefaultPool(&redisutil.DefaultPoolConfig{
		Logger:          l,
		Dialer:          dialer,
		MaxConnLifetime: redisMaxConnLifetime,
		IdleTimeout:     redisIdleTimeout,
		MaxActive:       redisMaxActive,
		MaxIdle:         redisMaxIdle,
		Wait:            true,
	})
}

// initBackend initializes the client of the enforcement backend.
func (b *builder) initBackend(ctx context.Context) (err error) {
	b.backend = backend.NewHTTP(&backend.HTTPConfig{
		Logger: b.baseLogger.With(slogutil.KeyPrefix, "backend"),
		Client: agdhttp.NewClient(&agdhttp.ClientConfig{
			Timeout: time.Duration(b.conf.Backend.Timeout),
		}),
		BaseURL: &b.env.BackendURL.URL,
	})

	b.logger.DebugContext(ctx, "initialized backend", "url", b.env.BackendURL)

	return nil
}

// initReload initializes the reload coordinator together with its notifier and
// the serial executor of the callbacks.
//
// [builder.initBackend] must be called before this one.
func (b *builder) initReload(ctx context.Context) (err error) {
	mtrc, err := metrics.NewReload(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering reload metrics: %w", err)
	}

	l := b.baseLogger.With(slogutil.KeyPrefix, "reload")

	b.executor = reload.NewSerialExecutor(l)
	b.notifier = reload.NewNotifier(b.executor)
	b.notifier.Subscribe(mtrc)

	b.coordinator = reload.New(&reload.Config{
		Logger:      l,
		Backend:     b.backend,
		Notifier:    b.notifier,
		Metrics:     mtrc,
		RetryPolicy: b.conf.Reload,
		AppBundleID: b.conf.AppBundleID,
	})

	b.logger.DebugContext(
		ctx,
		"initialized reload coordinator",
		"max_attempts", b.conf.Reload.MaxAttempts,
	)

	return nil
}

// initOrchestrator initializes and starts the cycle orchestrator.
//
// The following methods must be called before this one:
//   - [builder.initArtifactStore]
//   - [builder.initConverter]
//   - [builder.initReload]
//   - [builder.initSource]
func (b *builder) initOrchestrator(ctx context.Context) (err error) {
	mtrc, err := metrics.NewCycle(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering cycle metrics: %w", err)
	}

	b.orchestrator = cycle.New(&cycle.Config{
		Logger:           b.baseLogger.With(slogutil.KeyPrefix, "cycle"),
		Source:           b.source,
		Converter:        b.converter,
		ConverterOptions: &b.conf.Converter.Options,
		Store:            b.artifactStore,
		Reloader:         b.coordinator,
		ErrColl:          b.errColl,
		Metrics:          mtrc,
		Callbacks:        b.executor,
		MaxQueued:        b.conf.Cycle.QueueSize,
	})

	err = b.orchestrator.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting orchestrator: %w", err)
	}

	b.sigHdlr.AddService(b.orchestrator)

	b.logger.DebugContext(ctx, "initialized orchestrator")

	return nil
}

// runInitialCycle runs the first cycle and waits for it.  The errors are
// collected but not returned, since the next cycles may succeed.
//
// [builder.initOrchestrator] must be called before this one.
func (b *builder) runInitialCycle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(b.conf.Cycle.Timeout))
	defer cancel()

	err := b.orchestrator.Cycle(ctx, &cycle.Request{})
	if err != nil {
		errcoll.Collect(ctx, b.errColl, b.logger, "initial cycle", err)

		return
	}

	b.logger.InfoContext(ctx, "initial cycle finished")
}

// newSlogErrorHandler returns a new slog error handler with the given prefix.
func newSlogErrorHandler(baseLogger *slog.Logger, prefix string) (h *service.SlogErrorHandler) {
	return service.NewSlogErrorHandler(
		baseLogger.With(slogutil.KeyPrefix, prefix),
		slog.LevelError,
		"refreshing",
	)
}

// initRefresher starts the periodic rebuilds.  It also adds the refresher with
// ID [debugIDCycle] to the debug refreshers.
//
// [builder.initOrchestrator] must be called before this one.
func (b *builder) initRefresher(ctx context.Context) (err error) {
	c := b.conf.Cycle
	refr := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(time.Duration(c.Timeout)),
		ErrorHandler:       newSlogErrorHandler(b.baseLogger, "cycle_refresh"),
		Refresher:          b.orchestrator,
		Schedule:           timeutil.NewConstSchedule(time.Duration(c.RefreshInterval)),
		RefreshOnShutdown:  false,
	})

	err = refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting refresher: %w", err)
	}

	b.sigHdlr.AddService(refr)

	b.debugRefrs[debugIDCycle] = b.orchestrator

	b.logger.DebugContext(ctx, "initialized refresher", "ivl", c.RefreshInterval)

	return nil
}

// initWatcher initializes and starts the watcher of the filter and user-rule
// directories, if enabled.
//
// [builder.initOrchestrator] must be called before this one.
func (b *builder) initWatcher(ctx context.Context) (err error) {
	c := b.conf.Watcher
	if !c.Enabled {
		b.logger.DebugContext(ctx, "watcher disabled")

		return nil
	}

	w, err := watcher.New(&watcher.Config{
		Logger:   b.baseLogger.With(slogutil.KeyPrefix, "watcher"),
		Runner:   b.orchestrator,
		ErrColl:  b.errColl,
		Dirs:     []string{b.env.FiltersPath, b.env.UserRulesPath},
		Debounce: time.Duration(c.Debounce),
	})
	if err != nil {
		return fmt.Errorf("initializing watcher: %w", err)
	}

	err = w.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	b.sigHdlr.AddService(w)

	b.logger.DebugContext(ctx, "initialized watcher", "debounce", c.Debounce)

	return nil
}

// mustInitDebugSvc initializes, starts, and registers the debug service.  The
// debug HTTP service is considered critical, so it panics instead of returning
// an error.
//
// The following methods must be called before this one:
//   - [builder.initConverter]
//   - [builder.initRefresher]
//   - [builder.initReload]
//   - [builder.initSettings]
func (b *builder) mustInitDebugSvc(ctx context.Context) {
	debugSvc := debugsvc.New(&debugsvc.Config{
		Logger:     b.baseLogger.With(slogutil.KeyPrefix, "debugsvc"),
		Gatherer:   b.promGatherer,
		Refreshers: b.debugRefrs,
		Caches:     b.debugCaches,
		States:     b.coordinator,
		Cycles:     b.orchestrator,
		Settings:   b.settings,
		Addr:       b.env.listenAddr(),
	})

	errors.Check(debugSvc.Start(context.WithoutCancel(ctx)))

	b.sigHdlr.AddService(debugSvc)

	b.logger.DebugContext(
		ctx,
		"initialized debug",
		"addr", debugSvc.Addr(),
		"refr_ids", slices.Sorted(maps.Keys(b.debugRefrs)),
		"cache_ids", slices.Sorted(maps.Keys(b.debugCaches)),
	)
}

// handleSignals blocks and processes signals from the OS.  status is
// [osutil.ExitCodeSuccess] on success and [osutil.ExitCodeFailure] on error.
// The reload coordinator is closed after all services are shut down.
//
// handleSignals must not be called concurrently with any other methods.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	code = b.sigHdlr.Handle(ctx)

	b.coordinator.Close()

	return code
}
