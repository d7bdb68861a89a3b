// Package debugsvc contains the debug HTTP API of AdGuardCB.
package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/cycle"
	"github.com/AdguardTeam/AdGuardCB/internal/settings"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateGetter returns the enablement states of the content blockers.
type StateGetter interface {
	AllStates(ctx context.Context) (states map[blocker.Category]bool)
}

// CycleRunner runs rebuild cycles and waits for their results.
type CycleRunner interface {
	Cycle(ctx context.Context, req *cycle.Request) (err error)
}

// SettingsStore is the storage of the user settings.
type SettingsStore interface {
	Get() (cur *settings.Settings)
	Update(ctx context.Context, f func(set *settings.Settings)) (err error)
}

// Service is the debug HTTP service of AdGuardCB.  It serves prometheus
// metrics, health check, and the debug API.
type Service struct {
	logger *slog.Logger
	http   *http.Server

	// mu protects addr.
	mu   *sync.Mutex
	addr net.Addr
}

// Config is the AdGuardCB debug HTTP service configuration structure.
type Config struct {
	// Logger is used for logging the requests.  It must not be nil.
	Logger *slog.Logger

	// Gatherer is the source of the metrics.  It must not be nil.
	Gatherer prometheus.Gatherer

	// Refreshers are refreshed by the refresh API.
	Refreshers Refreshers

	// Caches are cleared by the cache API.
	Caches Caches

	// States provides the states of the content blockers.  It must not be nil.
	States StateGetter

	// Cycles runs the cycles after the settings are changed.  It must not be
	// nil.
	Cycles CycleRunner

	// Settings is the storage of the user settings.  It must not be nil.
	Settings SettingsStore

	// Addr is the address to listen on.  It must not be empty.
	Addr string
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger: c.Logger,
		mu:     &sync.Mutex{},
	}

	mux := http.NewServeMux()
	svc.route(mux, c)

	// #nosec G112 -- Do not set the timeouts, since the cycles triggered by the
	// debug API may be busy for a long time.
	svc.http = &http.Server{
		Addr:     c.Addr,
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
	}

	return svc
}

// Path pattern constants.
const (
	PathPatternDebugAPIBlockers = "/debug/api/blockers"
	PathPatternDebugAPICache    = "/debug/api/cache/clear"
	PathPatternDebugAPIRefresh  = "/debug/api/refresh"
	PathPatternDebugAPISettings = "/debug/api/settings"
	PathPatternHealthCheck      = "/health-check"
	PathPatternMetrics          = "/metrics"
)

// Route pattern constants.
const (
	routePatternDebugAPIBlockers    = http.MethodGet + " " + PathPatternDebugAPIBlockers
	routePatternDebugAPICache       = http.MethodPost + " " + PathPatternDebugAPICache
	routePatternDebugAPIRefresh     = http.MethodPost + " " + PathPatternDebugAPIRefresh
	routePatternDebugAPISettingsGet = http.MethodGet + " " + PathPatternDebugAPISettings
	routePatternDebugAPISettingsPut = http.MethodPut + " " + PathPatternDebugAPISettings
	routePatternHealthCheck         = http.MethodGet + " " + PathPatternHealthCheck
	routePatternMetrics             = http.MethodGet + " " + PathPatternMetrics
)

// route adds the handlers to mux.
func (svc *Service) route(mux *http.ServeMux, c *Config) {
	mux.Handle(
		routePatternHealthCheck,
		svc.middleware(http.HandlerFunc(serveHealthCheck), slog.LevelDebug),
	)
	mux.Handle(
		routePatternMetrics,
		svc.middleware(promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{}), slog.LevelDebug),
	)

	mux.Handle(
		routePatternDebugAPIRefresh,
		svc.middleware(&refreshHandler{refrs: c.Refreshers}, slog.LevelInfo),
	)
	mux.Handle(
		routePatternDebugAPICache,
		svc.middleware(&cacheHandler{caches: c.Caches}, slog.LevelInfo),
	)
	mux.Handle(
		routePatternDebugAPIBlockers,
		svc.middleware(&blockersHandler{states: c.States}, slog.LevelInfo),
	)

	setHdlr := &settingsHandler{
		cycles:   c.Cycles,
		settings: c.Settings,
	}
	mux.Handle(
		routePatternDebugAPISettingsGet,
		svc.middleware(http.HandlerFunc(setHdlr.serveGet), slog.LevelDebug),
	)
	mux.Handle(
		routePatternDebugAPISettingsPut,
		svc.middleware(http.HandlerFunc(setHdlr.servePut), slog.LevelInfo),
	)
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// listening and serves the endpoints in a separate goroutine.
func (svc *Service) Start(ctx context.Context) (err error) {
	l, err := (&net.ListenConfig{}).Listen(ctx, "tcp", svc.http.Addr)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", svc.http.Addr, err)
	}

	svc.mu.Lock()
	svc.addr = l.Addr()
	svc.mu.Unlock()

	svc.logger.InfoContext(ctx, "listening", "addr", l.Addr())

	go svc.serve(context.WithoutCancel(ctx), l)

	return nil
}

// serve serves the endpoints on l.  It is intended to be used as a goroutine.
func (svc *Service) serve(ctx context.Context, l net.Listener) {
	defer slogutil.RecoverAndLog(ctx, svc.logger)

	err := svc.http.Serve(l)
	if !errors.Is(err, http.ErrServerClosed) {
		svc.logger.ErrorContext(ctx, "serving", slogutil.KeyError, err)
	}
}

// Shutdown implements the [service.Interface] interface for *Service.  It stops
// serving all endpoints.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.http.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	svc.logger.InfoContext(ctx, "server is shutdown")

	return nil
}

// Addr returns the address the service is listening on.  It returns nil if the
// service hasn't been started.
func (svc *Service) Addr() (addr net.Addr) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.addr
}
