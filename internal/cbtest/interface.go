package cbtest

import (
	"context"

	"github.com/AdguardTeam/AdGuardCB/internal/artifactstore"
	"github.com/AdguardTeam/AdGuardCB/internal/backend"
	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/converter"
	"github.com/AdguardTeam/AdGuardCB/internal/cycle"
	"github.com/AdguardTeam/AdGuardCB/internal/debugsvc"
	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/AdGuardCB/internal/partition"
	"github.com/AdguardTeam/AdGuardCB/internal/reload"
	"github.com/AdguardTeam/AdGuardCB/internal/source"
	"github.com/AdguardTeam/AdGuardCB/internal/watcher"
	"github.com/AdguardTeam/golibs/service"
)

// Interface Mocks
//
// Keep entities within a module/package in alphabetic order.

// Package artifactstore

// type check
var _ artifactstore.Interface = (*ArtifactStore)(nil)

// ArtifactStore is an [artifactstore.Interface] for tests.
type ArtifactStore struct {
	OnLoad func(ctx context.Context, c blocker.Category) (res *blocker.ConversionResult, err error)
	OnSave func(ctx context.Context, results blocker.Results) (err error)
}

// Load implements the [artifactstore.Interface] interface for *ArtifactStore.
func (s *ArtifactStore) Load(
	ctx context.Context,
	c blocker.Category,
) (res *blocker.ConversionResult, err error) {
	return s.OnLoad(ctx, c)
}

// Save implements the [artifactstore.Interface] interface for *ArtifactStore.
func (s *ArtifactStore) Save(ctx context.Context, results blocker.Results) (err error) {
	return s.OnSave(ctx, results)
}

// type check
var _ artifactstore.Metrics = (*ArtifactStoreMetrics)(nil)

// ArtifactStoreMetrics is an [artifactstore.Metrics] for tests.
type ArtifactStoreMetrics struct {
	OnObserveSave func(ctx context.Context, dur float64, err error)
}

// ObserveSave implements the [artifactstore.Metrics] interface for
// *ArtifactStoreMetrics.
func (m *ArtifactStoreMetrics) ObserveSave(ctx context.Context, dur float64, err error) {
	m.OnObserveSave(ctx, dur, err)
}

// Package backend

// type check
var _ backend.Interface = (*Backend)(nil)

// Backend is a [backend.Interface] for tests.
type Backend struct {
	OnReload func(ctx context.Context, id blocker.ID, cb func(err error))
	OnState  func(ctx context.Context, id blocker.ID, cb func(enabled bool, err error))
}

// Reload implements the [backend.Interface] interface for *Backend.
func (b *Backend) Reload(ctx context.Context, id blocker.ID, cb func(err error)) {
	b.OnReload(ctx, id, cb)
}

// State implements the [backend.Interface] interface for *Backend.
func (b *Backend) State(ctx context.Context, id blocker.ID, cb func(enabled bool, err error)) {
	b.OnState(ctx, id, cb)
}

// Package converter

// type check
var _ converter.Interface = (*Converter)(nil)

// Converter is a [converter.Interface] for tests.
type Converter struct {
	OnConvert func(
		ctx context.Context,
		rules []string,
		opts *converter.Options,
	) (res *blocker.ConversionResult, err error)
}

// Convert implements the [converter.Interface] interface for *Converter.
func (c *Converter) Convert(
	ctx context.Context,
	rules []string,
	opts *converter.Options,
) (res *blocker.ConversionResult, err error) {
	return c.OnConvert(ctx, rules, opts)
}

// type check
var _ converter.Metrics = (*ConverterMetrics)(nil)

// ConverterMetrics is a [converter.Metrics] for tests.
type ConverterMetrics struct {
	OnIncrementLookups func(ctx context.Context, hit bool)
}

// IncrementLookups implements the [converter.Metrics] interface for
// *ConverterMetrics.
func (m *ConverterMetrics) IncrementLookups(ctx context.Context, hit bool) {
	m.OnIncrementLookups(ctx, hit)
}

// Package cycle

// type check
var _ cycle.Metrics = (*CycleMetrics)(nil)

// CycleMetrics is a [cycle.Metrics] for tests.
type CycleMetrics struct {
	OnObserveCycle  func(ctx context.Context, dur float64, err error)
	OnSetConversion func(ctx context.Context, c blocker.Category, res *blocker.ConversionResult)
}

// ObserveCycle implements the [cycle.Metrics] interface for *CycleMetrics.
func (m *CycleMetrics) ObserveCycle(ctx context.Context, dur float64, err error) {
	m.OnObserveCycle(ctx, dur, err)
}

// SetConversion implements the [cycle.Metrics] interface for *CycleMetrics.
func (m *CycleMetrics) SetConversion(
	ctx context.Context,
	c blocker.Category,
	res *blocker.ConversionResult,
) {
	m.OnSetConversion(ctx, c, res)
}

// type check
var _ cycle.Reloader = (*Reloader)(nil)

// Reloader is a [cycle.Reloader] for tests.
type Reloader struct {
	OnReloadAll func(ctx context.Context) (err error)
}

// ReloadAll implements the [cycle.Reloader] interface for *Reloader.
func (r *Reloader) ReloadAll(ctx context.Context) (err error) {
	return r.OnReloadAll(ctx)
}

// Package debugsvc

// type check
var _ debugsvc.CycleRunner = (*CycleRunner)(nil)

// CycleRunner is a [debugsvc.CycleRunner] for tests.
type CycleRunner struct {
	OnCycle func(ctx context.Context, req *cycle.Request) (err error)
}

// Cycle implements the [debugsvc.CycleRunner] interface for *CycleRunner.
func (r *CycleRunner) Cycle(ctx context.Context, req *cycle.Request) (err error) {
	return r.OnCycle(ctx, req)
}

// type check
var _ debugsvc.StateGetter = (*StateGetter)(nil)

// StateGetter is a [debugsvc.StateGetter] for tests.
type StateGetter struct {
	OnAllStates func(ctx context.Context) (states map[blocker.Category]bool)
}

// AllStates implements the [debugsvc.StateGetter] interface for *StateGetter.
func (g *StateGetter) AllStates(ctx context.Context) (states map[blocker.Category]bool) {
	return g.OnAllStates(ctx)
}

// Package errcoll

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// Package reload

// type check
var _ reload.Metrics = (*ReloadMetrics)(nil)

// ReloadMetrics is a [reload.Metrics] for tests.
type ReloadMetrics struct {
	OnObserveReload func(ctx context.Context, c blocker.Category, attempts int, err error)
}

// ObserveReload implements the [reload.Metrics] interface for *ReloadMetrics.
func (m *ReloadMetrics) ObserveReload(
	ctx context.Context,
	c blocker.Category,
	attempts int,
	err error,
) {
	m.OnObserveReload(ctx, c, attempts, err)
}

// type check
var _ reload.Observer = (*Observer)(nil)

// Observer is a [reload.Observer] for tests.
type Observer struct {
	OnReloadFinished func(ctx context.Context)
	OnReloadStarted  func(ctx context.Context)
}

// ReloadFinished implements the [reload.Observer] interface for *Observer.
func (o *Observer) ReloadFinished(ctx context.Context) {
	o.OnReloadFinished(ctx)
}

// ReloadStarted implements the [reload.Observer] interface for *Observer.
func (o *Observer) ReloadStarted(ctx context.Context) {
	o.OnReloadStarted(ctx)
}

// Package service

// type check
var _ service.Refresher = (*Refresher)(nil)

// Refresher is a [service.Refresher] for tests.
type Refresher struct {
	OnRefresh func(ctx context.Context) (err error)
}

// Refresh implements the [service.Refresher] interface for *Refresher.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	return r.OnRefresh(ctx)
}

// Package source

// type check
var _ source.Interface = (*Source)(nil)

// Source is a [source.Interface] for tests.
type Source struct {
	OnLoad func(ctx context.Context) (
		filters []*partition.Filter,
		userRules *partition.UserRules,
		err error,
	)
}

// Load implements the [source.Interface] interface for *Source.
func (s *Source) Load(
	ctx context.Context,
) (filters []*partition.Filter, userRules *partition.UserRules, err error) {
	return s.OnLoad(ctx)
}

// Package watcher

// type check
var _ watcher.Runner = (*Runner)(nil)

// Runner is a [watcher.Runner] for tests.
type Runner struct {
	OnRunCycle func(ctx context.Context, req *cycle.Request, onComplete func(err error))
}

// RunCycle implements the [watcher.Runner] interface for *Runner.
func (r *Runner) RunCycle(ctx context.Context, req *cycle.Request, onComplete func(err error)) {
	r.OnRunCycle(ctx, req, onComplete)
}
