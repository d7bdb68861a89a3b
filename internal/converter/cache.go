package converter

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/bluele/gcache"
	"github.com/cespare/xxhash/v2"
)

// Cached is an [Interface] implementation that memoizes the results of another
// converter.  Results are keyed by the hash of the rules and the options, so
// the rule lists of categories that have not changed since the previous cycle
// are not converted again.
//
// The returned results are shared and must not be modified.
type Cached struct {
	cache   gcache.Cache
	conv    Interface
	metrics Metrics
}

// CachedConfig is the configuration structure for [Cached].
type CachedConfig struct {
	// Converter is the underlying converter.  It must not be nil.
	Converter Interface

	// Metrics is used for the collection of the cache statistics.  It must not
	// be nil.
	Metrics Metrics

	// Count is the maximum number of results to keep.  It must be positive.
	Count int
}

// NewCached returns a new properly initialized *Cached.  c must not be nil.
func NewCached(c *CachedConfig) (conv *Cached) {
	return &Cached{
		cache:   gcache.New(c.Count).LRU().Build(),
		conv:    c.Converter,
		metrics: c.Metrics,
	}
}

// type check
var _ Interface = (*Cached)(nil)

// Convert implements the [Interface] interface for *Cached.
func (c *Cached) Convert(
	ctx context.Context,
	rules []string,
	opts *Options,
) (res *blocker.ConversionResult, err error) {
	key := cacheKey(rules, opts)

	v, err := c.cache.Get(key)
	if err == nil {
		c.metrics.IncrementLookups(ctx, true)

		return v.(*blocker.ConversionResult), nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		// Shouldn't happen, since there is no loader function.
		panic(fmt.Errorf("converter: getting cache item: %w", err))
	}

	c.metrics.IncrementLookups(ctx, false)

	res, err = c.conv.Convert(ctx, rules, opts)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	err = c.cache.Set(key, res)
	if err != nil {
		// Shouldn't happen, since there is no serialization function.
		panic(fmt.Errorf("converter: setting cache item: %w", err))
	}

	return res, nil
}

// Clear removes all results from the cache.
func (c *Cached) Clear() {
	c.cache.Purge()
}

// cacheKey returns the cache key for the rules and the options.
func cacheKey(rules []string, opts *Options) (key uint64) {
	h := xxhash.New()

	var buf [binary.MaxVarintLen64]byte
	for _, r := range rules {
		n := binary.PutUvarint(buf[:], uint64(len(r)))
		_, _ = h.Write(buf[:n])
		_, _ = h.WriteString(r)
	}

	// #nosec G115 -- The limit is validated to be positive.
	n := binary.PutUvarint(buf[:], uint64(opts.Limit))
	_, _ = h.Write(buf[:n])
	_, _ = h.Write([]byte{boolByte(opts.Optimize), boolByte(opts.AdvancedBlocking)})

	return h.Sum64()
}

// boolByte returns 1 if b is true and 0 otherwise.
func boolByte(b bool) (res byte) {
	if b {
		return 1
	}

	return 0
}
