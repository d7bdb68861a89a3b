package converter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// WebKit is the [Interface] implementation that converts rules into the JSON
// format of WebKit content blockers.  Network rules are validated with the
// urlfilter rule parser before conversion.
type WebKit struct {
	logger *slog.Logger
}

// WebKitConfig is the configuration structure for [WebKit].
type WebKitConfig struct {
	// Logger is used to log the conversion statistics.  It must not be nil.
	Logger *slog.Logger
}

// NewWebKit returns a new properly initialized *WebKit.  c must not be nil.
func NewWebKit(c *WebKitConfig) (w *WebKit) {
	return &WebKit{
		logger: c.Logger,
	}
}

// type check
var _ Interface = (*WebKit)(nil)

// Convert implements the [Interface] interface for *WebKit.
func (w *WebKit) Convert(
	ctx context.Context,
	rules []string,
	opts *Options,
) (res *blocker.ConversionResult, err error) {
	res = &blocker.ConversionResult{
		TotalCount: len(rules),
	}

	if len(rules) > opts.Limit {
		rules = rules[:opts.Limit]
		res.Overlimit = true
	}

	var seen *container.MapSet[string]
	if opts.Optimize {
		seen = container.NewMapSet[string]()
	}

	entries := make([]*webKitEntry, 0, len(rules))
	var advanced []string
	for _, rule := range rules {
		var e *webKitEntry
		switch kind := classify(rule); kind {
		case ruleKindComment:
			continue
		case ruleKindAdvanced:
			if opts.AdvancedBlocking {
				advanced = append(advanced, rule)
				res.ConvertedCount++
			}

			continue
		case ruleKindCosmetic:
			e, err = newCosmeticEntry(rule)
		case ruleKindNetwork:
			e, err = newNetworkEntry(rule)
		default:
			err = fmt.Errorf("rule kind: %w: %d", errors.ErrBadEnumValue, kind)
		}

		if err != nil {
			w.logger.DebugContext(ctx, "skipping rule", "rule", rule, slogutil.KeyError, err)
			res.ErrorsCount++

			continue
		}

		res.ConvertedCount++
		if seen != nil {
			key := e.key()
			if seen.Has(key) {
				continue
			}

			seen.Add(key)
		}

		entries = append(entries, e)
	}

	res.Artifact, err = json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}

	if len(advanced) > 0 {
		res.AdvancedArtifact = []byte(strings.Join(advanced, "\n"))
	}

	w.logger.DebugContext(
		ctx,
		"conversion finished",
		"total", res.TotalCount,
		"converted", res.ConvertedCount,
		"errors", res.ErrorsCount,
		"overlimit", res.Overlimit,
	)

	return res, nil
}

// ruleKind is the kind of a rule as far as the conversion is concerned.
type ruleKind uint8

// ruleKind values.
const (
	ruleKindComment ruleKind = iota
	ruleKindAdvanced
	ruleKindCosmetic
	ruleKindNetwork
)

// advancedMarkers are the markers of the rules that require advanced blocking.
var advancedMarkers = []string{
	"#%#",
	"#@%#",
	"#$#",
	"#@$#",
	"#?#",
	"#@?#",
	"$$",
}

// classify returns the kind of the rule.
func classify(rule string) (k ruleKind) {
	rule = strings.TrimSpace(rule)
	if rule == "" || rule[0] == '!' || rule[0] == '[' {
		return ruleKindComment
	}

	for _, m := range advancedMarkers {
		if strings.Contains(rule, m) {
			return ruleKindAdvanced
		}
	}

	if strings.Contains(rule, "##") || strings.Contains(rule, "#@#") {
		return ruleKindCosmetic
	}

	return ruleKindNetwork
}
