package converter_test

import (
	"context"
	"testing"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/cbtest"
	"github.com/AdguardTeam/AdGuardCB/internal/converter"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// newWebKit returns a new *converter.WebKit for tests.
func newWebKit() (w *converter.WebKit) {
	return converter.NewWebKit(&converter.WebKitConfig{
		Logger: slogutil.NewDiscardLogger(),
	})
}

func TestWebKit_Convert(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		wantJSON string
		rules    []string
		want     blocker.ConversionResult
	}{{
		name:     "empty",
		wantJSON: `[]`,
		rules:    nil,
		want:     blocker.ConversionResult{},
	}, {
		name: "block",
		wantJSON: `[{
			"trigger": {"url-filter": "^[^:]+://+([^:/]+\\.)?example\\.org[/:?=&]"},
			"action": {"type": "block"}
		}]`,
		rules: []string{"||example.org^"},
		want: blocker.ConversionResult{
			TotalCount:     1,
			ConvertedCount: 1,
		},
	}, {
		name: "third_party_affinity",
		wantJSON: `[{
			"trigger": {
				"url-filter": "^[^:]+://+([^:/]+\\.)?example\\.net[/:?=&]",
				"load-type": ["third-party"]
			},
			"action": {"type": "block"}
		}]`,
		rules: []string{"||example.net^$third-party,affinity=privacy"},
		want: blocker.ConversionResult{
			TotalCount:     1,
			ConvertedCount: 1,
		},
	}, {
		name: "allowlist",
		wantJSON: `[{
			"trigger": {
				"url-filter": "^[^:]+://+([^:/]+\\.)?example\\.org/ads",
				"if-domain": ["*example.com"]
			},
			"action": {"type": "ignore-previous-rules"}
		}]`,
		rules: []string{"@@||example.org/ads$domain=example.com"},
		want: blocker.ConversionResult{
			TotalCount:     1,
			ConvertedCount: 1,
		},
	}, {
		name: "cosmetic",
		wantJSON: `[{
			"trigger": {
				"url-filter": ".*",
				"unless-domain": ["*example.org"]
			},
			"action": {"type": "css-display-none", "selector": ".banner"}
		}]`,
		rules: []string{"~example.org##.banner"},
		want: blocker.ConversionResult{
			TotalCount:     1,
			ConvertedCount: 1,
		},
	}, {
		name:     "comments_and_advanced",
		wantJSON: `[]`,
		rules: []string{
			"! Title: Test",
			"[Adblock Plus 2.0]",
			"example.org#%#window.ads = undefined;",
		},
		want: blocker.ConversionResult{
			TotalCount: 3,
		},
	}, {
		name:     "errors",
		wantJSON: `[]`,
		rules: []string{
			"||example.org^$unknown-option-for-test",
			"example.org#@#.banner",
			"example.org,~sub.example.org##.banner",
		},
		want: blocker.ConversionResult{
			TotalCount:  3,
			ErrorsCount: 3,
		},
	}}

	w := newWebKit()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := testutil.ContextWithTimeout(t, testTimeout)
			res, err := w.Convert(ctx, tc.rules, converter.DefaultOptions())
			require.NoError(t, err)
			require.NotNil(t, res)

			assert.JSONEq(t, tc.wantJSON, string(res.Artifact))

			res.Artifact = nil
			assert.Equal(t, tc.want, *res)
		})
	}
}

func TestWebKit_Convert_overlimit(t *testing.T) {
	t.Parallel()

	rules := []string{
		"||example.com^",
		"||example.net^",
		"||example.org^",
	}

	opts := converter.DefaultOptions()
	opts.Limit = 2

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	res, err := newWebKit().Convert(ctx, rules, opts)
	require.NoError(t, err)

	assert.True(t, res.Overlimit)
	assert.Equal(t, 3, res.TotalCount)
	assert.LessOrEqual(t, res.ConvertedCount, opts.Limit)
	assert.NotContains(t, string(res.Artifact), `example\\.org`)

	opts.Limit = 3
	res, err = newWebKit().Convert(ctx, rules, opts)
	require.NoError(t, err)

	assert.False(t, res.Overlimit)
	assert.Equal(t, 3, res.ConvertedCount)
}

func TestWebKit_Convert_options(t *testing.T) {
	t.Parallel()

	rules := []string{
		"||example.org^",
		"||example.org^",
		"example.org#%#window.ads = undefined;",
	}

	w := newWebKit()

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	plain, err := w.Convert(ctx, rules, converter.DefaultOptions())
	require.NoError(t, err)

	opts := converter.DefaultOptions()
	opts.Optimize = true
	opts.AdvancedBlocking = true

	optimized, err := w.Convert(ctx, rules, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, plain.ConvertedCount)
	assert.Empty(t, plain.AdvancedArtifact)

	assert.Equal(t, 3, optimized.ConvertedCount)
	assert.Less(t, len(optimized.Artifact), len(plain.Artifact))
	assert.Equal(t, []byte(rules[2]), optimized.AdvancedArtifact)
}

func TestWebKit_Convert_deterministic(t *testing.T) {
	t.Parallel()

	rules := []string{
		"||example.org^$script,image,domain=example.com|example.net",
		"@@||example.org/allowed^",
		"example.com,example.net##.ad",
		"/banner[0-9]+/$image",
		"|https://example.org/track|",
	}

	w := newWebKit()
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	first, err := w.Convert(ctx, rules, converter.DefaultOptions())
	require.NoError(t, err)

	second, err := w.Convert(ctx, rules, converter.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, len(rules), first.ConvertedCount)
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, converter.DefaultOptions().Validate())

	var opts *converter.Options
	testutil.AssertErrorMsg(t, "no value", opts.Validate())

	opts = &converter.Options{}
	err := opts.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "limit")
}

func TestCached_Convert(t *testing.T) {
	t.Parallel()

	var calls int
	conv := &cbtest.Converter{
		OnConvert: func(
			_ context.Context,
			rules []string,
			_ *converter.Options,
		) (res *blocker.ConversionResult, err error) {
			calls++

			return &blocker.ConversionResult{
				Artifact:       []byte("[]"),
				TotalCount:     len(rules),
				ConvertedCount: len(rules),
			}, nil
		},
	}

	var hits, misses int
	c := converter.NewCached(&converter.CachedConfig{
		Converter: conv,
		Metrics: &cbtest.ConverterMetrics{
			OnIncrementLookups: func(_ context.Context, hit bool) {
				if hit {
					hits++
				} else {
					misses++
				}
			},
		},
		Count: 10,
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	opts := converter.DefaultOptions()

	first, err := c.Convert(ctx, []string{"a", "b"}, opts)
	require.NoError(t, err)

	second, err := c.Convert(ctx, []string{"a", "b"}, opts)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	// The rule boundaries are a part of the key.
	_, err = c.Convert(ctx, []string{"ab"}, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)

	opts.Optimize = true
	_, err = c.Convert(ctx, []string{"a", "b"}, opts)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)

	c.Clear()
	_, err = c.Convert(ctx, []string{"a", "b"}, opts)
	require.NoError(t, err)

	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 4, misses)
}

func TestCached_Convert_error(t *testing.T) {
	t.Parallel()

	conv := &cbtest.Converter{
		OnConvert: func(
			_ context.Context,
			_ []string,
			_ *converter.Options,
		) (res *blocker.ConversionResult, err error) {
			return nil, assert.AnError
		},
	}

	c := converter.NewCached(&converter.CachedConfig{
		Converter: conv,
		Metrics:   converter.EmptyMetrics{},
		Count:     10,
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	res, err := c.Convert(ctx, []string{"a"}, converter.DefaultOptions())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, res)
}
