package affinity_test

import (
	"slices"
	"testing"

	"github.com/AdguardTeam/AdGuardCB/internal/affinity"
	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/stretchr/testify/assert"
)

// Common affinities for tests.
const (
	affGeneral  = blocker.Affinity(1 << (blocker.CategoryGeneral - 1))
	affPrivacy  = blocker.Affinity(1 << (blocker.CategoryPrivacy - 1))
	affSocial   = blocker.Affinity(1 << (blocker.CategorySocial - 1))
	affSecurity = blocker.Affinity(1 << (blocker.CategorySecurity - 1))
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		lines []string
		want  []affinity.Rule
	}{{
		name:  "empty",
		lines: nil,
		want:  nil,
	}, {
		name:  "no_affinity",
		lines: []string{"rule1", "", "  ", "||example.org^"},
		want: []affinity.Rule{{
			Text:     "rule1",
			Affinity: blocker.AffinityNone,
		}, {
			Text:     "||example.org^",
			Affinity: blocker.AffinityNone,
		}},
	}, {
		name:  "inline",
		lines: []string{"rule1", "rule2$affinity=privacy"},
		want: []affinity.Rule{{
			Text:     "rule1",
			Affinity: blocker.AffinityNone,
		}, {
			Text:     "rule2$affinity=privacy",
			Affinity: affPrivacy,
		}},
	}, {
		name:  "inline_several",
		lines: []string{"||example.org^$third-party,affinity=General|security"},
		want: []affinity.Rule{{
			Text:     "||example.org^$third-party,affinity=General|security",
			Affinity: affGeneral | affSecurity,
		}},
	}, {
		name:  "inline_all",
		lines: []string{"rule$affinity=all"},
		want: []affinity.Rule{{
			Text:     "rule$affinity=all",
			Affinity: blocker.AffinityAll,
		}},
	}, {
		name:  "inline_malformed",
		lines: []string{"rule$affinity=privacy|ads", "rule$affinity="},
		want: []affinity.Rule{{
			Text:     "rule$affinity=privacy|ads",
			Affinity: blocker.AffinityNone,
		}, {
			Text:     "rule$affinity=",
			Affinity: blocker.AffinityNone,
		}},
	}, {
		name: "block",
		lines: []string{
			"rule1",
			"!#safari_cb_affinity(privacy,social)",
			"rule2",
			"rule3$affinity=security",
			"!#safari_cb_affinity",
			"rule4",
		},
		want: []affinity.Rule{{
			Text:     "rule1",
			Affinity: blocker.AffinityNone,
		}, {
			Text:     "rule2",
			Affinity: affPrivacy | affSocial,
		}, {
			Text:     "rule3$affinity=security",
			Affinity: affSecurity,
		}, {
			Text:     "rule4",
			Affinity: blocker.AffinityNone,
		}},
	}, {
		name: "block_malformed",
		lines: []string{
			"!#safari_cb_affinity(privacy",
			"rule1",
			"!#safari_cb_affinity(unknown)",
			"rule2",
			"!#safari_cb_affinityfoo",
			"rule3",
		},
		want: []affinity.Rule{{
			Text:     "rule1",
			Affinity: blocker.AffinityNone,
		}, {
			Text:     "rule2",
			Affinity: blocker.AffinityNone,
		}, {
			Text:     "rule3",
			Affinity: blocker.AffinityNone,
		}},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := slices.Collect(affinity.Parse(tc.lines))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_restartable(t *testing.T) {
	t.Parallel()

	lines := []string{
		"!#safari_cb_affinity(all)",
		"rule1",
		"rule2",
	}

	rules := affinity.Parse(lines)

	first := slices.Collect(rules)
	second := slices.Collect(rules)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)

	n := 0
	for r := range rules {
		assert.Equal(t, blocker.AffinityAll, r.Affinity)

		n++

		break
	}

	assert.Equal(t, 1, n)
}
