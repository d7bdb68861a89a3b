// Package partition distributes filter rules and user rules between content
// blocker categories.
package partition

import (
	"fmt"

	"github.com/AdguardTeam/AdGuardCB/internal/affinity"
	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// Filter is the content of a single filter.
type Filter struct {
	// ID is the identifier of the filter.  It is only used for logging.
	ID string

	// Lines are the raw lines of the filter.
	Lines []string

	// Category is the default category of the filter.  The rules without an
	// affinity are dropped if it is not valid.
	Category blocker.Category
}

// type check
var _ validate.Interface = (*Filter)(nil)

// Validate implements the [validate.Interface] interface for *Filter.
func (f *Filter) Validate() (err error) {
	if f == nil {
		return errors.ErrNoValue
	}

	if !f.Category.IsValid() {
		return fmt.Errorf("filter %q: category: %w: %d", f.ID, errors.ErrBadEnumValue, f.Category)
	}

	return nil
}

// UserRules are the rules provided by the user.  All fields are optional.
type UserRules struct {
	// Blocklist are the rules appended to every category verbatim.
	Blocklist []string

	// Allowlist are the domains each of which is turned into an allowlist rule
	// using [AllowlistRule].  It must be empty if InvertedAllowlist is set.
	Allowlist []string

	// InvertedAllowlist is the rule appended to every category once, if not
	// empty.  It must be empty if Allowlist is set.
	InvertedAllowlist string
}

// ErrAllowlistConflict is returned by [UserRules.Validate] when both the
// allowlist and the inverted allowlist are set.
const ErrAllowlistConflict errors.Error = "allowlist and inverted allowlist are mutually exclusive"

// type check
var _ validate.Interface = (*UserRules)(nil)

// Validate implements the [validate.Interface] interface for *UserRules.  A nil
// *UserRules is valid.
func (r *UserRules) Validate() (err error) {
	if r == nil {
		return nil
	}

	if len(r.Allowlist) > 0 && r.InvertedAllowlist != "" {
		return ErrAllowlistConflict
	}

	return nil
}

// RuleSet is the mapping of every category to its ordered rule list.
type RuleSet map[blocker.Category][]string

// Partition distributes the rules from filters and userRules between the
// categories.  The rules from filters are put into categories according to
// their affinities; the rules without an affinity go to the default category of
// their filter.  The user rules are then appended to every category: the
// blocklist first, then the allowlist or the inverted allowlist.  Every
// category is present in rs, even if its list is empty, and rs contains no
// other keys.  userRules may be nil.
func Partition(filters []*Filter, userRules *UserRules) (rs RuleSet) {
	cats := blocker.Categories()

	rs = make(RuleSet, len(cats))
	for _, c := range cats {
		rs[c] = []string{}
	}

	for _, f := range filters {
		for r := range affinity.Parse(f.Lines) {
			rs.add(cats, f.Category, r)
		}
	}

	if userRules == nil {
		return rs
	}

	allowlist := make([]string, 0, len(userRules.Allowlist))
	for _, d := range userRules.Allowlist {
		allowlist = append(allowlist, AllowlistRule(d))
	}

	for _, c := range cats {
		l := rs[c]
		l = append(l, userRules.Blocklist...)
		l = append(l, allowlist...)
		if userRules.InvertedAllowlist != "" {
			l = append(l, userRules.InvertedAllowlist)
		}

		rs[c] = l
	}

	return rs
}

// add puts r into the lists of the matching categories.  A rule without an
// affinity is dropped if def is not valid.
func (rs RuleSet) add(cats []blocker.Category, def blocker.Category, r affinity.Rule) {
	if r.Affinity == blocker.AffinityNone {
		if def.IsValid() {
			rs[def] = append(rs[def], r.Text)
		}

		return
	}

	for _, c := range cats {
		if r.Affinity.Matches(c) {
			rs[c] = append(rs[c], r.Text)
		}
	}
}

// Count returns the total number of rules in all categories.
func (rs RuleSet) Count() (n int) {
	for _, l := range rs {
		n += len(l)
	}

	return n
}
