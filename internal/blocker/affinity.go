package blocker

import (
	"strings"
)

// Affinity is a bitmask of categories a rule applies to.
type Affinity uint8

// Affinity values.
const (
	// AffinityNone means that the rule applies only to the default category of
	// its filter.
	AffinityNone Affinity = 0

	// AffinityAll means that the rule applies to every category.
	AffinityAll Affinity = 1<<CategoriesCount - 1
)

// affinityAllName is the name of [AffinityAll] in rule annotations.
const affinityAllName = "all"

// NewAffinity returns the affinity for the annotation name.  Names are the
// string representations of the categories and "all".  The matching is
// case-insensitive and ignores surrounding whitespace.  ok is false if name is
// not a known affinity name.
func NewAffinity(name string) (a Affinity, ok bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, affinityAllName) {
		return AffinityAll, true
	}

	c, err := NewCategory(name)
	if err != nil {
		return AffinityNone, false
	}

	return c.Affinity(), true
}

// Matches returns true if a rule with affinity a must be put into the list of
// the category c.  a must not be [AffinityNone].
func (a Affinity) Matches(c Category) (ok bool) {
	return a == AffinityAll || a&c.Affinity() != 0
}

// String returns the annotation form of a, for example "general|privacy".
func (a Affinity) String() (s string) {
	switch a {
	case AffinityNone:
		return ""
	case AffinityAll:
		return affinityAllName
	default:
		// Go on.
	}

	var names []string
	for _, c := range Categories() {
		if a&c.Affinity() != 0 {
			names = append(names, c.String())
		}
	}

	return strings.Join(names, "|")
}
