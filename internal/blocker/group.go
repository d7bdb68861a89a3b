package blocker

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// Group is a group of filters.  Every filter group has a default category, to
// which the rules without an affinity are put.
type Group string

// Group values.
const (
	GroupAds           Group = "ads"
	GroupAnnoyances    Group = "annoyances"
	GroupCustom        Group = "custom"
	GroupLanguage      Group = "language"
	GroupOther         Group = "other"
	GroupPrivacy       Group = "privacy"
	GroupSecurity      Group = "security"
	GroupSocialWidgets Group = "social_widgets"
)

// groupCategories maps filter groups to their default categories.
var groupCategories = map[Group]Category{
	GroupAds:           CategoryGeneral,
	GroupAnnoyances:    CategorySocial,
	GroupCustom:        CategoryCustom,
	GroupLanguage:      CategoryGeneral,
	GroupOther:         CategoryOther,
	GroupPrivacy:       CategoryPrivacy,
	GroupSecurity:      CategorySecurity,
	GroupSocialWidgets: CategorySocial,
}

// NewGroup converts a string into a valid group.
func NewGroup(s string) (g Group, err error) {
	g = Group(strings.ToLower(s))
	if _, ok := groupCategories[g]; !ok {
		return "", fmt.Errorf("filter group: %w: %q", errors.ErrBadEnumValue, s)
	}

	return g, nil
}

// DefaultCategory returns the default category of the filters within the
// group.  g must be valid.
func (g Group) DefaultCategory() (c Category) {
	return groupCategories[g]
}
