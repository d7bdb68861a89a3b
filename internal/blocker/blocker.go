// Package blocker contains the common types of content blockers: categories,
// affinities, identifiers, and conversion results.
package blocker

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// Category is a content-blocker category.  Each category receives its own
// compiled rule artifact and is reloaded independently.
type Category uint8

// Category values.
//
// Do not change the order.  The order of the values defines the iteration order
// of [Categories].
const (
	CategoryNone     Category = 0
	CategoryGeneral  Category = 1
	CategoryPrivacy  Category = 2
	CategorySocial   Category = 3
	CategoryOther    Category = 4
	CategoryCustom   Category = 5
	CategorySecurity Category = 6
)

// categoryStrings is a mapping between a category and its string
// representation.
var categoryStrings = []string{
	CategoryNone:     "(none)",
	CategoryGeneral:  "general",
	CategoryPrivacy:  "privacy",
	CategorySocial:   "social",
	CategoryOther:    "other",
	CategoryCustom:   "custom",
	CategorySecurity: "security",
}

// CategoriesCount is the number of valid categories.
const CategoriesCount = 6

// Categories returns all valid categories in the fixed order.
func Categories() (cats []Category) {
	return []Category{
		CategoryGeneral,
		CategoryPrivacy,
		CategorySocial,
		CategoryOther,
		CategoryCustom,
		CategorySecurity,
	}
}

// IsValid returns true if c is one of [Categories].
func (c Category) IsValid() (ok bool) {
	return c > CategoryNone && c <= CategorySecurity
}

// NewCategory converts a string into a valid category.  The matching is
// case-insensitive.
func NewCategory(s string) (c Category, err error) {
	for i, cStr := range categoryStrings[1:] {
		if strings.EqualFold(s, cStr) {
			// #nosec G115 -- i is below math.MaxUint8.
			return Category(i + 1), nil
		}
	}

	return CategoryNone, fmt.Errorf("category: %w: %q", errors.ErrBadEnumValue, s)
}

// type check
var _ fmt.Stringer = CategoryNone

// String implements the [fmt.Stringer] interface for Category.
func (c Category) String() (s string) {
	if int(c) < len(categoryStrings) {
		return categoryStrings[c]
	}

	return fmt.Sprintf("!bad_category_%d", c)
}

// type check
var _ encoding.TextMarshaler = CategoryNone

// MarshalText implements the [encoding.TextMarshaler] interface for Category.
func (c Category) MarshalText() (b []byte, err error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("category: %w: %d", errors.ErrBadEnumValue, c)
	}

	return []byte(categoryStrings[c]), nil
}

// type check
var _ encoding.TextUnmarshaler = (*Category)(nil)

// UnmarshalText implements the [encoding.TextUnmarshaler] interface for
// *Category.
func (c *Category) UnmarshalText(b []byte) (err error) {
	*c, err = NewCategory(string(b))

	return err
}

// Affinity returns the affinity mask of the category.  c must be valid.
func (c Category) Affinity() (a Affinity) {
	return 1 << (c - 1)
}

// bundleSuffixes are the suffixes that are appended to the application bundle
// identifier to get the identifier of the content blocker of a category.
var bundleSuffixes = []string{
	CategoryGeneral:  "extension",
	CategoryPrivacy:  "extensionPrivacy",
	CategorySocial:   "extensionAnnoyances",
	CategoryOther:    "extensionOther",
	CategoryCustom:   "extensionCustom",
	CategorySecurity: "extensionSecurity",
}

// ID is the identifier of a content blocker as understood by the enforcement
// backend.
type ID string

// NewID returns the identifier of the content blocker for the category c
// within the application with the given bundle identifier.  c must be valid.
func NewID(appBundleID string, c Category) (id ID) {
	return ID(appBundleID + "." + bundleSuffixes[c])
}
