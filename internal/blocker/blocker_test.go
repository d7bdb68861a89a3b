package blocker_test

import (
	"testing"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAppBundleID is the common application bundle identifier for tests.
const testAppBundleID = "com.adguard.ios.AdguardPro"

func TestNewCategory(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		in         string
		wantErrMsg string
		want       blocker.Category
	}{{
		name:       "success",
		in:         "privacy",
		wantErrMsg: "",
		want:       blocker.CategoryPrivacy,
	}, {
		name:       "success_case",
		in:         "Security",
		wantErrMsg: "",
		want:       blocker.CategorySecurity,
	}, {
		name:       "none",
		in:         "(none)",
		wantErrMsg: `category: bad enum value: "(none)"`,
		want:       blocker.CategoryNone,
	}, {
		name:       "unknown",
		in:         "ads",
		wantErrMsg: `category: bad enum value: "ads"`,
		want:       blocker.CategoryNone,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := blocker.NewCategory(tc.in)
			assert.Equal(t, tc.want, got)
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)
		})
	}
}

func TestCategory_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(none)", blocker.CategoryNone.String())
	assert.Equal(t, "social", blocker.CategorySocial.String())
	assert.Equal(t, "!bad_category_42", blocker.Category(42).String())
}

func TestCategory_IsValid(t *testing.T) {
	t.Parallel()

	for _, c := range blocker.Categories() {
		assert.True(t, c.IsValid(), "category %s", c)
	}

	assert.False(t, blocker.CategoryNone.IsValid())
	assert.False(t, blocker.Category(blocker.CategoriesCount+1).IsValid())
	assert.False(t, blocker.Category(42).IsValid())
}

func TestCategory_MarshalText(t *testing.T) {
	t.Parallel()

	b, err := blocker.CategoryOther.MarshalText()
	require.NoError(t, err)

	assert.Equal(t, []byte("other"), b)

	_, err = blocker.CategoryNone.MarshalText()
	testutil.AssertErrorMsg(t, "category: bad enum value: 0", err)

	var c blocker.Category
	err = c.UnmarshalText([]byte("custom"))
	require.NoError(t, err)

	assert.Equal(t, blocker.CategoryCustom, c)
}

func TestCategories(t *testing.T) {
	t.Parallel()

	cats := blocker.Categories()
	require.Len(t, cats, blocker.CategoriesCount)

	var all blocker.Affinity
	for _, c := range cats {
		a := c.Affinity()
		assert.Zero(t, all&a, "category %s", c)

		all |= a
	}

	assert.Equal(t, blocker.AffinityAll, all)
}

func TestNewID(t *testing.T) {
	t.Parallel()

	want := map[blocker.Category]blocker.ID{
		blocker.CategoryGeneral:  testAppBundleID + ".extension",
		blocker.CategoryPrivacy:  testAppBundleID + ".extensionPrivacy",
		blocker.CategorySocial:   testAppBundleID + ".extensionAnnoyances",
		blocker.CategoryOther:    testAppBundleID + ".extensionOther",
		blocker.CategoryCustom:   testAppBundleID + ".extensionCustom",
		blocker.CategorySecurity: testAppBundleID + ".extensionSecurity",
	}

	for _, c := range blocker.Categories() {
		assert.Equal(t, want[c], blocker.NewID(testAppBundleID, c), "category %s", c)
	}
}

func TestNewAffinity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		in     string
		want   blocker.Affinity
		wantOK bool
	}{{
		name:   "all",
		in:     "all",
		want:   blocker.AffinityAll,
		wantOK: true,
	}, {
		name:   "category",
		in:     " Privacy ",
		want:   blocker.CategoryPrivacy.Affinity(),
		wantOK: true,
	}, {
		name:   "unknown",
		in:     "ads",
		want:   blocker.AffinityNone,
		wantOK: false,
	}, {
		name:   "empty",
		in:     "",
		want:   blocker.AffinityNone,
		wantOK: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := blocker.NewAffinity(tc.in)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAffinity_Matches(t *testing.T) {
	t.Parallel()

	a := blocker.CategoryGeneral.Affinity() | blocker.CategorySecurity.Affinity()

	assert.True(t, a.Matches(blocker.CategoryGeneral))
	assert.True(t, a.Matches(blocker.CategorySecurity))
	assert.False(t, a.Matches(blocker.CategoryPrivacy))
	assert.Equal(t, "general|security", a.String())

	for _, c := range blocker.Categories() {
		assert.True(t, blocker.AffinityAll.Matches(c), "category %s", c)
	}

	assert.Equal(t, "all", blocker.AffinityAll.String())
}

func TestGroup_DefaultCategory(t *testing.T) {
	t.Parallel()

	g, err := blocker.NewGroup("Social_Widgets")
	require.NoError(t, err)

	assert.Equal(t, blocker.CategorySocial, g.DefaultCategory())
	assert.Equal(t, blocker.CategoryGeneral, blocker.GroupLanguage.DefaultCategory())

	_, err = blocker.NewGroup("dns")
	testutil.AssertErrorMsg(t, `filter group: bad enum value: "dns"`, err)
}
