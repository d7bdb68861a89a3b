package source_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/partition"
	"github.com/AdguardTeam/AdGuardCB/internal/settings"
	"github.com/AdguardTeam/AdGuardCB/internal/source"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// testIndex is the filter index for tests.
const testIndex = `[
	{"id": "base", "group": "ads", "path": "base.txt", "enabled": true},
	{"id": "tracking", "group": "privacy", "path": "tracking.txt", "enabled": true},
	{"id": "disabled", "group": "other", "path": "missing.txt", "enabled": false}
]`

// writeFiles writes the files with the given names and contents into dir.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, data := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o600)
		require.NoError(t, err)
	}
}

// newTestFile returns a new source with the test files and the settings store.
func newTestFile(t *testing.T, maxSize datasize.ByteSize) (s *source.File, set *settings.Store) {
	t.Helper()

	filtersDir, userRulesDir := t.TempDir(), t.TempDir()
	writeFiles(t, filtersDir, map[string]string{
		source.IndexFileName: testIndex,
		"base.txt":           "! Title: Base\r\n||ads.example^\r\n",
		"tracking.txt":       "||tracker.example^$third-party\n",
	})
	writeFiles(t, userRulesDir, map[string]string{
		source.BlocklistFileName:         "||user.example^\n\n",
		source.AllowlistFileName:         "allowed.example\n",
		source.InvertedAllowlistFileName: "only.example\nalso.example\n",
	})

	set, err := settings.NewStore(&settings.StoreConfig{
		Logger: slogutil.NewDiscardLogger(),
	})
	require.NoError(t, err)

	s = source.NewFile(&source.FileConfig{
		Logger:        slogutil.NewDiscardLogger(),
		Settings:      set,
		FiltersDir:    filtersDir,
		UserRulesDir:  userRulesDir,
		MaxFilterSize: maxSize,
	})

	return s, set
}

func TestFile_Load(t *testing.T) {
	t.Parallel()

	s, set := newTestFile(t, datasize.MB)
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	filters, userRules, err := s.Load(ctx)
	require.NoError(t, err)

	wantFilters := []*partition.Filter{{
		ID:       "base",
		Lines:    []string{"! Title: Base", "||ads.example^"},
		Category: blocker.CategoryGeneral,
	}, {
		ID:       "tracking",
		Lines:    []string{"||tracker.example^$third-party"},
		Category: blocker.CategoryPrivacy,
	}}
	assert.Equal(t, wantFilters, filters)

	assert.Equal(t, &partition.UserRules{
		Blocklist: []string{"||user.example^"},
		Allowlist: []string{"allowed.example"},
	}, userRules)

	err = set.Update(ctx, func(st *settings.Settings) {
		st.BlocklistEnabled = false
		st.InvertedAllowlistEnabled = true
	})
	require.NoError(t, err)

	_, userRules, err = s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, &partition.UserRules{
		InvertedAllowlist: "@@||*$document,domain=~only.example|~also.example",
	}, userRules)

	err = set.Update(ctx, func(st *settings.Settings) {
		st.SafariProtectionEnabled = false
	})
	require.NoError(t, err)

	filters, userRules, err = s.Load(ctx)
	require.NoError(t, err)

	assert.Empty(t, filters)
	assert.Nil(t, userRules)
}

func TestFile_Load_tooLarge(t *testing.T) {
	t.Parallel()

	s, _ := newTestFile(t, 16*datasize.B)
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	_, _, err := s.Load(ctx)
	assert.Error(t, err)
}

func TestFile_Load_badGroup(t *testing.T) {
	t.Parallel()

	filtersDir := t.TempDir()
	writeFiles(t, filtersDir, map[string]string{
		source.IndexFileName: `[{"id": "bad", "group": "unknown", "path": "bad.txt", "enabled": true}]`,
		"bad.txt":            "||bad.example^\n",
	})

	set, err := settings.NewStore(&settings.StoreConfig{
		Logger: slogutil.NewDiscardLogger(),
	})
	require.NoError(t, err)

	s := source.NewFile(&source.FileConfig{
		Logger:        slogutil.NewDiscardLogger(),
		Settings:      set,
		FiltersDir:    filtersDir,
		UserRulesDir:  t.TempDir(),
		MaxFilterSize: datasize.MB,
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	_, _, err = s.Load(ctx)
	testutil.AssertErrorMsg(
		t,
		`loading filters: filter at index 0: filter "bad": filter group: bad enum value: "unknown"`,
		err,
	)
}
