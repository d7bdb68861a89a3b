package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/partition"
	"github.com/AdguardTeam/AdGuardCB/internal/settings"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/c2h5oh/datasize"
)

// File names.
const (
	IndexFileName             = "filters.json"
	BlocklistFileName         = "blocklist.txt"
	AllowlistFileName         = "allowlist.txt"
	InvertedAllowlistFileName = "inverted_allowlist.txt"
)

// indexEntry is an entry of the filter index.
type indexEntry struct {
	// ID is the identifier of the filter.
	ID string `json:"id"`

	// Group is the group of the filter, which defines its default category.
	Group string `json:"group"`

	// Path is the path to the filter file, relative to the filters directory.
	Path string `json:"path"`

	// Enabled defines whether the filter is used.
	Enabled bool `json:"enabled"`
}

// File is an [Interface] implementation that reads the filters and the user
// rules from the local files.
type File struct {
	logger        *slog.Logger
	settings      *settings.Store
	filtersDir    string
	userRulesDir  string
	maxFilterSize datasize.ByteSize
}

// FileConfig is the configuration structure for [File].
type FileConfig struct {
	// Logger is used to log the loading.  It must not be nil.
	Logger *slog.Logger

	// Settings are the user settings.  It must not be nil.
	Settings *settings.Store

	// FiltersDir is the directory with the filter index and the filter files.
	FiltersDir string

	// UserRulesDir is the directory with the user-rule files.
	UserRulesDir string

	// MaxFilterSize is the maximum size of a single file.  It must be
	// positive.
	MaxFilterSize datasize.ByteSize
}

// NewFile returns a new properly initialized *File.  c must not be nil.
func NewFile(c *FileConfig) (s *File) {
	return &File{
		logger:        c.Logger,
		settings:      c.Settings,
		filtersDir:    c.FiltersDir,
		userRulesDir:  c.UserRulesDir,
		maxFilterSize: c.MaxFilterSize,
	}
}

// type check
var _ Interface = (*File)(nil)

// Load implements the [Interface] interface for *File.
func (s *File) Load(
	ctx context.Context,
) (filters []*partition.Filter, userRules *partition.UserRules, err error) {
	set := s.settings.Get()
	if !set.SafariProtectionEnabled {
		s.logger.InfoContext(ctx, "protection disabled, clearing content blockers")

		return nil, nil, nil
	}

	filters, err = s.loadFilters(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading filters: %w", err)
	}

	userRules, err = s.loadUserRules(set)
	if err != nil {
		return nil, nil, fmt.Errorf("loading user rules: %w", err)
	}

	return filters, userRules, nil
}

// loadFilters reads the filter index and the enabled filters.
func (s *File) loadFilters(ctx context.Context) (filters []*partition.Filter, err error) {
	b, err := s.readFile(filepath.Join(s.filtersDir, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var index []*indexEntry
	err = json.Unmarshal(b, &index)
	if err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}

	var errs []error
	for i, e := range index {
		if e == nil || !e.Enabled {
			continue
		}

		var f *partition.Filter
		f, err = s.loadFilter(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("filter at index %d: %w", i, err))

			continue
		}

		filters = append(filters, f)
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "loaded filters", "count", len(filters))

	return filters, nil
}

// loadFilter reads a single filter.
func (s *File) loadFilter(e *indexEntry) (f *partition.Filter, err error) {
	if e.ID == "" {
		return nil, fmt.Errorf("id: %w", errors.ErrEmptyValue)
	}

	g, err := blocker.NewGroup(e.Group)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", e.ID, err)
	}

	b, err := s.readFile(filepath.Join(s.filtersDir, e.Path))
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", e.ID, err)
	}

	return &partition.Filter{
		ID:       e.ID,
		Lines:    splitLines(b),
		Category: g.DefaultCategory(),
	}, nil
}

// loadUserRules reads the user rules enabled in set.
func (s *File) loadUserRules(set *settings.Settings) (r *partition.UserRules, err error) {
	r = &partition.UserRules{}

	if set.BlocklistEnabled {
		r.Blocklist, err = s.readOptionalLines(BlocklistFileName)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case set.InvertedAllowlistEnabled:
		var domains []string
		domains, err = s.readOptionalLines(InvertedAllowlistFileName)
		if err != nil {
			return nil, err
		}

		r.InvertedAllowlist = partition.InvertedAllowlistRule(domains)
	case set.AllowlistEnabled:
		r.Allowlist, err = s.readOptionalLines(AllowlistFileName)
		if err != nil {
			return nil, err
		}
	default:
		// Go on.
	}

	return r, nil
}

// readOptionalLines returns the non-empty lines of the user-rule file with the
// name.  A missing file has no lines.
func (s *File) readOptionalLines(name string) (lines []string, err error) {
	b, err := s.readFile(filepath.Join(s.userRulesDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	for _, l := range splitLines(b) {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}

	return lines, nil
}

// readFile reads at most the maximum filter size of bytes from the file.
func (s *File) readFile(path string) (b []byte, err error) {
	// #nosec G304 -- Trust the path, since it is set by the operator or
	// the index.
	f, err := os.Open(path)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	b, err = io.ReadAll(ioutil.LimitReader(f, s.maxFilterSize.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	return b, nil
}

// splitLines splits b into lines, removing the line terminators.
func splitLines(b []byte) (lines []string) {
	for l := range strings.Lines(string(b)) {
		lines = append(lines, strings.TrimRight(l, "\r\n"))
	}

	return lines
}
