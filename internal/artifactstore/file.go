package artifactstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/google/renameio/v2"
)

// Names of the files within the storage directory.
const (
	manifestFileName = "manifest.json"

	artifactExt = ".json"
	advancedExt = ".advanced.txt"
)

// manifest is the index of the stored artifacts.  Replacing the manifest is
// the only commit point of a save.
type manifest struct {
	// Categories are the stored artifacts of each category, keyed by the
	// category name.
	Categories map[string]*manifestEntry `json:"categories"`

	// Generation is the number of the last committed save.
	Generation uint64 `json:"generation"`
}

// manifestEntry contains the file names and the statistics of a stored
// artifact.
type manifestEntry struct {
	Updated time.Time `json:"updated"`

	// Artifact is the name of the artifact file within the storage directory.
	Artifact string `json:"artifact"`

	// Advanced is the name of the advanced artifact file within the storage
	// directory.  It is empty if there is no advanced artifact.
	Advanced string `json:"advanced,omitempty"`

	TotalCount     int  `json:"total_count"`
	ConvertedCount int  `json:"converted_count"`
	ErrorsCount    int  `json:"errors_count"`
	Overlimit      bool `json:"overlimit"`
}

// files returns the names of the files referenced by e.
func (e *manifestEntry) files() (names []string) {
	names = []string{e.Artifact}
	if e.Advanced != "" {
		names = append(names, e.Advanced)
	}

	return names
}

// File is an [Interface] implementation that stores the artifacts in a
// directory.  Each save writes the artifacts into new files named after the
// save generation, for example "general.7.json", and then atomically replaces
// the manifest file, which references the current files of each category.
// Readers, including the enforcement backend, must find the current artifacts
// through the manifest.  Files of the superseded generations are removed after
// the manifest is replaced.
type File struct {
	logger  *slog.Logger
	metrics Metrics
	dir     string
}

// FileConfig is the configuration structure for [File].
type FileConfig struct {
	// Logger is used for logging the operations of the storage.  It must not
	// be nil.
	Logger *slog.Logger

	// Metrics is used for the collection of the storage statistics.  It must
	// not be nil.
	Metrics Metrics

	// Dir is the directory for the artifacts.  It must exist.
	Dir string
}

// NewFile returns a new properly initialized *File.  c must not be nil.
func NewFile(c *FileConfig) (s *File) {
	return &File{
		logger:  c.Logger,
		metrics: c.Metrics,
		dir:     c.Dir,
	}
}

// type check
var _ Interface = (*File)(nil)

// Save implements the [Interface] interface for *File.
func (s *File) Save(ctx context.Context, results blocker.Results) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSave(ctx, time.Since(start).Seconds(), err) }()

	m, err := s.readManifest()
	if err != nil {
		return fmt.Errorf("saving artifacts: %w", err)
	}

	gen := m.Generation + 1
	next := &manifest{
		Categories: maps.Clone(m.Categories),
		Generation: gen,
	}

	// written are the files of this generation.  Nothing references them until
	// the manifest is committed, so they are removed on any failure.
	var written []string
	defer func() { err = s.cleanupWritten(err, written) }()

	var superseded []string
	cats := sortedCategories(results)
	for _, c := range cats {
		var e *manifestEntry
		e, err = s.writeCategory(c, results[c], gen, start)
		if e != nil {
			written = append(written, e.files()...)
		}

		if err != nil {
			return fmt.Errorf("saving artifacts: category %s: %w", c, err)
		}

		if prev := m.Categories[c.String()]; prev != nil {
			superseded = append(superseded, prev.files()...)
		}

		next.Categories[c.String()] = e
	}

	err = s.writeManifest(next)
	if err != nil {
		return fmt.Errorf("saving artifacts: %w", err)
	}

	s.removeSuperseded(ctx, superseded)

	s.logger.DebugContext(ctx, "saved artifacts", "categories", len(cats), "generation", gen)

	return nil
}

// writeCategory writes the artifacts of c for the generation gen and returns
// the manifest entry referencing them.  If e is not nil, its files may have
// been written even if err is not nil.
func (s *File) writeCategory(
	c blocker.Category,
	res *blocker.ConversionResult,
	gen uint64,
	now time.Time,
) (e *manifestEntry, err error) {
	base := fmt.Sprintf("%s.%d", c, gen)
	e = &manifestEntry{
		Updated:        now.UTC(),
		Artifact:       base + artifactExt,
		TotalCount:     res.TotalCount,
		ConvertedCount: res.ConvertedCount,
		ErrorsCount:    res.ErrorsCount,
		Overlimit:      res.Overlimit,
	}

	err = s.writeFile(e.Artifact, res.Artifact)
	if err != nil {
		return e, err
	}

	if len(res.AdvancedArtifact) == 0 {
		return e, nil
	}

	e.Advanced = base + advancedExt

	return e, s.writeFile(e.Advanced, res.AdvancedArtifact)
}

// writeManifest atomically replaces the manifest with m.
func (s *File) writeManifest(m *manifest) (err error) {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	return s.writeFile(manifestFileName, b)
}

// writeFile atomically writes b into the file with the name within the storage
// directory.
func (s *File) writeFile(name string, b []byte) (err error) {
	err = renameio.WriteFile(filepath.Join(s.dir, name), b, 0o600)
	if err != nil {
		return fmt.Errorf("writing %q: %w", name, err)
	}

	return nil
}

// cleanupWritten removes the files in written if returned is not nil.
func (s *File) cleanupWritten(returned error, written []string) (err error) {
	if returned == nil {
		return nil
	}

	var errs []error
	for _, name := range written {
		rmErr := os.Remove(filepath.Join(s.dir, name))
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			errs = append(errs, rmErr)
		}
	}

	return errors.WithDeferred(returned, errors.Join(errs...))
}

// removeSuperseded removes the files that are no longer referenced by the
// committed manifest.
func (s *File) removeSuperseded(ctx context.Context, names []string) {
	for _, name := range names {
		err := os.Remove(filepath.Join(s.dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			// The manifest no longer references the file, so it is only
			// garbage now.
			s.logger.WarnContext(ctx, "removing superseded artifact", "name", name, slogutil.KeyError, err)
		}
	}
}

// Load implements the [Interface] interface for *File.
func (s *File) Load(
	_ context.Context,
	c blocker.Category,
) (res *blocker.ConversionResult, err error) {
	defer func() { err = errors.Annotate(err, "loading %s artifact: %w", c) }()

	m, err := s.readManifest()
	if err != nil {
		return nil, err
	}

	e := m.Categories[c.String()]
	if e == nil {
		return nil, ErrNotFound
	}

	res = &blocker.ConversionResult{
		TotalCount:     e.TotalCount,
		ConvertedCount: e.ConvertedCount,
		ErrorsCount:    e.ErrorsCount,
		Overlimit:      e.Overlimit,
	}

	res.Artifact, err = s.readFile(e.Artifact)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	if e.Advanced != "" {
		res.AdvancedArtifact, err = s.readFile(e.Advanced)
		if err != nil {
			return nil, fmt.Errorf("reading advanced artifact: %w", err)
		}
	}

	return res, nil
}

// readFile reads the file referenced by the manifest.  Only the base of name
// is used, so that the manifest cannot point outside of the storage directory.
func (s *File) readFile(name string) (b []byte, err error) {
	// #nosec G304 -- The directory is set by the operator and name is
	// stripped down to its base.
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
}

// readManifest reads the manifest from the storage directory.  If there is no
// manifest yet, m is empty.
func (s *File) readManifest() (m *manifest, err error) {
	m = &manifest{
		Categories: map[string]*manifestEntry{},
	}

	// #nosec G304 -- Trust the path, since it is set by the operator.
	b, err := os.ReadFile(filepath.Join(s.dir, manifestFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil
		}

		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	err = json.Unmarshal(b, m)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	if m.Categories == nil {
		m.Categories = map[string]*manifestEntry{}
	}

	return m, nil
}
