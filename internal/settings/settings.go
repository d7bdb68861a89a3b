// Package settings contains the user settings that affect the content of the
// content blockers.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/renameio/v2"
)

// Settings are the user settings.
type Settings struct {
	// SafariProtectionEnabled is false if the filtering is disabled entirely,
	// in which case all content blockers receive empty rule lists.
	SafariProtectionEnabled bool `json:"safari_protection_enabled"`

	// BlocklistEnabled defines whether the user blocklist rules are used.
	BlocklistEnabled bool `json:"blocklist_enabled"`

	// AllowlistEnabled defines whether the user allowlist domains are used.
	AllowlistEnabled bool `json:"allowlist_enabled"`

	// InvertedAllowlistEnabled defines whether the inverted allowlist is used
	// instead of the allowlist.
	InvertedAllowlistEnabled bool `json:"inverted_allowlist_enabled"`
}

// Default returns the default settings.
func Default() (s *Settings) {
	return &Settings{
		SafariProtectionEnabled:  true,
		BlocklistEnabled:         true,
		AllowlistEnabled:         true,
		InvertedAllowlistEnabled: false,
	}
}

// Store is a storage of the settings safe for concurrent use.  If it has a
// file path, every update is written into the file.
type Store struct {
	logger *slog.Logger

	// mu protects current.
	mu      *sync.Mutex
	current *Settings

	path string
}

// StoreConfig is the configuration structure for [Store].
type StoreConfig struct {
	// Logger is used to log the updates.  It must not be nil.
	Logger *slog.Logger

	// Path is the path to the settings file.  If it is empty, the settings
	// are not persisted.
	Path string
}

// NewStore returns a new *Store with the settings read from the file, if there
// is one, or with the default ones.  c must not be nil.
func NewStore(c *StoreConfig) (s *Store, err error) {
	s = &Store{
		logger:  c.Logger,
		mu:      &sync.Mutex{},
		current: Default(),
		path:    c.Path,
	}

	if s.path == "" {
		return s, nil
	}

	// #nosec G304 -- Trust the path, since it is set by the operator.
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}

		return nil, fmt.Errorf("reading settings: %w", err)
	}

	err = json.Unmarshal(b, s.current)
	if err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() (cur *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *s.current

	return &c
}

// Update applies f to a copy of the current settings and stores the result.
// If the result cannot be persisted, the current settings are not changed.
func (s *Store) Update(ctx context.Context, f func(set *Settings)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	upd := *s.current
	f(&upd)

	if s.path != "" {
		var b []byte
		b, err = json.Marshal(&upd)
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}

		err = renameio.WriteFile(s.path, b, 0o600)
		if err != nil {
			return fmt.Errorf("writing settings: %w", err)
		}
	}

	s.current = &upd

	s.logger.InfoContext(
		ctx,
		"settings updated",
		"protection", upd.SafariProtectionEnabled,
		"blocklist", upd.BlocklistEnabled,
		"allowlist", upd.AllowlistEnabled,
		"inverted_allowlist", upd.InvertedAllowlistEnabled,
	)

	return nil
}
