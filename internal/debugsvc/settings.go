package debugsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/AdguardTeam/AdGuardCB/internal/cycle"
	"github.com/AdguardTeam/AdGuardCB/internal/settings"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// settingsHandler reports and changes the user settings.  Each change rebuilds
// and reloads the content blockers.
type settingsHandler struct {
	cycles   CycleRunner
	settings SettingsStore
}

// settingsPatch describes the request to the PUT /debug/api/settings HTTP API.
// Absent fields are not changed.
type settingsPatch struct {
	SafariProtectionEnabled  *bool `json:"safari_protection_enabled"`
	BlocklistEnabled         *bool `json:"blocklist_enabled"`
	AllowlistEnabled         *bool `json:"allowlist_enabled"`
	InvertedAllowlistEnabled *bool `json:"inverted_allowlist_enabled"`
}

// apply sets the fields of set that are present in p.
func (p *settingsPatch) apply(set *settings.Settings) {
	setIfPresent(&set.SafariProtectionEnabled, p.SafariProtectionEnabled)
	setIfPresent(&set.BlocklistEnabled, p.BlocklistEnabled)
	setIfPresent(&set.AllowlistEnabled, p.AllowlistEnabled)
	setIfPresent(&set.InvertedAllowlistEnabled, p.InvertedAllowlistEnabled)
}

// setIfPresent sets *dst to *v if v is not nil.
func setIfPresent(dst, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// serveGet handles the GET /debug/api/settings endpoint.
func (h *settingsHandler) serveGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.settings.Get())
}

// servePut handles the PUT /debug/api/settings endpoint.
func (h *settingsHandler) servePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	patch := &settingsPatch{}
	err := json.NewDecoder(r.Body).Decode(patch)
	if err != nil {
		l.ErrorContext(ctx, "decoding request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	err = h.cycles.Cycle(ctx, &cycle.Request{
		Prepare: func(ctx context.Context) (err error) {
			return h.settings.Update(ctx, patch.apply)
		},
	})
	if err != nil {
		l.ErrorContext(ctx, "applying settings", slogutil.KeyError, err)

		code := http.StatusInternalServerError
		if errors.Is(err, cycle.ErrShutdown) || errors.Is(err, cycle.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}

		http.Error(w, err.Error(), code)

		return
	}

	writeJSON(w, r, h.settings.Get())
}
