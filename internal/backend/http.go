package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/AdguardTeam/AdGuardCB/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
)

// Path constants.
const (
	PathBlockers = "/api/v1/content_blockers"

	pathReload = "reload"
	pathState  = "state"
)

// maxRespSize is the maximum size of a response body.
const maxRespSize = 64 * datasize.KB

// HTTP is an [Interface] implementation that sends the requests to the HTTP API
// of the enforcement backend.
type HTTP struct {
	logger  *slog.Logger
	http    *agdhttp.Client
	baseURL *url.URL
}

// HTTPConfig is the configuration structure for [HTTP].
type HTTPConfig struct {
	// Logger is used for logging the panics in callbacks.  It must not be nil.
	Logger *slog.Logger

	// Client is the HTTP client.  It must not be nil.
	Client *agdhttp.Client

	// BaseURL is the base URL of the backend API.  It must not be nil.
	BaseURL *url.URL
}

// NewHTTP returns a new properly initialized *HTTP.  c must not be nil.
func NewHTTP(c *HTTPConfig) (b *HTTP) {
	return &HTTP{
		logger:  c.Logger,
		http:    c.Client,
		baseURL: c.BaseURL,
	}
}

// type check
var _ Interface = (*HTTP)(nil)

// reloadRequest is the body of the reload request.
type reloadRequest struct {
	ID blocker.ID `json:"id"`
}

// stateResponse is the body of the state response.
type stateResponse struct {
	Enabled *bool `json:"enabled"`
}

// Reload implements the [Interface] interface for *HTTP.
func (b *HTTP) Reload(ctx context.Context, id blocker.ID, cb func(err error)) {
	go func() {
		defer slogutil.RecoverAndLog(ctx, b.logger)

		cb(b.reload(ctx, id))
	}()
}

// reload sends the reload request for id.
func (b *HTTP) reload(ctx context.Context, id blocker.ID) (err error) {
	defer func() { err = errors.Annotate(err, "reloading %q: %w", id) }()

	body, err := json.Marshal(&reloadRequest{
		ID: id,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	u := b.baseURL.JoinPath(PathBlockers, string(id), pathReload)
	resp, err := b.http.Post(ctx, u, agdhttp.HdrValApplicationJSON, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	return agdhttp.CheckStatus(resp, http.StatusOK)
}

// State implements the [Interface] interface for *HTTP.
func (b *HTTP) State(ctx context.Context, id blocker.ID, cb func(enabled bool, err error)) {
	go func() {
		defer slogutil.RecoverAndLog(ctx, b.logger)

		cb(b.state(ctx, id))
	}()
}

// state requests the state of the content blocker with id.
func (b *HTTP) state(ctx context.Context, id blocker.ID) (enabled bool, err error) {
	defer func() { err = errors.Annotate(err, "getting state of %q: %w", id) }()

	resp, err := b.http.Get(ctx, b.baseURL.JoinPath(PathBlockers, string(id), pathState))
	if err != nil {
		return false, fmt.Errorf("sending request: %w", err)
	}

	st := &stateResponse{}
	err = agdhttp.DecodeJSON(resp, http.StatusOK, maxRespSize, st)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return false, err
	}

	if st.Enabled == nil {
		return false, fmt.Errorf("enabled: %w", errors.ErrNoValue)
	}

	return *st.Enabled, nil
}
