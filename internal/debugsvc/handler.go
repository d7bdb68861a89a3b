package debugsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"

	"github.com/AdguardTeam/AdGuardCB/internal/agdhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// serveHealthCheck handles the GET /health-check endpoint.
func serveHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(httphdr.ContentType, agdhttp.HdrValTextPlain)
	w.WriteHeader(http.StatusOK)

	_, err := io.WriteString(w, "OK\n")
	if err != nil {
		ctx := r.Context()
		l := slogutil.MustLoggerFromContext(ctx)
		l.DebugContext(ctx, "writing health-check response", slogutil.KeyError, err)
	}
}

// idsRequest describes the requests to the APIs that accept a list of IDs.
type idsRequest struct {
	IDs []string `json:"ids"`
}

// resultsResponse describes the responses of the APIs that accept a list of
// IDs.
type resultsResponse struct {
	Results map[string]string `json:"results"`
}

// Result strings.
const (
	resultOK       = "ok"
	resultNotFound = "error: not found"
)

// idsFromReq validates the IDs from the request and returns the IDs to process.
// The single ID "*" means all IDs from allIDs.
func idsFromReq(reqIDs, allIDs []string) (ids []string, err error) {
	switch len(reqIDs) {
	case 0:
		return nil, errors.Error("no ids")
	case 1:
		if reqIDs[0] != "*" {
			return reqIDs, nil
		}

		slices.Sort(allIDs)

		return allIDs, nil
	default:
		if slices.Contains(reqIDs, "*") {
			return nil, errors.Error(`"*" cannot be used with other ids`)
		}

		return reqIDs, nil
	}
}

// decodeIDs decodes the request and returns the IDs to process.  If it fails,
// it writes the error response.
func decodeIDs(w http.ResponseWriter, r *http.Request, allIDs []string) (ids []string, ok bool) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	req := &idsRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		l.ErrorContext(ctx, "decoding request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return nil, false
	}

	ids, err = idsFromReq(req.IDs, allIDs)
	if err != nil {
		l.ErrorContext(ctx, "validating request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return nil, false
	}

	return ids, true
}

// writeJSON writes v as the JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set(httphdr.ContentType, agdhttp.HdrValApplicationJSON)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		ctx := r.Context()
		l := slogutil.MustLoggerFromContext(ctx)
		l.ErrorContext(ctx, "writing response", slogutil.KeyError, err)
	}
}
