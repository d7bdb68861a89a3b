package debugsvc

import (
	"maps"
	"net/http"
	"slices"
)

// Clearer is a cache that can be cleared.
type Clearer interface {
	Clear()
}

// Caches is a type alias for maps of cache IDs to the caches themselves.
type Caches map[string]Clearer

// cacheHandler performs debug cache purges.
type cacheHandler struct {
	caches Caches
}

// type check
var _ http.Handler = (*cacheHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *cacheHandler.
func (h *cacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r, slices.Collect(maps.Keys(h.caches)))
	if !ok {
		return
	}

	resp := &resultsResponse{
		Results: make(map[string]string, len(ids)),
	}

	for _, id := range ids {
		c, found := h.caches[id]
		if !found {
			resp.Results[id] = resultNotFound

			continue
		}

		c.Clear()
		resp.Results[id] = resultOK
	}

	writeJSON(w, r, resp)
}
