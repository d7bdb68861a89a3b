package debugsvc

import (
	"net/http"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
)

// blockersHandler reports the states of the content blockers.
type blockersHandler struct {
	states StateGetter
}

// blockersResponse describes the response to the GET /debug/api/blockers HTTP
// API.
type blockersResponse struct {
	Enabled map[blocker.Category]bool `json:"enabled"`
}

// type check
var _ http.Handler = (*blockersHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *blockersHandler.
func (h *blockersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, &blockersResponse{
		Enabled: h.states.AllStates(r.Context()),
	})
}
