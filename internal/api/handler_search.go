package api

import (
	"net/http"

	"github.com/winston-domains/winston/internal/gateway"
)

// HandleSearch returns a handler for POST /search. Auth is optional;
// authenticated searches are attributed in the audit log.
func HandleSearch(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SearchRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		resp, err := gw.Search(r.Context(), UserFrom(r), &req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
