package api

import (
	"net/http"

	"github.com/winston-domains/winston/internal/gateway"
)

// HandleStatus returns a handler for GET /status/{domain}.
func HandleStatus(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := gw.DomainStatus(r.PathValue("domain"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
