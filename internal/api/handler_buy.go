package api

import (
	"net/http"

	"github.com/winston-domains/winston/internal/gateway"
)

// HandleBuy returns a handler for POST /buy. Requires authentication.
func HandleBuy(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r)
		if user == nil {
			WriteError(w, gateway.E(gateway.KindUnauthorized, "authentication required"))
			return
		}

		var req gateway.BuyRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		raw, err := gw.Buy(r.Context(), user, &req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteRaw(w, http.StatusOK, raw)
	}
}
