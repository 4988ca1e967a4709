package payments

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/freshcart-vn/freshcart-backend/api/responses"
	internalpayments "github.com/freshcart-vn/freshcart-backend/internal/payments"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
)

// IPN handles the gateway's server-to-server payment notification. The reply
// is always HTTP 200 with a gateway status code in the body; anything else
// keeps the gateway retrying.
func IPN(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeReply(w, internalpayments.ReplyUnknownError)
			return
		}
		// Parameters arrive on the query string for GET deliveries and in the
		// form body for POST; ParseForm merges both.
		reply := svc.HandleNotify(r.Context(), r.Form)
		writeReply(w, reply)
	}
}

// Return handles the customer's browser redirect back from the gateway. It
// never mutates payment state; the notification path owns all writes.
func Return(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := svc.HandleReturn(r.Context(), r.URL.Query())
		responses.WriteSuccess(w, result)
	}
}

func writeReply(w http.ResponseWriter, reply internalpayments.NotifyReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode gateway reply","err":"%v"}`, err)
	}
}
