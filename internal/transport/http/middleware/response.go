package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-secret-friend/internal/domain"
)

// writeJSONError answers with the same {error, reason} envelope the handlers use,
// so clients can branch on reason whether a request stopped here or in a handler.
func writeJSONError(w http.ResponseWriter, status int, cause error, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "reason": domain.Reason(cause)})
}
