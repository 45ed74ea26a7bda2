package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	errUnsupportedAuthorization = errors.New("unsupported authorization scheme")
	errMissingSubject           = errors.New("token has no subject")
)

// writeJSONError writes the same {"error","message"} body the handlers use
func writeJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorType,
		"message": message,
	})
}
