package middleware

import (
	"encoding/json"
	"net/http"
)

const (
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden"
	msgRateLimited  = "Too many requests, please try again later"
	msgUnavailable  = "Service temporarily unavailable"
)

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
