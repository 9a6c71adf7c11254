package handlers

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope shared by every API endpoint. Code 0
// means success; anything else is a failure the client surfaces.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// respondData sends a success envelope
func respondData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{Code: 0, Message: "ok", Data: data})
}

// respondError sends a failure envelope
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Code: -1, Message: message})
}
