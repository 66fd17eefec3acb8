package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse is the envelope used by the admin and draft endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteRawJSON writes an arbitrary payload. The public payment and submission
// endpoints use fixed wire shapes instead of the APIResponse envelope.
func WriteRawJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// PaymentErrorResponse is the failure shape of the invoice-creation endpoint.
type PaymentErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func WritePaymentError(w http.ResponseWriter, status int, err error, details string) {
	WriteRawJSON(w, status, PaymentErrorResponse{
		Error:     err.Error(),
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStringValue returns the value of a nullable string pointer or "" if nil.
func GetStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
