package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the shape of every failed response.
type ErrorBody struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	RequestID string         `json:"requestId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	setRequestID(w, requestID)
	WriteJSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any, requestID string) {
	setRequestID(w, requestID)
	WriteJSON(w, http.StatusCreated, data)
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	setRequestID(w, requestID)
	WriteJSON(w, status, ErrorBody{Error: message, Code: code, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any, requestID string) {
	setRequestID(w, requestID)
	WriteJSON(w, status, ErrorBody{Error: message, Code: code, RequestID: requestID, Details: details})
}

func setRequestID(w http.ResponseWriter, requestID string) {
	if requestID != "" && w.Header().Get("X-Request-ID") == "" {
		w.Header().Set("X-Request-ID", requestID)
	}
}
