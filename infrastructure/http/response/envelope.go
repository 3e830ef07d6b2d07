package response

import (
	"encoding/json"
	"net/http"
)

type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, status bool, message string, data interface{}) {
	write(w, statusCode, Envelope{Status: status, Message: message, Data: data})
}

func write(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, true, message, data)
}

func Error(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, false, message, nil)
}

// ErrorWithCode writes a failure envelope carrying a machine readable code.
func ErrorWithCode(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, Envelope{Status: false, Message: message, Code: code})
}

func BadRequest(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusForbidden, "FORBIDDEN", message)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusTooManyRequests, "RATE_LIMITED", message)
}

func InternalServerError(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
