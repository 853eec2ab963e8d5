// httputil/json.go
package httputil

import (
	"encoding/json"
	"net/http"
	"reflect"

	"go.uber.org/zap"
)

// Status values used in every JSON envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the JSON envelope returned by the contact endpoint and the
// router's fallback handlers: {"status":"error","error":"..."} or
// {"status":"success","message":"..."}.
type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// jsonLogger receives encoding errors that happen after headers are sent.
var jsonLogger = zap.NewNop()

// SetJSONLogger configures the logger used for JSON encoding errors.
// Call it once during startup.
func SetJSONLogger(logger *zap.Logger) {
	if logger != nil {
		jsonLogger = logger
	}
}

// WriteJSON writes v as JSON with the given status code.
//
// Invalid status codes (outside 100-599) are clamped to 500. Encoding errors
// can only be logged because the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		typeName := "nil"
		if v != nil {
			typeName = reflect.TypeOf(v).String()
		}
		jsonLogger.Error("json encoding failed after headers sent",
			zap.String("type", typeName), zap.Error(err))
	}
}

// WriteError writes {"status":"error","error":msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Response{Status: StatusError, Error: msg})
}

// WriteSuccess writes {"status":"success","message":msg} with 200 OK.
func WriteSuccess(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusOK, Response{Status: StatusSuccess, Message: msg})
}
