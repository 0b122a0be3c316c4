package web

import (
	"encoding/json"
	"net/http"

	"github.com/dvbondoy/aitomate/internal/transports/common"
)

var errorMessages = map[string]string{
	"auth_required":      "authentication is required",
	"invalid_token":      "token is invalid",
	"role_required":      "subject lacks the role for this endpoint",
	"access_denied":      "access denied",
	"payload_too_large":  "request payload is too large",
	"invalid_json":       "request body must be a single JSON object",
	"tool_required":      "tool is required",
	"request_timeout":    "request timeout",
	"unknown_tool":       "tool is not registered",
	"rate_limited":       "rate limit exceeded",
	"audit_unavailable":  "audit storage is unavailable",
	"cors_denied":        "origin is not allowed",
	"cors_method_denied": "method is not allowed for cross-origin requests",
	"cors_header_denied": "header is not allowed for cross-origin requests",
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	msg, ok := errorMessages[code]
	if !ok {
		msg = code
	}
	writeJSON(w, status, map[string]string{
		"request_id": common.RequestIDFromContext(r.Context()),
		"error_code": code,
		"message":    msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
