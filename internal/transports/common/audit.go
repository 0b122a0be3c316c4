package common

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/storage"
)

// AuditSink записывает аудиторные события.
type AuditSink = storage.AuditWriter

type requestIDKey struct{}

// WithRequestID привязывает идентификатор запроса или сессии к контексту.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext возвращает идентификатор из контекста или новый UUID.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
		return v
	}
	return NewRequestID()
}

// NewRequestID создает идентификатор запроса.
func NewRequestID() string {
	return uuid.NewString()
}

func buildAuditPayload(module, command string, args core.Args, errorCode string) []byte {
	body := map[string]interface{}{
		"module":  module,
		"command": command,
		"args":    args,
	}
	if errorCode != "" {
		body["error_code"] = errorCode
	}
	payload, _ := json.Marshal(body)
	return payload
}
