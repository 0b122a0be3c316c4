package storage

import (
	"context"
	"log/slog"
)

// AuditWriter позволяет использовать Store как AuditSink.
type AuditWriter interface {
	Write(ctx context.Context, ev AuditEvent) error
}

// LogWriter пишет аудит в журнал, когда база недоступна.
type LogWriter struct {
	Logger *slog.Logger
}

func (w LogWriter) Write(ctx context.Context, ev AuditEvent) error {
	lg := w.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.InfoContext(ctx, "audit",
		"subject", ev.Subject,
		"action", ev.Action,
		"source", ev.Source,
		"status", ev.Status,
		"request_id", ev.RequestID,
		"payload", string(ev.Payload),
	)
	return nil
}
