package storage

import (
	"context"
	"time"
)

// Статусы аудита сверх статусов конверта.
const (
	AuditDenied      = "denied"
	AuditRateLimited = "rate_limited"
	AuditDeclined    = "declined"
)

// AuditEvent фиксирует вызов инструмента: кто, откуда, что и с каким исходом.
type AuditEvent struct {
	Subject   string
	Action    string
	Source    string
	Status    string
	RequestID string
	Payload   []byte
	TS        time.Time
}

// AuditQuery задает фильтры выборки аудита.
type AuditQuery struct {
	From    time.Time
	To      time.Time
	Subject string
	Source  string
	Limit   int
}

// Store описывает операции хранилища.
type Store interface {
	SaveAudit(ctx context.Context, ev AuditEvent) error
	QueryAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
