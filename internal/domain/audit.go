package domain

import (
	"context"
	"time"
)

// AuditRecorder records the outcome of one service operation. Implementations
// must not block the request path.
type AuditRecorder interface {
	Record(ctx context.Context, operation string, durationMs float64, success bool, err error)
}

// AuditEvent is one recorded operation outcome.
type AuditEvent struct {
	ID         string
	Operation  string
	DurationMs float64
	Success    bool
	Error      string
	Timestamp  time.Time
}

// AuditRepository persists audit events.
type AuditRepository interface {
	CreateAuditEvent(ctx context.Context, event *AuditEvent) error
}
