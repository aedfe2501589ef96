package audit

import "context"

// NoopRecorder discards all events. Used when auditing is disabled.
type NoopRecorder struct{}

func (NoopRecorder) Record(ctx context.Context, operation string, durationMs float64, success bool, err error) {
}
