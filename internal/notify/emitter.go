// internal/notify/emitter.go
package notify

import (
	"context"

	"placement-backend/internal/models"
)

// Emitter delivers notification events to users. Calls are fire-and-forget:
// the core never depends on delivery succeeding, so implementations log
// failures instead of returning them.
type Emitter interface {
	Emit(ctx context.Context, userID int64, notification models.Notification)
}

// NoOpEmitter discards every event. Useful in tests and in deployments that
// run without a notification backend.
type NoOpEmitter struct{}

func (NoOpEmitter) Emit(context.Context, int64, models.Notification) {}
