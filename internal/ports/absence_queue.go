package ports

import (
	"context"

	"school-route-service/internal/domain"
)

// AbsenceQueue is the "pending recalculation" feed from the attendance
// subsystem. Events are enqueued by push handlers or upstream writers and
// drained by the recalculator.
type AbsenceQueue interface {
	Enqueue(ctx context.Context, event *domain.AbsenceEvent) error

	// ListPending returns unprocessed events, oldest first.
	ListPending(ctx context.Context) ([]*domain.AbsenceEvent, error)

	// MarkProcessed stamps the event consumed. Marking an already
	// processed event is a no-op.
	MarkProcessed(ctx context.Context, eventID string) error
}
