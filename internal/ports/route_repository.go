package ports

import (
	"context"
	"time"

	"school-route-service/internal/domain"
)

// RouteRepository is the persistence boundary for templates and
// instances. SaveInstance must flush the instance's position, totals and
// every stop mutation in a single transaction (all-or-none), per the
// engine's atomic write-back contract.
type RouteRepository interface {
	GetTemplate(ctx context.Context, id string) (*domain.RouteTemplate, error)
	SaveTemplate(ctx context.Context, tpl *domain.RouteTemplate) error

	GetInstance(ctx context.Context, id string) (*domain.RouteInstance, error)
	SaveInstance(ctx context.Context, inst *domain.RouteInstance) error

	// ListActiveInstances returns every instance currently in progress.
	ListActiveInstances(ctx context.Context) ([]*domain.RouteInstance, error)

	// FindInstancesForStudent returns the instances on date whose leg is
	// in legs and that carry an active stop for the student.
	FindInstancesForStudent(ctx context.Context, studentID string, date time.Time, legs []domain.RouteLeg) ([]*domain.RouteInstance, error)
}
