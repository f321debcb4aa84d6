package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

// RoutePlanner handles the template-time flows: optimizing a template's
// prototype stop order and cloning templates into per-day instances.
// Template optimization runs off the request path in practice; it may
// make one provider call per stop for large templates.
type RoutePlanner struct {
	repo      ports.RouteRepository
	optimizer *RouteOptimizer
	newID     func() string
}

func NewRoutePlanner(repo ports.RouteRepository, optimizer *RouteOptimizer) *RoutePlanner {
	return &RoutePlanner{
		repo:      repo,
		optimizer: optimizer,
		newID:     uuid.NewString,
	}
}

// OptimizeTemplate reorders the template's prototype stops and refreshes
// its distance/duration estimates. The stored template is updated in
// place; existing instances keep their own cloned stops.
func (p *RoutePlanner) OptimizeTemplate(ctx context.Context, templateID string) (*domain.RouteTemplate, error) {
	tpl, err := p.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("optimize template %s: %w", templateID, err)
	}

	candidates := make([]StopCandidate, 0, len(tpl.Stops))
	for i, ts := range tpl.Stops {
		// Prototype stops have no persistent id of their own; the index
		// is a stable key within this call.
		candidates = append(candidates, StopCandidate{ID: fmt.Sprintf("%d", i), Point: ts.Point})
	}

	result, err := p.optimizer.Optimize(ctx, tpl.StartPoint, tpl.EndPoint, candidates)
	if err != nil {
		return nil, fmt.Errorf("optimize template %s: %w", templateID, err)
	}

	reordered := make([]domain.TemplateStop, 0, len(tpl.Stops))
	for _, key := range result.Order {
		var idx int
		if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(tpl.Stops) {
			return nil, fmt.Errorf("optimize template %s: bad candidate key %q", templateID, key)
		}
		reordered = append(reordered, tpl.Stops[idx])
	}
	tpl.Stops = reordered
	tpl.EstimatedDistanceMeters = result.TotalDistanceMeters
	tpl.EstimatedDurationSeconds = result.TotalDurationSeconds

	if err := p.repo.SaveTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("optimize template %s: save: %w", templateID, err)
	}
	return tpl, nil
}

// CreateInstance clones the template's stops into a scheduled instance
// for one calendar day and persists it.
func (p *RoutePlanner) CreateInstance(ctx context.Context, templateID string, date time.Time) (*domain.RouteInstance, error) {
	tpl, err := p.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("create instance: template %s: %w", templateID, err)
	}

	inst := domain.NewInstanceFromTemplate(p.newID(), tpl, date, p.newID)
	if err := p.repo.SaveInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("create instance: save: %w", err)
	}
	return inst, nil
}
