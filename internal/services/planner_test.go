package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"school-route-service/internal/adapters/mapping"
	"school-route-service/internal/adapters/repositories"
	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

func seedTemplate(t *testing.T, store *repositories.MemoryStore) *domain.RouteTemplate {
	t.Helper()
	tpl := &domain.RouteTemplate{
		ID:         "tpl-1",
		Name:       "Morning north loop",
		Leg:        domain.LegMorning,
		StartPoint: domain.Point{Lat: 0, Lng: 0},
		EndPoint:   domain.Point{Lat: 0, Lng: 0.03},
		Stops: []domain.TemplateStop{
			{StudentID: "s-a", Point: domain.Point{Lat: 0, Lng: 0.02}},
			{StudentID: "s-b", Point: domain.Point{Lat: 0, Lng: 0.01}, GeofenceRadiusMeters: 80},
		},
	}
	if err := store.SaveTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return tpl
}

func TestOptimizeTemplateReordersStops(t *testing.T) {
	store := repositories.NewMemoryStore()
	provider := mapping.NewStubProvider()
	provider.Optimized = &ports.OptimizedRoute{
		WaypointOrder: []int{1, 0},
		Legs: []ports.TravelEstimate{
			{DistanceMeters: 1200, DurationSeconds: 120},
			{DistanceMeters: 1200, DurationSeconds: 120},
			{DistanceMeters: 1200, DurationSeconds: 120},
		},
		TotalDistanceMeters:  3600,
		TotalDurationSeconds: 360,
	}
	planner := NewRoutePlanner(store, NewRouteOptimizer(provider))
	seedTemplate(t, store)

	tpl, err := planner.OptimizeTemplate(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("OptimizeTemplate: %v", err)
	}

	if tpl.Stops[0].StudentID != "s-b" || tpl.Stops[1].StudentID != "s-a" {
		t.Errorf("stop order = [%s, %s], want [s-b, s-a]",
			tpl.Stops[0].StudentID, tpl.Stops[1].StudentID)
	}
	if tpl.EstimatedDistanceMeters != 3600 || tpl.EstimatedDurationSeconds != 360 {
		t.Errorf("estimates = (%d, %d), want (3600, 360)",
			tpl.EstimatedDistanceMeters, tpl.EstimatedDurationSeconds)
	}

	stored, err := store.GetTemplate(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if stored.Stops[0].StudentID != "s-b" {
		t.Error("reordered template was not persisted")
	}
}

func TestOptimizeTemplateProviderFailure(t *testing.T) {
	store := repositories.NewMemoryStore()
	provider := mapping.NewStubProvider()
	provider.Err = errors.New("quota exceeded")
	planner := NewRoutePlanner(store, NewRouteOptimizer(provider))
	seedTemplate(t, store)

	if _, err := planner.OptimizeTemplate(context.Background(), "tpl-1"); err == nil {
		t.Fatal("expected error when the provider fails")
	}
}

func TestCreateInstanceClonesTemplate(t *testing.T) {
	store := repositories.NewMemoryStore()
	provider := mapping.NewStubProvider()
	planner := NewRoutePlanner(store, NewRouteOptimizer(provider))
	tpl := seedTemplate(t, store)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	inst, err := planner.CreateInstance(context.Background(), tpl.ID, date)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	if inst.Status != domain.RouteStatusScheduled || inst.TemplateID != tpl.ID {
		t.Errorf("instance status=%s template=%s", inst.Status, inst.TemplateID)
	}
	if len(inst.Stops) != 2 {
		t.Fatalf("cloned %d stops, want 2", len(inst.Stops))
	}
	for i, s := range inst.Stops {
		if s.Order != i {
			t.Errorf("Stops[%d].Order = %d, want %d", i, s.Order, i)
		}
		if s.Status != domain.StopStatusPending {
			t.Errorf("Stops[%d].Status = %s, want pending", i, s.Status)
		}
		if s.ID == "" {
			t.Errorf("Stops[%d] has no id", i)
		}
	}
	if inst.Stops[0].GeofenceRadiusMeters != domain.DefaultGeofenceRadiusMeters {
		t.Errorf("default radius = %v", inst.Stops[0].GeofenceRadiusMeters)
	}
	if inst.Stops[1].GeofenceRadiusMeters != 80 {
		t.Errorf("template radius override lost: %v", inst.Stops[1].GeofenceRadiusMeters)
	}

	if _, err := store.GetInstance(context.Background(), inst.ID); err != nil {
		t.Errorf("instance not persisted: %v", err)
	}
}

func TestCreateInstanceUnknownTemplate(t *testing.T) {
	store := repositories.NewMemoryStore()
	planner := NewRoutePlanner(store, NewRouteOptimizer(mapping.NewStubProvider()))

	_, err := planner.CreateInstance(context.Background(), "missing", time.Now())
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
