package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

// RecalculationReport summarizes one absence's effect across route
// instances. The unit of work spans independent instances, so outcomes
// are reported rather than raised.
type RecalculationReport struct {
	AffectedRouteInstanceIDs []string
	Recalculated             bool
}

// RouteRecalculator reacts to absence events: it marks the student's
// stops absent and, for routes that have not yet started, strips the
// absent stops and re-optimizes the remaining path.
//
// Optimizer failure for one route never blocks absence marking or the
// other affected routes; it is logged and that route keeps its previous
// order.
type RouteRecalculator struct {
	repo      ports.RouteRepository
	queue     ports.AbsenceQueue
	optimizer *RouteOptimizer
	locks     *InstanceLocks
	now       func() time.Time
}

func NewRouteRecalculator(repo ports.RouteRepository, queue ports.AbsenceQueue, optimizer *RouteOptimizer, locks *InstanceLocks) *RouteRecalculator {
	return &RouteRecalculator{
		repo:      repo,
		queue:     queue,
		optimizer: optimizer,
		locks:     locks,
		now:       time.Now,
	}
}

// RecalculateForAbsence processes one absence event. Already processed
// events are a no-op. Finding no matching route is not an error: the
// student may simply have no stop that day.
func (r *RouteRecalculator) RecalculateForAbsence(
	ctx context.Context,
	event *domain.AbsenceEvent,
) (RecalculationReport, error) {
	report := RecalculationReport{AffectedRouteInstanceIDs: []string{}}

	if event.Processed() {
		return report, nil
	}

	instances, err := r.repo.FindInstancesForStudent(ctx, event.StudentID, event.Date, event.Scope)
	if err != nil {
		return report, fmt.Errorf("recalculate absence %s: find routes: %w", event.ID, err)
	}

	note := event.Note
	if note == "" {
		note = fmt.Sprintf("absent %s", event.Date.Format("2006-01-02"))
	}

	for _, inst := range instances {
		affected, recalculated := r.applyAbsence(ctx, inst, event.StudentID, note)
		if !affected {
			continue
		}
		report.AffectedRouteInstanceIDs = append(report.AffectedRouteInstanceIDs, inst.ID)
		if recalculated {
			report.Recalculated = true
		}
	}

	r.markProcessed(ctx, event)
	return report, nil
}

// applyAbsence marks one instance's stop absent and, for a scheduled
// route, re-optimizes the remainder. The instance's lock is held across
// mark, reoptimize and save, so an absence cannot interleave with
// geofence evaluation on the same route.
func (r *RouteRecalculator) applyAbsence(
	ctx context.Context,
	inst *domain.RouteInstance,
	studentID string,
	note string,
) (affected, recalculated bool) {
	lock := r.locks.get(inst.ID)
	lock.Lock()
	defer lock.Unlock()

	stop := inst.StopForStudent(studentID)
	if stop == nil {
		return false, false
	}

	// The absence is stamped regardless of route state.
	stop.MarkAbsent(note)

	// Re-ordering a moving vehicle's remaining stops is unsafe;
	// only not-yet-started routes are re-optimized.
	if inst.Status == domain.RouteStatusScheduled && r.reoptimize(ctx, inst) {
		recalculated = true
	}

	if err := r.repo.SaveInstance(ctx, inst); err != nil {
		log.Printf("op=recalculate route=%s err=%v", inst.ID, err)
	}
	return true, recalculated
}

// ProcessPending drains the absence queue, processing each pending
// event once. One failing event does not stop the rest.
func (r *RouteRecalculator) ProcessPending(ctx context.Context) (int, error) {
	events, err := r.queue.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("process pending absences: %w", err)
	}

	processed := 0
	for _, event := range events {
		if _, err := r.RecalculateForAbsence(ctx, event); err != nil {
			log.Printf("op=recalculate event=%s err=%v", event.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// reoptimize recomputes order and cumulative ETAs over the instance's
// remaining active stops. Returns false when nothing was recomputed.
func (r *RouteRecalculator) reoptimize(ctx context.Context, inst *domain.RouteInstance) bool {
	active := inst.ActiveStops()
	if len(active) == 0 {
		// Every stop was removed; calling the optimizer with nothing to
		// order would only clobber the instance totals.
		log.Printf("op=recalculate route=%s skipped=no_active_stops", inst.ID)
		return false
	}

	tpl, err := r.repo.GetTemplate(ctx, inst.TemplateID)
	if err != nil {
		log.Printf("op=recalculate route=%s template=%s err=%v", inst.ID, inst.TemplateID, err)
		return false
	}

	candidates := make([]StopCandidate, 0, len(active))
	for _, s := range active {
		candidates = append(candidates, StopCandidate{ID: s.ID, Point: s.Point})
	}

	result, err := r.optimizer.Optimize(ctx, tpl.StartPoint, tpl.EndPoint, candidates)
	if err != nil {
		log.Printf("op=recalculate route=%s optimize err=%v", inst.ID, err)
		return false
	}

	applyOptimizeResult(inst, result)
	return true
}

// markProcessed stamps the event consumed, in the queue and in memory.
func (r *RouteRecalculator) markProcessed(ctx context.Context, event *domain.AbsenceEvent) {
	if r.queue != nil {
		if err := r.queue.MarkProcessed(ctx, event.ID); err != nil {
			log.Printf("op=recalculate event=%s mark_processed err=%v", event.ID, err)
			return
		}
	}
	t := r.now()
	event.ProcessedAt = &t
}

// applyOptimizeResult overwrites the instance's stop order, per-stop
// ETAs, and totals from a fresh optimization. Stops outside the new
// path (absent, skipped) are renumbered after the active sequence so
// order values stay unique across the instance.
func applyOptimizeResult(inst *domain.RouteInstance, result *OptimizeResult) {
	offsets := result.OffsetSeconds()
	placed := make(map[string]struct{}, len(result.Order))
	for i, stopID := range result.Order {
		stop := inst.StopByID(stopID)
		if stop == nil {
			continue
		}
		stop.Order = i
		stop.EstimatedOffsetSeconds = offsets[stopID]
		placed[stopID] = struct{}{}
	}

	rest := make([]*domain.Stop, 0, len(inst.Stops)-len(placed))
	for _, stop := range inst.Stops {
		if _, ok := placed[stop.ID]; !ok {
			rest = append(rest, stop)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Order < rest[j].Order })
	for i, stop := range rest {
		stop.Order = len(result.Order) + i
	}

	inst.TotalDistanceMeters = result.TotalDistanceMeters
	inst.TotalDurationSeconds = result.TotalDurationSeconds
}
