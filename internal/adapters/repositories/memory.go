package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

// MemoryStore is an in-memory RouteRepository and AbsenceQueue, used by
// the services tests and runnable without external infrastructure.
// Entities are stored by reference: a SaveInstance after mutating a
// loaded instance is the durability point, mirroring the SQL adapters.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*domain.RouteTemplate
	instances map[string]*domain.RouteInstance
	absences  map[string]*domain.AbsenceEvent

	// SaveInstanceErr, when set, fails every SaveInstance call.
	// Lets tests exercise the hard-error path of the batch flush.
	SaveInstanceErr error
	SaveCalls       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*domain.RouteTemplate),
		instances: make(map[string]*domain.RouteInstance),
		absences:  make(map[string]*domain.AbsenceEvent),
	}
}

func (m *MemoryStore) GetTemplate(ctx context.Context, id string) (*domain.RouteTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("get template %s: %w", id, ports.ErrNotFound)
	}
	return tpl, nil
}

func (m *MemoryStore) SaveTemplate(ctx context.Context, tpl *domain.RouteTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.templates[tpl.ID] = tpl
	return nil
}

func (m *MemoryStore) GetInstance(ctx context.Context, id string) (*domain.RouteInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("get instance %s: %w", id, ports.ErrNotFound)
	}
	return inst, nil
}

func (m *MemoryStore) SaveInstance(ctx context.Context, inst *domain.RouteInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls++
	if m.SaveInstanceErr != nil {
		return m.SaveInstanceErr
	}
	m.instances[inst.ID] = inst
	return nil
}

func (m *MemoryStore) ListActiveInstances(ctx context.Context) ([]*domain.RouteInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*domain.RouteInstance
	for _, inst := range m.instances {
		if inst.Status == domain.RouteStatusInProgress {
			active = append(active, inst)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

func (m *MemoryStore) FindInstancesForStudent(
	ctx context.Context,
	studentID string,
	date time.Time,
	legs []domain.RouteLeg,
) ([]*domain.RouteInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	legSet := make(map[domain.RouteLeg]struct{}, len(legs))
	for _, l := range legs {
		legSet[l] = struct{}{}
	}

	var matched []*domain.RouteInstance
	for _, inst := range m.instances {
		if !sameDate(inst.Date, date) {
			continue
		}
		if _, ok := legSet[inst.Leg]; !ok {
			continue
		}
		if inst.StopForStudent(studentID) != nil {
			matched = append(matched, inst)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (m *MemoryStore) Enqueue(ctx context.Context, event *domain.AbsenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.absences[event.ID]; !ok {
		m.absences[event.ID] = event
	}
	return nil
}

func (m *MemoryStore) ListPending(ctx context.Context) ([]*domain.AbsenceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*domain.AbsenceEvent
	for _, ev := range m.absences {
		if !ev.Processed() {
			pending = append(pending, ev)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (m *MemoryStore) MarkProcessed(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.absences[eventID]
	if !ok || ev.Processed() {
		return nil
	}
	now := time.Now()
	ev.ProcessedAt = &now
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
