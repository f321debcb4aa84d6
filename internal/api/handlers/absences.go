package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"school-route-service/internal/api/dto"
	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
	"school-route-service/internal/services"
)

// AbsenceHandler receives absence notifications from the attendance
// subsystem and triggers recalculation.
type AbsenceHandler struct {
	Queue        ports.AbsenceQueue
	Recalculator *services.RouteRecalculator
}

// Report enqueues an absence event and processes it immediately. The
// event lands in the queue first, so a crash mid-recalculation leaves
// it pending for the background poller instead of losing it.
func (h *AbsenceHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req dto.AbsenceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.StudentID == "" {
		writeError(w, r, http.StatusBadRequest, "student_id is required")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	scope, ok := parseScope(req.Scope)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "scope entries must be morning or afternoon")
		return
	}

	event := &domain.AbsenceEvent{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		Date:      date,
		Scope:     scope,
		Note:      req.Note,
		CreatedAt: time.Now(),
	}

	if err := h.Queue.Enqueue(r.Context(), event); err != nil {
		writeDomainError(w, r, err)
		return
	}

	report, err := h.Recalculator.RecalculateForAbsence(r.Context(), event)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.AbsenceResponse{
		EventID:                  event.ID,
		AffectedRouteInstanceIDs: report.AffectedRouteInstanceIDs,
		Recalculated:             report.Recalculated,
	})
}

// parseScope validates leg names; an empty scope means the full day.
func parseScope(raw []string) ([]domain.RouteLeg, bool) {
	if len(raw) == 0 {
		return []domain.RouteLeg{domain.LegMorning, domain.LegAfternoon}, true
	}

	scope := make([]domain.RouteLeg, 0, len(raw))
	for _, s := range raw {
		leg := domain.RouteLeg(s)
		if leg != domain.LegMorning && leg != domain.LegAfternoon {
			return nil, false
		}
		scope = append(scope, leg)
	}
	return scope, true
}
