package handlers

import (
	"net/http"
	"time"

	"school-route-service/internal/api/dto"
	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
	"school-route-service/internal/services"
)

// RouteHandler exposes template optimization, instance creation, and
// instance progress queries.
type RouteHandler struct {
	Repo    ports.RouteRepository
	Planner *services.RoutePlanner
	Monitor *services.GeofenceMonitor
}

// OptimizeTemplate (re)orders a template's prototype stops. Template
// optimization is not latency-critical; large templates may hold the
// request for one provider call per stop.
func (h *RouteHandler) OptimizeTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tpl, err := h.Planner.OptimizeTemplate(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.TemplateResponse{
		ID:                       tpl.ID,
		Name:                     tpl.Name,
		Leg:                      string(tpl.Leg),
		StopCount:                len(tpl.Stops),
		EstimatedDistanceMeters:  tpl.EstimatedDistanceMeters,
		EstimatedDurationSeconds: tpl.EstimatedDurationSeconds,
	})
}

// CreateInstance clones a template into a scheduled instance for one
// calendar day.
func (h *RouteHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req dto.CreateInstanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	inst, err := h.Planner.CreateInstance(r.Context(), id, date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, instanceResponse(inst))
}

// GetInstance returns an instance with its stops and progress.
func (h *RouteHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Repo.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, instanceResponse(inst))
}

// NextStop reports the distance to the next unresolved stop, or null
// when the route has no fix or nothing left to visit.
func (h *RouteHandler) NextStop(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Repo.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	next := h.Monitor.DistanceToNextStop(inst)
	if next == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{"next_stop": nil})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"next_stop": dto.NextStopResponse{
		StopID:         next.StopID,
		DistanceMeters: next.DistanceMeters,
	}})
}

func instanceResponse(inst *domain.RouteInstance) dto.InstanceResponse {
	res := dto.InstanceResponse{
		ID:                   inst.ID,
		TemplateID:           inst.TemplateID,
		Leg:                  string(inst.Leg),
		Date:                 inst.Date.Format("2006-01-02"),
		Status:               string(inst.Status),
		TotalDistanceMeters:  inst.TotalDistanceMeters,
		TotalDurationSeconds: inst.TotalDurationSeconds,
		Stops:                make([]dto.StopResponse, 0, len(inst.Stops)),
	}
	for _, s := range inst.Stops {
		res.Stops = append(res.Stops, dto.StopResponse{
			ID:                     s.ID,
			StudentID:              s.StudentID,
			Lat:                    s.Point.Lat,
			Lng:                    s.Point.Lng,
			Order:                  s.Order,
			EstimatedOffsetSeconds: s.EstimatedOffsetSeconds,
			GeofenceRadiusMeters:   s.GeofenceRadiusMeters,
			Status:                 string(s.Status),
			ArrivedAt:              s.ArrivedAt,
		})
	}
	return res
}
