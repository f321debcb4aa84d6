package handlers

import (
	"net/http"
	"time"

	"school-route-service/internal/api/dto"
	"school-route-service/internal/domain"
	"school-route-service/internal/services"
)

// LocationHandler ingests driver pings and exposes next-stop distance.
type LocationHandler struct {
	Monitor *services.GeofenceMonitor
}

// Update applies one driver ping and returns the geofence transitions
// it caused. A stale or out-of-window ping yields an empty transition
// set, not an error.
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.RouteInstanceID == "" {
		writeError(w, r, http.StatusBadRequest, "route_instance_id is required")
		return
	}

	recordedAt := time.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	result, err := h.Monitor.UpdatePosition(
		r.Context(),
		req.RouteInstanceID,
		domain.Point{Lat: req.Lat, Lng: req.Lng},
		recordedAt,
	)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.TransitionsResponse{
		RouteInstanceID: req.RouteInstanceID,
		Approaching:     emptyIfNil(result.Approaching),
		Arrived:         emptyIfNil(result.Arrived),
	})
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
