package api

import (
	"net/http"

	"school-route-service/internal/api/handlers"
	"school-route-service/internal/ports"
	"school-route-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an
// http.Handler. This is the API composition root; handlers stay unaware
// of concrete adapters.
func NewRouter(
	repo ports.RouteRepository,
	queue ports.AbsenceQueue,
	monitor *services.GeofenceMonitor,
	planner *services.RoutePlanner,
	recalculator *services.RouteRecalculator,
) http.Handler {
	mux := http.NewServeMux()

	locationHandler := &handlers.LocationHandler{Monitor: monitor}
	absenceHandler := &handlers.AbsenceHandler{Queue: queue, Recalculator: recalculator}
	routeHandler := &handlers.RouteHandler{Repo: repo, Planner: planner, Monitor: monitor}

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("POST /locations", locationHandler.Update)
	mux.HandleFunc("POST /absences", absenceHandler.Report)
	mux.HandleFunc("POST /templates/{id}/optimize", routeHandler.OptimizeTemplate)
	mux.HandleFunc("POST /templates/{id}/instances", routeHandler.CreateInstance)
	mux.HandleFunc("GET /instances/{id}", routeHandler.GetInstance)
	mux.HandleFunc("GET /instances/{id}/next-stop", routeHandler.NextStop)

	return loggingMiddleware(mux)
}
