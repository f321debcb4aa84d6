package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"school-route-service/internal/domain"
)

// Initialize the Postgres schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS route_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			leg TEXT NOT NULL,
			start_lat DOUBLE PRECISION NOT NULL,
			start_lng DOUBLE PRECISION NOT NULL,
			end_lat DOUBLE PRECISION NOT NULL,
			end_lng DOUBLE PRECISION NOT NULL,
			estimated_distance_meters INTEGER NOT NULL DEFAULT 0,
			estimated_duration_seconds INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS template_stops (
			template_id TEXT NOT NULL REFERENCES route_templates(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			student_id TEXT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			geofence_radius_meters DOUBLE PRECISION NOT NULL DEFAULT 50,
			PRIMARY KEY (template_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS route_instances (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES route_templates(id),
			leg TEXT NOT NULL,
			date DATE NOT NULL,
			status TEXT NOT NULL,
			current_lat DOUBLE PRECISION,
			current_lng DOUBLE PRECISION,
			position_recorded_at TIMESTAMPTZ,
			total_distance_meters INTEGER NOT NULL DEFAULT 0,
			total_duration_seconds INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS stops (
			id TEXT PRIMARY KEY,
			route_instance_id TEXT NOT NULL REFERENCES route_instances(id) ON DELETE CASCADE,
			student_id TEXT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			position INTEGER NOT NULL,
			estimated_offset_seconds INTEGER NOT NULL DEFAULT 0,
			geofence_radius_meters DOUBLE PRECISION NOT NULL DEFAULT 50,
			status TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			arrived_at TIMESTAMPTZ,
			picked_up_at TIMESTAMPTZ,
			dropped_off_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS absence_events (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			date DATE NOT NULL,
			scope TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stops_instance ON stops(route_instance_id);`,
		`CREATE INDEX IF NOT EXISTS idx_stops_student ON stops(student_id);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_date_leg ON route_instances(date, leg);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_status ON route_instances(status);`,
		`CREATE INDEX IF NOT EXISTS idx_absences_pending ON absence_events(created_at) WHERE processed_at IS NULL;`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

type templateStopSeed struct {
	StudentID            string  `json:"student_id"`
	Lat                  float64 `json:"lat"`
	Lng                  float64 `json:"lng"`
	GeofenceRadiusMeters float64 `json:"geofence_radius_meters"`
}

type templateSeed struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Leg      string             `json:"leg"`
	StartLat float64            `json:"start_lat"`
	StartLng float64            `json:"start_lng"`
	EndLat   float64            `json:"end_lat"`
	EndLng   float64            `json:"end_lng"`
	Stops    []templateStopSeed `json:"stops"`
}

// Populate route templates from a JSON seed file for local runs.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed templates: read %q: %w", jsonPath, err)
	}

	var seeds []templateSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("seed templates: parse %q: %w", jsonPath, err)
	}

	repo := NewPostgresRouteRepository(db)
	for _, seed := range seeds {
		tpl := &domain.RouteTemplate{
			ID:         seed.ID,
			Name:       seed.Name,
			Leg:        domain.RouteLeg(seed.Leg),
			StartPoint: domain.Point{Lat: seed.StartLat, Lng: seed.StartLng},
			EndPoint:   domain.Point{Lat: seed.EndLat, Lng: seed.EndLng},
		}
		for _, s := range seed.Stops {
			radius := s.GeofenceRadiusMeters
			if radius == 0 {
				radius = domain.DefaultGeofenceRadiusMeters
			}
			tpl.Stops = append(tpl.Stops, domain.TemplateStop{
				StudentID:            s.StudentID,
				Point:                domain.Point{Lat: s.Lat, Lng: s.Lng},
				GeofenceRadiusMeters: radius,
			})
		}
		if err := repo.SaveTemplate(context.Background(), tpl); err != nil {
			return fmt.Errorf("seed templates: %w", err)
		}
	}
	return nil
}
