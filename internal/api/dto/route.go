package dto

import "time"

type StopResponse struct {
	ID                     string     `json:"id"`
	StudentID              string     `json:"student_id"`
	Lat                    float64    `json:"lat"`
	Lng                    float64    `json:"lng"`
	Order                  int        `json:"order"`
	EstimatedOffsetSeconds int        `json:"estimated_offset_seconds"`
	GeofenceRadiusMeters   float64    `json:"geofence_radius_meters"`
	Status                 string     `json:"status"`
	ArrivedAt              *time.Time `json:"arrived_at,omitempty"`
}

type InstanceResponse struct {
	ID                   string         `json:"id"`
	TemplateID           string         `json:"template_id"`
	Leg                  string         `json:"leg"`
	Date                 string         `json:"date"`
	Status               string         `json:"status"`
	TotalDistanceMeters  int            `json:"total_distance_meters"`
	TotalDurationSeconds int            `json:"total_duration_seconds"`
	Stops                []StopResponse `json:"stops"`
}

type CreateInstanceRequest struct {
	Date string `json:"date"`
}

type TemplateResponse struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Leg                      string `json:"leg"`
	StopCount                int    `json:"stop_count"`
	EstimatedDistanceMeters  int    `json:"estimated_distance_meters"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds"`
}
