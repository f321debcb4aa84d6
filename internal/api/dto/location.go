package dto

import "time"

type LocationUpdateRequest struct {
	RouteInstanceID string     `json:"route_instance_id"`
	Lat             float64    `json:"lat"`
	Lng             float64    `json:"lng"`
	RecordedAt      *time.Time `json:"recorded_at"`
}

type TransitionsResponse struct {
	RouteInstanceID string   `json:"route_instance_id"`
	Approaching     []string `json:"approaching"`
	Arrived         []string `json:"arrived"`
}

type NextStopResponse struct {
	StopID         string  `json:"stop_id"`
	DistanceMeters float64 `json:"distance_meters"`
}
