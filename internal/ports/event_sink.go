package ports

import "time"

// StopEventType distinguishes geofence transition notifications.
type StopEventType string

const (
	StopApproaching StopEventType = "stop_approaching"
	StopArrived     StopEventType = "stop_arrived"
)

// StopEvent is a geofence transition notification for downstream
// push/SMS/email delivery.
type StopEvent struct {
	Type            StopEventType
	RouteInstanceID string
	StopID          string
	StudentID       string
	DistanceMeters  float64
	At              time.Time
}

// EventSink receives stop transition events. Publish is fire-and-forget
// and must not block geofence evaluation.
type EventSink interface {
	Publish(event StopEvent)
}
