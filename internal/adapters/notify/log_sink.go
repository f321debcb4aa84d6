package notify

import (
	"log"

	"school-route-service/internal/ports"
)

// LogSink writes stop transition events to the process log. It stands in
// for the push/SMS/email notification pipeline; Publish never blocks
// beyond the log write.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Publish(event ports.StopEvent) {
	log.Printf(
		"[NOTIFY] %s route=%s stop=%s student=%s distance=%.0fm",
		event.Type, event.RouteInstanceID, event.StopID, event.StudentID, event.DistanceMeters,
	)
}
