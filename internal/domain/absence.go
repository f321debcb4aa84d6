package domain

import "time"

// AbsenceEvent records that a student will not travel on a given date.
// Scope lists every leg affected: a full-day absence is one event
// carrying both legs. Events are consumed exactly once; ProcessedAt is
// set when the recalculator has handled the event.
type AbsenceEvent struct {
	ID          string
	StudentID   string
	Date        time.Time
	Scope       []RouteLeg
	Note        string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Processed reports whether the event has already been consumed.
func (e *AbsenceEvent) Processed() bool {
	return e.ProcessedAt != nil
}

// AffectsLeg reports whether the event's scope covers the given leg.
func (e *AbsenceEvent) AffectsLeg(leg RouteLeg) bool {
	for _, l := range e.Scope {
		if l == leg {
			return true
		}
	}
	return false
}
