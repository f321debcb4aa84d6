package dto

type AbsenceRequest struct {
	StudentID string   `json:"student_id"`
	Date      string   `json:"date"`
	Scope     []string `json:"scope"`
	Note      string   `json:"note"`
}

type AbsenceResponse struct {
	EventID                  string   `json:"event_id"`
	AffectedRouteInstanceIDs []string `json:"affected_route_instance_ids"`
	Recalculated             bool     `json:"recalculated"`
}
