package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"school-route-service/internal/domain"
)

// Postgres-backed pending-recalculation queue for absence events.
// Scope legs are stored comma-joined; the set is tiny and fixed.
type PostgresAbsenceQueue struct {
	DB *sql.DB
}

func NewPostgresAbsenceQueue(db *sql.DB) *PostgresAbsenceQueue {
	return &PostgresAbsenceQueue{DB: db}
}

func (q *PostgresAbsenceQueue) Enqueue(ctx context.Context, event *domain.AbsenceEvent) error {
	legs := make([]string, 0, len(event.Scope))
	for _, l := range event.Scope {
		legs = append(legs, string(l))
	}

	stmt := `
	INSERT INTO absence_events (id, student_id, date, scope, note, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING;
	`
	if _, err := q.DB.ExecContext(ctx, stmt,
		event.ID, event.StudentID, event.Date, strings.Join(legs, ","), event.Note, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("enqueue absence %s: %w", event.ID, err)
	}
	return nil
}

func (q *PostgresAbsenceQueue) ListPending(ctx context.Context) ([]*domain.AbsenceEvent, error) {
	stmt := `
	SELECT id, student_id, date, scope, note, created_at
	FROM absence_events
	WHERE processed_at IS NULL
	ORDER BY created_at;
	`

	rows, err := q.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list pending absences: %w", err)
	}
	defer rows.Close()

	var events []*domain.AbsenceEvent
	for rows.Next() {
		ev := &domain.AbsenceEvent{}
		var scope string
		if err := rows.Scan(&ev.ID, &ev.StudentID, &ev.Date, &scope, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("list pending absences: scan: %w", err)
		}
		for _, l := range strings.Split(scope, ",") {
			if l != "" {
				ev.Scope = append(ev.Scope, domain.RouteLeg(l))
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending absences: row iteration: %w", err)
	}
	return events, nil
}

func (q *PostgresAbsenceQueue) MarkProcessed(ctx context.Context, eventID string) error {
	stmt := `
	UPDATE absence_events
	SET processed_at = NOW()
	WHERE id = $1 AND processed_at IS NULL;
	`
	if _, err := q.DB.ExecContext(ctx, stmt, eventID); err != nil {
		return fmt.Errorf("mark absence %s processed: %w", eventID, err)
	}
	return nil
}
