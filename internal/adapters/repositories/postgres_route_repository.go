package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"school-route-service/internal/domain"
	"school-route-service/internal/platform/obs"
	"school-route-service/internal/ports"
)

// Postgres-backed implementation of the RouteRepository port.
// Instance saves run in a single transaction so position, totals and
// stop mutations land all-or-none.
type PostgresRouteRepository struct {
	DB *sql.DB
}

func NewPostgresRouteRepository(db *sql.DB) *PostgresRouteRepository {
	return &PostgresRouteRepository{DB: db}
}

func (r *PostgresRouteRepository) GetTemplate(ctx context.Context, id string) (*domain.RouteTemplate, error) {
	q := `
	SELECT id, name, leg, start_lat, start_lng, end_lat, end_lng,
	       estimated_distance_meters, estimated_duration_seconds
	FROM route_templates
	WHERE id = $1;
	`

	tpl := &domain.RouteTemplate{}
	err := r.DB.QueryRowContext(ctx, q, id).Scan(
		&tpl.ID, &tpl.Name, &tpl.Leg,
		&tpl.StartPoint.Lat, &tpl.StartPoint.Lng,
		&tpl.EndPoint.Lat, &tpl.EndPoint.Lng,
		&tpl.EstimatedDistanceMeters, &tpl.EstimatedDurationSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get template %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}

	sq := `
	SELECT student_id, lat, lng, geofence_radius_meters
	FROM template_stops
	WHERE template_id = $1
	ORDER BY position;
	`
	rows, err := r.DB.QueryContext(ctx, sq, id)
	if err != nil {
		return nil, fmt.Errorf("get template %s: query stops: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts domain.TemplateStop
		if err := rows.Scan(&ts.StudentID, &ts.Point.Lat, &ts.Point.Lng, &ts.GeofenceRadiusMeters); err != nil {
			return nil, fmt.Errorf("get template %s: scan stop: %w", id, err)
		}
		tpl.Stops = append(tpl.Stops, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get template %s: row iteration: %w", id, err)
	}

	return tpl, nil
}

func (r *PostgresRouteRepository) SaveTemplate(ctx context.Context, tpl *domain.RouteTemplate) (err error) {
	defer obs.Time(ctx, "repo.SaveTemplate")(&err)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save template %s: begin tx: %w", tpl.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	q := `
	INSERT INTO route_templates
		(id, name, leg, start_lat, start_lng, end_lat, end_lng,
		 estimated_distance_meters, estimated_duration_seconds)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		leg = EXCLUDED.leg,
		start_lat = EXCLUDED.start_lat,
		start_lng = EXCLUDED.start_lng,
		end_lat = EXCLUDED.end_lat,
		end_lng = EXCLUDED.end_lng,
		estimated_distance_meters = EXCLUDED.estimated_distance_meters,
		estimated_duration_seconds = EXCLUDED.estimated_duration_seconds;
	`
	if _, err := tx.ExecContext(ctx, q,
		tpl.ID, tpl.Name, tpl.Leg,
		tpl.StartPoint.Lat, tpl.StartPoint.Lng,
		tpl.EndPoint.Lat, tpl.EndPoint.Lng,
		tpl.EstimatedDistanceMeters, tpl.EstimatedDurationSeconds,
	); err != nil {
		return fmt.Errorf("save template %s: upsert: %w", tpl.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_stops WHERE template_id = $1;`, tpl.ID); err != nil {
		return fmt.Errorf("save template %s: clear stops: %w", tpl.ID, err)
	}

	sq := `
	INSERT INTO template_stops (template_id, position, student_id, lat, lng, geofence_radius_meters)
	VALUES ($1, $2, $3, $4, $5, $6);
	`
	for i, ts := range tpl.Stops {
		if _, err := tx.ExecContext(ctx, sq, tpl.ID, i, ts.StudentID, ts.Point.Lat, ts.Point.Lng, ts.GeofenceRadiusMeters); err != nil {
			return fmt.Errorf("save template %s: insert stop #%d: %w", tpl.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save template %s: commit: %w", tpl.ID, err)
	}
	return nil
}

func (r *PostgresRouteRepository) GetInstance(ctx context.Context, id string) (*domain.RouteInstance, error) {
	q := `
	SELECT id, template_id, leg, date, status,
	       current_lat, current_lng, position_recorded_at,
	       total_distance_meters, total_duration_seconds,
	       started_at, completed_at
	FROM route_instances
	WHERE id = $1;
	`

	inst, err := scanInstance(r.DB.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get instance %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}

	if err := r.loadStops(ctx, inst); err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}
	return inst, nil
}

func (r *PostgresRouteRepository) SaveInstance(ctx context.Context, inst *domain.RouteInstance) (err error) {
	defer obs.Time(ctx, "repo.SaveInstance")(&err)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save instance %s: begin tx: %w", inst.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var curLat, curLng sql.NullFloat64
	if inst.CurrentPosition != nil {
		curLat = sql.NullFloat64{Float64: inst.CurrentPosition.Lat, Valid: true}
		curLng = sql.NullFloat64{Float64: inst.CurrentPosition.Lng, Valid: true}
	}

	q := `
	INSERT INTO route_instances
		(id, template_id, leg, date, status, current_lat, current_lng,
		 position_recorded_at, total_distance_meters, total_duration_seconds,
		 started_at, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		current_lat = EXCLUDED.current_lat,
		current_lng = EXCLUDED.current_lng,
		position_recorded_at = EXCLUDED.position_recorded_at,
		total_distance_meters = EXCLUDED.total_distance_meters,
		total_duration_seconds = EXCLUDED.total_duration_seconds,
		started_at = EXCLUDED.started_at,
		completed_at = EXCLUDED.completed_at;
	`
	if _, err := tx.ExecContext(ctx, q,
		inst.ID, inst.TemplateID, inst.Leg, inst.Date, inst.Status,
		curLat, curLng, nullTime(inst.PositionRecordedAt),
		inst.TotalDistanceMeters, inst.TotalDurationSeconds,
		nullTime(inst.StartedAt), nullTime(inst.CompletedAt),
	); err != nil {
		return fmt.Errorf("save instance %s: upsert: %w", inst.ID, err)
	}

	sq := `
	INSERT INTO stops
		(id, route_instance_id, student_id, lat, lng, position,
		 estimated_offset_seconds, geofence_radius_meters, status, note,
		 arrived_at, picked_up_at, dropped_off_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		position = EXCLUDED.position,
		estimated_offset_seconds = EXCLUDED.estimated_offset_seconds,
		status = EXCLUDED.status,
		note = EXCLUDED.note,
		arrived_at = EXCLUDED.arrived_at,
		picked_up_at = EXCLUDED.picked_up_at,
		dropped_off_at = EXCLUDED.dropped_off_at;
	`
	for _, s := range inst.Stops {
		if _, err := tx.ExecContext(ctx, sq,
			s.ID, inst.ID, s.StudentID, s.Point.Lat, s.Point.Lng, s.Order,
			s.EstimatedOffsetSeconds, s.GeofenceRadiusMeters, s.Status, s.Note,
			nullTime(s.ArrivedAt), nullTime(s.PickedUpAt), nullTime(s.DroppedOffAt),
		); err != nil {
			return fmt.Errorf("save instance %s: upsert stop %s: %w", inst.ID, s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save instance %s: commit: %w", inst.ID, err)
	}
	return nil
}

func (r *PostgresRouteRepository) ListActiveInstances(ctx context.Context) ([]*domain.RouteInstance, error) {
	q := `
	SELECT id, template_id, leg, date, status,
	       current_lat, current_lng, position_recorded_at,
	       total_distance_meters, total_duration_seconds,
	       started_at, completed_at
	FROM route_instances
	WHERE status = $1
	ORDER BY id;
	`

	rows, err := r.DB.QueryContext(ctx, q, domain.RouteStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("list active instances: %w", err)
	}
	defer rows.Close()

	instances, err := collectInstances(rows)
	if err != nil {
		return nil, fmt.Errorf("list active instances: %w", err)
	}

	for _, inst := range instances {
		if err := r.loadStops(ctx, inst); err != nil {
			return nil, fmt.Errorf("list active instances: %w", err)
		}
	}
	return instances, nil
}

func (r *PostgresRouteRepository) FindInstancesForStudent(
	ctx context.Context,
	studentID string,
	date time.Time,
	legs []domain.RouteLeg,
) ([]*domain.RouteInstance, error) {
	legNames := make([]string, 0, len(legs))
	for _, l := range legs {
		legNames = append(legNames, string(l))
	}

	q := `
	SELECT DISTINCT ri.id, ri.template_id, ri.leg, ri.date, ri.status,
	       ri.current_lat, ri.current_lng, ri.position_recorded_at,
	       ri.total_distance_meters, ri.total_duration_seconds,
	       ri.started_at, ri.completed_at
	FROM route_instances ri
	JOIN stops s ON s.route_instance_id = ri.id
	WHERE s.student_id = $1
	  AND ri.date = $2::date
	  AND ri.leg = ANY($3::text[])
	  AND s.status NOT IN ('skipped', 'absent')
	ORDER BY ri.id;
	`

	rows, err := r.DB.QueryContext(ctx, q, studentID, date, legNames)
	if err != nil {
		return nil, fmt.Errorf("find instances for student %s: %w", studentID, err)
	}
	defer rows.Close()

	instances, err := collectInstances(rows)
	if err != nil {
		return nil, fmt.Errorf("find instances for student %s: %w", studentID, err)
	}

	for _, inst := range instances {
		if err := r.loadStops(ctx, inst); err != nil {
			return nil, fmt.Errorf("find instances for student %s: %w", studentID, err)
		}
	}
	return instances, nil
}

func (r *PostgresRouteRepository) loadStops(ctx context.Context, inst *domain.RouteInstance) error {
	q := `
	SELECT id, student_id, lat, lng, position, estimated_offset_seconds,
	       geofence_radius_meters, status, note,
	       arrived_at, picked_up_at, dropped_off_at
	FROM stops
	WHERE route_instance_id = $1
	ORDER BY position;
	`

	rows, err := r.DB.QueryContext(ctx, q, inst.ID)
	if err != nil {
		return fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &domain.Stop{}
		var arrived, picked, dropped sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.StudentID, &s.Point.Lat, &s.Point.Lng, &s.Order,
			&s.EstimatedOffsetSeconds, &s.GeofenceRadiusMeters, &s.Status, &s.Note,
			&arrived, &picked, &dropped,
		); err != nil {
			return fmt.Errorf("scan stop: %w", err)
		}
		s.ArrivedAt = timePtr(arrived)
		s.PickedUpAt = timePtr(picked)
		s.DroppedOffAt = timePtr(dropped)
		inst.Stops = append(inst.Stops, s)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*domain.RouteInstance, error) {
	inst := &domain.RouteInstance{}
	var curLat, curLng sql.NullFloat64
	var posAt, started, completed sql.NullTime

	if err := row.Scan(
		&inst.ID, &inst.TemplateID, &inst.Leg, &inst.Date, &inst.Status,
		&curLat, &curLng, &posAt,
		&inst.TotalDistanceMeters, &inst.TotalDurationSeconds,
		&started, &completed,
	); err != nil {
		return nil, err
	}

	if curLat.Valid && curLng.Valid {
		inst.CurrentPosition = &domain.Point{Lat: curLat.Float64, Lng: curLng.Float64}
	}
	inst.PositionRecordedAt = timePtr(posAt)
	inst.StartedAt = timePtr(started)
	inst.CompletedAt = timePtr(completed)
	return inst, nil
}

func collectInstances(rows *sql.Rows) ([]*domain.RouteInstance, error) {
	var instances []*domain.RouteInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return instances, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
