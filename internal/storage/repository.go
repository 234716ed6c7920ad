package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"oilwatch-backend/internal/engine"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

// GetEquipment loads an equipment with its active oil instances and
// events. Soft-deleted instances are excluded.
func (r *Repository) GetEquipment(ctx context.Context, id string) (*engine.Equipment, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT id, health_score, last_health_update FROM equipment WHERE id=$1`, id)
	eq := &engine.Equipment{}
	if err := row.Scan(&eq.ID, &eq.HealthScore, &eq.LastHealthUpdate); err != nil {
		return nil, ErrNotFound
	}

	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id, equipment_id, oil_type, fill_date, health_score, last_health_update, deleted_at
		FROM oil_instances WHERE equipment_id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var instance engine.OilInstance
		if err := rows.Scan(&instance.ID, &instance.EquipmentID, &instance.OilTypeID, &instance.FillDate,
			&instance.HealthScore, &instance.LastHealthUpdate, &instance.DeletedAt); err != nil {
			return nil, err
		}
		eq.OilInstances = append(eq.OilInstances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	eventRows, err := r.Store.Pool.Query(ctx, `
		SELECT event_type, ts_utc, impact_on_health
		FROM equipment_events WHERE equipment_id=$1 ORDER BY ts_utc`, id)
	if err != nil {
		return nil, err
	}
	defer eventRows.Close()
	for eventRows.Next() {
		var event engine.EquipmentEvent
		if err := eventRows.Scan(&event.Type, &event.Timestamp, &event.ImpactOnHealth); err != nil {
			return nil, err
		}
		eq.Events = append(eq.Events, event)
	}
	return eq, eventRows.Err()
}

// FetchCompletedSamples returns completed, non-deleted samples for an
// equipment, most recent first, with their readings attached. Pass an
// empty oilInstanceID to fetch across all instances.
func (r *Repository) FetchCompletedSamples(ctx context.Context, equipmentID, oilInstanceID string) ([]engine.Sample, error) {
	query := `
		SELECT id, equipment_id, oil_instance_id, oil_type, ts_utc, source, status
		FROM samples
		WHERE equipment_id=$1 AND status='completed' AND deleted_at IS NULL`
	args := []any{equipmentID}
	if oilInstanceID != "" {
		query += ` AND oil_instance_id=$2`
		args = append(args, oilInstanceID)
	}
	query += ` ORDER BY ts_utc DESC`

	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	samples := []engine.Sample{}
	ids := []string{}
	for rows.Next() {
		var sample engine.Sample
		var source, status string
		if err := rows.Scan(&sample.ID, &sample.EquipmentID, &sample.OilInstanceID, &sample.OilTypeID,
			&sample.Timestamp, &source, &status); err != nil {
			return nil, err
		}
		sample.Source = engine.SampleSource(source)
		sample.Status = engine.SampleStatus(status)
		samples = append(samples, sample)
		ids = append(ids, sample.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return samples, nil
	}

	readingRows, err := r.Store.Pool.Query(ctx, `
		SELECT sample_id, name, value, unit, category
		FROM sample_readings WHERE sample_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer readingRows.Close()
	bySample := map[string][]engine.ParameterReading{}
	for readingRows.Next() {
		var sampleID string
		var reading engine.ParameterReading
		if err := readingRows.Scan(&sampleID, &reading.Name, &reading.Value, &reading.Unit, &reading.Category); err != nil {
			return nil, err
		}
		bySample[sampleID] = append(bySample[sampleID], reading)
	}
	if err := readingRows.Err(); err != nil {
		return nil, err
	}
	for i := range samples {
		samples[i].Parameters = bySample[samples[i].ID]
	}
	return samples, nil
}

// FetchActiveAlerts returns the non-superseded alerts for an equipment.
func (r *Repository) FetchActiveAlerts(ctx context.Context, equipmentID string) ([]engine.Alert, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id, equipment_id, parameter_name, severity, value, unit, message, solutions, created_at, dedupe_key
		FROM alerts WHERE equipment_id=$1 AND superseded=false`, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alerts := []engine.Alert{}
	for rows.Next() {
		var alert engine.Alert
		var severity string
		if err := rows.Scan(&alert.ID, &alert.EquipmentID, &alert.ParameterName, &severity, &alert.Value,
			&alert.Unit, &alert.Message, &alert.Solutions, &alert.CreatedAt, &alert.DedupeKey); err != nil {
			return nil, err
		}
		alert.Severity = engine.Severity(severity)
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// InsertAlerts persists newly emitted alerts. Any prior alert with the
// same dedupe key is marked superseded in the same transaction, so the
// one-active-alert-per-key invariant holds even if a race slipped past
// the per-equipment serialization.
func (r *Repository) InsertAlerts(ctx context.Context, alerts []engine.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, alert := range alerts {
		if _, err := tx.Exec(ctx, `
			UPDATE alerts SET superseded=true WHERE dedupe_key=$1 AND superseded=false`, alert.DedupeKey); err != nil {
			return fmt.Errorf("supersede alert %s: %w", alert.DedupeKey, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO alerts (id, equipment_id, parameter_name, severity, value, unit, message, solutions, created_at, dedupe_key, superseded)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false)`,
			alert.ID, alert.EquipmentID, alert.ParameterName, string(alert.Severity), alert.Value,
			alert.Unit, alert.Message, alert.Solutions, alert.CreatedAt, alert.DedupeKey); err != nil {
			return fmt.Errorf("insert alert %s: %w", alert.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveHealth persists a recompute result transactionally.
func (r *Repository) SaveHealth(ctx context.Context, equipmentID string, result engine.HealthResult) error {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if result.OilInstanceID != "" {
		if _, err := tx.Exec(ctx, `
			UPDATE oil_instances SET health_score=$1, last_health_update=$2 WHERE id=$3`,
			result.OilHealth, result.ComputedAt, result.OilInstanceID); err != nil {
			return fmt.Errorf("update oil instance health: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE equipment SET health_score=$1, last_health_update=$2 WHERE id=$3`,
		result.EquipmentHealth, result.ComputedAt, equipmentID); err != nil {
		return fmt.Errorf("update equipment health: %w", err)
	}
	return tx.Commit(ctx)
}

// LogEvent appends an equipment event.
func (r *Repository) LogEvent(ctx context.Context, equipmentID string, event engine.EquipmentEvent) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO equipment_events (equipment_id, event_type, ts_utc, impact_on_health)
		VALUES ($1,$2,$3,$4)`, equipmentID, event.Type, event.Timestamp, event.ImpactOnHealth)
	return err
}

// ReplaceOil soft-deletes the given oil instance and creates a fresh one
// of the requested oil type, in one transaction. Returns the new id.
func (r *Repository) ReplaceOil(ctx context.Context, equipmentID, oilInstanceID, oilType string, now time.Time) (string, error) {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)
	tag, err := tx.Exec(ctx, `
		UPDATE oil_instances SET deleted_at=$1 WHERE id=$2 AND equipment_id=$3 AND deleted_at IS NULL`,
		now, oilInstanceID, equipmentID)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	newID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO oil_instances (id, equipment_id, oil_type, fill_date, health_score)
		VALUES ($1,$2,$3,$4,100)`, newID, equipmentID, oilType, now); err != nil {
		return "", err
	}
	return newID, tx.Commit(ctx)
}

// InsertSample persists an imported sample with its readings.
func (r *Repository) InsertSample(ctx context.Context, sample engine.Sample) error {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `
		INSERT INTO samples (id, equipment_id, oil_instance_id, oil_type, ts_utc, source, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		sample.ID, sample.EquipmentID, sample.OilInstanceID, sample.OilTypeID,
		sample.Timestamp, string(sample.Source), string(sample.Status)); err != nil {
		return fmt.Errorf("insert sample %s: %w", sample.ID, err)
	}
	for _, reading := range sample.Parameters {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sample_readings (sample_id, name, value, unit, category)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (sample_id, name) DO NOTHING`,
			sample.ID, reading.Name, reading.Value, reading.Unit, reading.Category); err != nil {
			return fmt.Errorf("insert reading %s/%s: %w", sample.ID, reading.Name, err)
		}
	}
	return tx.Commit(ctx)
}
