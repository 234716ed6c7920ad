package lims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Connector pulls finished lab results out of a LIMS database. The lab
// systems in the field run on different engines, so one implementation
// exists per driver.
type Connector interface {
	TestConnection(ctx context.Context) error

	// FetchResults returns every result row analyzed after since,
	// oldest first.
	FetchResults(ctx context.Context, since time.Time) ([]LabResult, error)

	Close() error
}

type ConnectionConfig struct {
	Type     string // mysql | postgres | mssql
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Table    string // results table, single unqualified identifier
}

// LabResult is one measured parameter of one lab sample.
type LabResult struct {
	SampleRef     string
	EquipmentID   string
	OilInstanceID string
	OilTypeID     string
	ParameterName string
	Value         float64
	Unit          string
	AnalyzedAt    time.Time
}

type baseConnector struct {
	cfg ConnectionConfig
	db  *sql.DB
}

func (b *baseConnector) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func validateTable(table string) error {
	if table == "" {
		return errors.New("results table is required")
	}
	if !identPattern.MatchString(table) {
		return fmt.Errorf("results table %q is invalid", table)
	}
	return nil
}

const resultColumns = "sample_ref, equipment_id, oil_instance_id, oil_type, parameter_name, value, unit, analyzed_at"

// fetchSince runs the shared results query with a driver-specific
// placeholder for the since bound.
func (b *baseConnector) fetchSince(ctx context.Context, placeholder string, since time.Time) ([]LabResult, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE analyzed_at > %s ORDER BY analyzed_at",
		resultColumns, b.cfg.Table, placeholder)
	rows, err := b.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query lab results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]LabResult, error) {
	results := []LabResult{}
	for rows.Next() {
		var r LabResult
		var value, analyzedAt any
		if err := rows.Scan(&r.SampleRef, &r.EquipmentID, &r.OilInstanceID, &r.OilTypeID,
			&r.ParameterName, &value, &r.Unit, &analyzedAt); err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("lab result %s has non-numeric value %v", r.SampleRef, value)
		}
		r.Value = f
		t, ok := toTime(analyzedAt)
		if !ok {
			return nil, fmt.Errorf("lab result %s has invalid analyzed_at %v", r.SampleRef, analyzedAt)
		}
		r.AnalyzedAt = t.UTC()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab results: %w", err)
	}
	return results, nil
}

// Valid reports whether the row carries everything the engine needs.
func (r LabResult) Valid() bool {
	return r.SampleRef != "" &&
		r.EquipmentID != "" &&
		r.OilInstanceID != "" &&
		r.ParameterName != "" &&
		!math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) &&
		!r.AnalyzedAt.IsZero()
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
