package engine

import "time"

type SampleSource string

const (
	SourceLab    SampleSource = "lab"
	SourceSensor SampleSource = "sensor"
)

type SampleStatus string

const (
	StatusPending   SampleStatus = "pending"
	StatusSubmitted SampleStatus = "submitted"
	StatusCompleted SampleStatus = "completed"
)

type Severity string

const (
	SeverityCaution  Severity = "caution"
	SeverityCritical Severity = "critical"
)

type Direction string

const (
	DirectionTooLow  Direction = "too_low"
	DirectionTooHigh Direction = "too_high"
)

// ParameterReading is a single measured value inside a sample.
type ParameterReading struct {
	Name     string
	Value    float64
	Unit     string
	Category string
}

// Sample is one lab or sensor measurement of an oil instance. Completed
// samples are immutable apart from soft deletion.
type Sample struct {
	ID            string
	EquipmentID   string
	OilInstanceID string
	OilTypeID     string
	Timestamp     time.Time
	Source        SampleSource
	Status        SampleStatus
	Parameters    []ParameterReading
	DeletedAt     *time.Time
}

func (s Sample) Completed() bool {
	return s.Status == StatusCompleted && s.DeletedAt == nil
}

// OilInstance is one fill-to-replacement lifecycle of lubricant in a piece
// of equipment.
type OilInstance struct {
	ID               string
	EquipmentID      string
	OilTypeID        string
	FillDate         time.Time
	HealthScore      float64
	LastHealthUpdate *time.Time
	DeletedAt        *time.Time
}

func (o OilInstance) Active() bool {
	return o.DeletedAt == nil
}

type EquipmentEvent struct {
	Type           string
	Timestamp      time.Time
	ImpactOnHealth float64
}

type Equipment struct {
	ID               string
	OilInstances     []OilInstance
	Events           []EquipmentEvent
	HealthScore      float64
	LastHealthUpdate *time.Time
}

// ThresholdRule bounds one parameter for one oil type. Nil bounds are
// not enforced.
type ThresholdRule struct {
	OilType       string
	ParameterName string
	Min           *float64
	Max           *float64
	CautionMin    *float64
	CautionMax    *float64
	Unit          string
}

// Breach is a parameter reading outside its configured acceptable range.
type Breach struct {
	ParameterName string
	Value         float64
	Unit          string
	Direction     Direction
	Severity      Severity
}

// Alert is the user-facing record produced for a breach. At most one
// non-superseded alert exists per dedupe key.
type Alert struct {
	ID            string
	EquipmentID   string
	ParameterName string
	Severity      Severity
	Value         float64
	Unit          string
	Message       string
	Solutions     []string
	CreatedAt     time.Time
	DedupeKey     string
}

// DedupeKey is the identity used to collapse repeated breaches of the same
// condition into one active alert.
func DedupeKey(equipmentID, parameterName string) string {
	return equipmentID + ":" + parameterName
}

type TrendDataset struct {
	ParameterLabel string
	Unit           string
	Values         []*float64
}

// TrendSeries is a category-grouped, time-aligned set of parameter value
// arrays. Every dataset has exactly len(Labels) values; missing readings
// are nil, never omitted.
type TrendSeries struct {
	CategoryName string
	Labels       []string
	Datasets     []TrendDataset
}
