package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// GenerateAlerts runs the full notification pipeline for one equipment and
// oil type: evaluate the completed samples' readings (keeping the worst
// reading per parameter), reconcile against the active alerts, and attach
// remediation text to every newly emitted alert. The first return value is
// the finalized user-facing list, critical first then newest first; the
// second is the subset that is new and needs persisting.
func GenerateAlerts(thresholds *ThresholdCatalog, solutions *SolutionCatalog, equipmentID, oilType string, samples []Sample, existing []Alert, now time.Time) ([]Alert, []Alert) {
	readings := completedReadings(samples)
	if len(readings) == 0 {
		return []Alert{}, nil
	}
	breaches := Evaluate(thresholds.RulesFor(oilType), readings)
	reconciled := Reconcile(equipmentID, breaches, existing)

	emitted := make([]Alert, 0, len(reconciled.ToEmit))
	for _, breach := range reconciled.ToEmit {
		emitted = append(emitted, Alert{
			ID:            uuid.NewString(),
			EquipmentID:   equipmentID,
			ParameterName: breach.ParameterName,
			Severity:      breach.Severity,
			Value:         breach.Value,
			Unit:          breach.Unit,
			Message:       breachMessage(breach),
			Solutions:     solutions.Suggest(oilType, breach.ParameterName, breach.Direction, breach.Severity),
			CreatedAt:     now,
			DedupeKey:     DedupeKey(equipmentID, breach.ParameterName),
		})
	}

	alerts := append(append([]Alert{}, reconciled.ToReuse...), emitted...)
	SortAlerts(alerts)
	return alerts, emitted
}

// SortAlerts orders a list critical-first, then newest-first, with the
// parameter name as a stable tiebreak.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity == SeverityCritical
		}
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ParameterName < alerts[j].ParameterName
	})
}

func completedReadings(samples []Sample) []ParameterReading {
	var readings []ParameterReading
	for _, sample := range samples {
		if !sample.Completed() {
			continue
		}
		readings = append(readings, sample.Parameters...)
	}
	return readings
}

func breachMessage(breach Breach) string {
	direction := "above"
	if breach.Direction == DirectionTooLow {
		direction = "below"
	}
	return fmt.Sprintf("%s is %s its acceptable range: %g %s (%s)", breach.ParameterName, direction, breach.Value, breach.Unit, breach.Severity)
}
