package engine

import (
	"math"
	"sort"
)

// Evaluate checks readings against the rule set for one oil type and
// returns at most one breach per parameter: the worst one, measured by
// distance past the bound in the breach's own direction. Parameters
// without a rule and non-finite values are skipped.
func Evaluate(rules map[string]ThresholdRule, readings []ParameterReading) []Breach {
	type candidate struct {
		breach   Breach
		distance float64
	}
	worst := map[string]candidate{}
	for _, reading := range readings {
		rule, ok := rules[reading.Name]
		if !ok {
			continue
		}
		if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
			continue
		}
		breach, distance, hit := evaluateReading(rule, reading)
		if !hit {
			continue
		}
		if prev, seen := worst[reading.Name]; !seen || distance > prev.distance {
			worst[reading.Name] = candidate{breach: breach, distance: distance}
		}
	}
	breaches := make([]Breach, 0, len(worst))
	for _, c := range worst {
		breaches = append(breaches, c.breach)
	}
	sort.Slice(breaches, func(i, j int) bool {
		return breaches[i].ParameterName < breaches[j].ParameterName
	})
	return breaches
}

func evaluateReading(rule ThresholdRule, reading ParameterReading) (Breach, float64, bool) {
	unit := rule.Unit
	if unit == "" {
		unit = reading.Unit
	}
	if rule.Min != nil && reading.Value < *rule.Min {
		severity := SeverityCaution
		if rule.CautionMin != nil && reading.Value < *rule.CautionMin {
			severity = SeverityCritical
		}
		breach := Breach{
			ParameterName: reading.Name,
			Value:         reading.Value,
			Unit:          unit,
			Direction:     DirectionTooLow,
			Severity:      severity,
		}
		return breach, *rule.Min - reading.Value, true
	}
	if rule.Max != nil && reading.Value > *rule.Max {
		severity := SeverityCaution
		if rule.CautionMax != nil && reading.Value > *rule.CautionMax {
			severity = SeverityCritical
		}
		breach := Breach{
			ParameterName: reading.Name,
			Value:         reading.Value,
			Unit:          unit,
			Direction:     DirectionTooHigh,
			Severity:      severity,
		}
		return breach, reading.Value - *rule.Max, true
	}
	return Breach{}, 0, false
}

// overshootRatio is the distance past the breached bound relative to the
// rule's acceptable span. Used by the health penalty.
func overshootRatio(rule ThresholdRule, value float64) float64 {
	span := ruleSpan(rule)
	if span <= 0 {
		return 0
	}
	if rule.Min != nil && value < *rule.Min {
		return (*rule.Min - value) / span
	}
	if rule.Max != nil && value > *rule.Max {
		return (value - *rule.Max) / span
	}
	return 0
}

func ruleSpan(rule ThresholdRule) float64 {
	switch {
	case rule.Min != nil && rule.Max != nil:
		return *rule.Max - *rule.Min
	case rule.Max != nil:
		return math.Abs(*rule.Max)
	case rule.Min != nil:
		return math.Abs(*rule.Min)
	default:
		return 0
	}
}
