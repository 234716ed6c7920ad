package engine

import (
	"math"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func waterMixableRules() map[string]ThresholdRule {
	return map[string]ThresholdRule{
		"pH": {
			OilType:       "water-mixable",
			ParameterName: "pH",
			Min:           fptr(6),
			Max:           fptr(8),
			CautionMin:    fptr(5),
			Unit:          "pH",
		},
		"Bacterial Count": {
			OilType:       "water-mixable",
			ParameterName: "Bacterial Count",
			Max:           fptr(5000),
			CautionMax:    fptr(10000),
			Unit:          "CFU/ml",
		},
	}
}

func TestEvaluateLowPHIsCaution(t *testing.T) {
	breaches := Evaluate(waterMixableRules(), []ParameterReading{{Name: "pH", Value: 5.5}})
	if len(breaches) != 1 {
		t.Fatalf("expected 1 breach got %d", len(breaches))
	}
	if breaches[0].Direction != DirectionTooLow {
		t.Fatalf("expected too_low got %s", breaches[0].Direction)
	}
	if breaches[0].Severity != SeverityCaution {
		t.Fatalf("expected caution got %s", breaches[0].Severity)
	}
}

func TestEvaluateVeryLowPHIsCritical(t *testing.T) {
	breaches := Evaluate(waterMixableRules(), []ParameterReading{{Name: "pH", Value: 4.5}})
	if len(breaches) != 1 {
		t.Fatalf("expected 1 breach got %d", len(breaches))
	}
	if breaches[0].Severity != SeverityCritical {
		t.Fatalf("expected critical got %s", breaches[0].Severity)
	}
}

func TestEvaluateHighBacterialCountIsCritical(t *testing.T) {
	breaches := Evaluate(waterMixableRules(), []ParameterReading{{Name: "Bacterial Count", Value: 12000}})
	if len(breaches) != 1 {
		t.Fatalf("expected 1 breach got %d", len(breaches))
	}
	if breaches[0].Direction != DirectionTooHigh {
		t.Fatalf("expected too_high got %s", breaches[0].Direction)
	}
	if breaches[0].Severity != SeverityCritical {
		t.Fatalf("expected critical got %s", breaches[0].Severity)
	}
	if breaches[0].Unit != "CFU/ml" {
		t.Fatalf("expected unit from rule got %q", breaches[0].Unit)
	}
}

func TestEvaluateHighWithoutCautionMaxIsCaution(t *testing.T) {
	rules := map[string]ThresholdRule{
		"Viscosity": {OilType: "hydraulic", ParameterName: "Viscosity", Max: fptr(50), Unit: "cSt"},
	}
	breaches := Evaluate(rules, []ParameterReading{{Name: "Viscosity", Value: 80}})
	if len(breaches) != 1 {
		t.Fatalf("expected 1 breach got %d", len(breaches))
	}
	if breaches[0].Severity != SeverityCaution {
		t.Fatalf("expected caution without caution bound got %s", breaches[0].Severity)
	}
}

func TestEvaluateSkipsUnruledParameters(t *testing.T) {
	breaches := Evaluate(waterMixableRules(), []ParameterReading{{Name: "Unknown", Value: 1e9}})
	if len(breaches) != 0 {
		t.Fatalf("expected no breaches got %d", len(breaches))
	}
}

func TestEvaluateSkipsNonFiniteValues(t *testing.T) {
	readings := []ParameterReading{
		{Name: "pH", Value: math.NaN()},
		{Name: "Bacterial Count", Value: math.Inf(1)},
	}
	if breaches := Evaluate(waterMixableRules(), readings); len(breaches) != 0 {
		t.Fatalf("expected no breaches got %d", len(breaches))
	}
}

func TestEvaluateInRangeEmitsNothing(t *testing.T) {
	readings := []ParameterReading{
		{Name: "pH", Value: 7},
		{Name: "Bacterial Count", Value: 4000},
	}
	if breaches := Evaluate(waterMixableRules(), readings); len(breaches) != 0 {
		t.Fatalf("expected no breaches got %d", len(breaches))
	}
}

func TestEvaluateKeepsWorstReadingPerParameter(t *testing.T) {
	readings := []ParameterReading{
		{Name: "Bacterial Count", Value: 6000},
		{Name: "Bacterial Count", Value: 12000},
		{Name: "Bacterial Count", Value: 7000},
	}
	breaches := Evaluate(waterMixableRules(), readings)
	if len(breaches) != 1 {
		t.Fatalf("expected exactly one breach got %d", len(breaches))
	}
	if breaches[0].Value != 12000 {
		t.Fatalf("expected worst value 12000 got %v", breaches[0].Value)
	}
}
