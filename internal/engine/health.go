package engine

import "time"

const (
	cautionPenalty    = 10.0
	criticalPenalty   = 25.0
	overshootWeight   = 10.0
	maxOvershootBonus = 15.0
	oilHealthWeight   = 0.9
	eventImpactWeight = 0.1
	defaultOilHealth  = 100.0
)

// HealthResult carries the recomputed scores back to the caller, which
// persists them transactionally with the triggering mutation.
type HealthResult struct {
	OilInstanceID   string
	OilHealth       float64
	EquipmentHealth float64
	ComputedAt      time.Time
}

// ComputeHealth recomputes the health score of one oil instance (when
// oilInstanceID is non-empty) from its most recent completed sample, then
// re-derives the equipment aggregate. The equipment struct is updated
// in memory; persistence is the caller's job. A missing equipment or oil
// instance is a precondition failure; a missing sample is not, the
// instance simply has no degradation evidence yet.
func ComputeHealth(catalog *ThresholdCatalog, eq *Equipment, oilInstanceID string, samples []Sample, now time.Time) (HealthResult, error) {
	if eq == nil {
		return HealthResult{}, &PreconditionError{Entity: "equipment"}
	}
	result := HealthResult{OilInstanceID: oilInstanceID, ComputedAt: now}
	if oilInstanceID != "" {
		instance := findInstance(eq, oilInstanceID)
		if instance == nil {
			return HealthResult{}, &PreconditionError{Entity: "oil instance", ID: oilInstanceID}
		}
		rules := catalog.RulesFor(instance.OilTypeID)
		result.OilHealth = oilHealthFromSample(rules, latestCompleted(samples, oilInstanceID))
		instance.HealthScore = result.OilHealth
		instance.LastHealthUpdate = &result.ComputedAt
	}
	result.EquipmentHealth = equipmentHealth(eq)
	eq.HealthScore = result.EquipmentHealth
	eq.LastHealthUpdate = &result.ComputedAt
	return result, nil
}

func findInstance(eq *Equipment, oilInstanceID string) *OilInstance {
	for i := range eq.OilInstances {
		if eq.OilInstances[i].ID == oilInstanceID && eq.OilInstances[i].Active() {
			return &eq.OilInstances[i]
		}
	}
	return nil
}

func latestCompleted(samples []Sample, oilInstanceID string) *Sample {
	// samples arrive most-recent-first per the storage contract
	for i := range samples {
		if samples[i].OilInstanceID == oilInstanceID && samples[i].Completed() {
			return &samples[i]
		}
	}
	return nil
}

// oilHealthFromSample applies a deterministic penalty per breaching
// reading: a severity baseline plus a bonus proportional to how far the
// value sits past its bound, capped so a single runaway reading cannot
// zero the score on its own.
func oilHealthFromSample(rules map[string]ThresholdRule, sample *Sample) float64 {
	if sample == nil {
		return defaultOilHealth
	}
	health := defaultOilHealth
	for _, reading := range sample.Parameters {
		rule, ok := rules[reading.Name]
		if !ok {
			continue
		}
		breach, _, hit := evaluateReading(rule, reading)
		if !hit {
			continue
		}
		penalty := cautionPenalty
		if breach.Severity == SeverityCritical {
			penalty = criticalPenalty
		}
		bonus := overshootWeight * overshootRatio(rule, reading.Value)
		if bonus > maxOvershootBonus {
			bonus = maxOvershootBonus
		}
		health -= penalty + bonus
	}
	return Clamp(health, 0, 100)
}

func equipmentHealth(eq *Equipment) float64 {
	scores := make([]float64, 0, len(eq.OilInstances))
	for _, instance := range eq.OilInstances {
		if instance.Active() {
			scores = append(scores, instance.HealthScore)
		}
	}
	avgOilHealth := defaultOilHealth
	if len(scores) > 0 {
		avgOilHealth = Mean(scores)
	}
	impact := 0.0
	for _, event := range eq.Events {
		impact += event.ImpactOnHealth
	}
	return Clamp(oilHealthWeight*avgOilHealth+eventImpactWeight*impact, 0, 100)
}
