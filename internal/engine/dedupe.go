package engine

// ReconcileResult splits a breach batch into conditions that need a new
// alert and prior alerts that stay active untouched.
type ReconcileResult struct {
	ToEmit  []Breach
	ToReuse []Alert
}

// Reconcile compares the current breach set against the active alerts for
// the same equipment. An unchanged condition reuses its prior alert; a
// condition whose severity or value moved supersedes it; a condition with
// no prior alert is emitted fresh. Prior alerts with no matching breach
// are left alone for the external resolution workflow.
func Reconcile(equipmentID string, breaches []Breach, existing []Alert) ReconcileResult {
	active := map[string]Alert{}
	for _, alert := range existing {
		active[alert.DedupeKey] = alert
	}
	result := ReconcileResult{}
	for _, breach := range breaches {
		key := DedupeKey(equipmentID, breach.ParameterName)
		prior, ok := active[key]
		if ok && prior.Severity == breach.Severity && prior.Value == breach.Value {
			result.ToReuse = append(result.ToReuse, prior)
			continue
		}
		result.ToEmit = append(result.ToEmit, breach)
	}
	return result
}
