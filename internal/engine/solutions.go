package engine

import "fmt"

// FallbackSuggestion is returned when no remediation entry matches.
const FallbackSuggestion = "Investigate further"

// SolutionRule maps one breaching condition to its ordered remediation
// suggestions. OilType may be empty, which makes the entry apply to every
// oil type without a more specific match.
type SolutionRule struct {
	OilType       string
	ParameterName string
	Direction     Direction
	Severity      Severity
	Suggestions   []string
}

type solutionKey struct {
	oilType       string
	parameterName string
	direction     Direction
	severity      Severity
}

// SolutionCatalog is a read-only lookup table loaded once at startup.
type SolutionCatalog struct {
	entries map[solutionKey][]string
}

func NewSolutionCatalog(rules []SolutionRule) (*SolutionCatalog, error) {
	entries := map[solutionKey][]string{}
	for _, rule := range rules {
		if rule.ParameterName == "" {
			return nil, fmt.Errorf("solution rule: parameter name is required")
		}
		if len(rule.Suggestions) == 0 {
			return nil, fmt.Errorf("solution rule for %q: at least one suggestion is required", rule.ParameterName)
		}
		key := solutionKey{
			oilType:       rule.OilType,
			parameterName: rule.ParameterName,
			direction:     rule.Direction,
			severity:      rule.Severity,
		}
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("duplicate solution rule for %q (%s, %s)", rule.ParameterName, rule.Direction, rule.Severity)
		}
		entries[key] = rule.Suggestions
	}
	return &SolutionCatalog{entries: entries}, nil
}

// Suggest returns the ordered remediation list for a breach, preferring
// an oil-type-specific entry over a generic one. Unknown conditions get
// the generic fallback, never an empty list.
func (c *SolutionCatalog) Suggest(oilType, parameterName string, direction Direction, severity Severity) []string {
	if suggestions, ok := c.entries[solutionKey{oilType, parameterName, direction, severity}]; ok {
		return suggestions
	}
	if suggestions, ok := c.entries[solutionKey{"", parameterName, direction, severity}]; ok {
		return suggestions
	}
	return []string{FallbackSuggestion}
}
