package engine

import (
	"fmt"
)

// ThresholdCatalog holds the per-oil-type threshold rules. Loaded once at
// startup and read-only afterwards.
type ThresholdCatalog struct {
	defaultOilType string
	rules          map[string]map[string]ThresholdRule
}

func NewThresholdCatalog(rules []ThresholdRule, defaultOilType string) (*ThresholdCatalog, error) {
	catalog := &ThresholdCatalog{
		defaultOilType: defaultOilType,
		rules:          map[string]map[string]ThresholdRule{},
	}
	for _, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, err
		}
		byParam, ok := catalog.rules[rule.OilType]
		if !ok {
			byParam = map[string]ThresholdRule{}
			catalog.rules[rule.OilType] = byParam
		}
		if _, dup := byParam[rule.ParameterName]; dup {
			return nil, fmt.Errorf("duplicate threshold rule for %s/%s", rule.OilType, rule.ParameterName)
		}
		byParam[rule.ParameterName] = rule
	}
	if defaultOilType != "" {
		if _, ok := catalog.rules[defaultOilType]; !ok {
			return nil, fmt.Errorf("default oil type %q has no threshold rules", defaultOilType)
		}
	}
	return catalog, nil
}

func validateRule(rule ThresholdRule) error {
	if rule.OilType == "" {
		return fmt.Errorf("threshold rule for %q: oil type is required", rule.ParameterName)
	}
	if rule.ParameterName == "" {
		return fmt.Errorf("threshold rule for oil type %q: parameter name is required", rule.OilType)
	}
	if rule.Unit == "" {
		return fmt.Errorf("threshold rule %s/%s: unit is required", rule.OilType, rule.ParameterName)
	}
	if rule.Min == nil && rule.Max == nil {
		return fmt.Errorf("threshold rule %s/%s: at least one of min or max is required", rule.OilType, rule.ParameterName)
	}
	if rule.Min != nil && rule.Max != nil && *rule.Min >= *rule.Max {
		return fmt.Errorf("threshold rule %s/%s: min must be below max", rule.OilType, rule.ParameterName)
	}
	if rule.CautionMin != nil && rule.Min != nil && *rule.CautionMin > *rule.Min {
		return fmt.Errorf("threshold rule %s/%s: cautionMin must not exceed min", rule.OilType, rule.ParameterName)
	}
	if rule.CautionMax != nil && rule.Max != nil && *rule.CautionMax < *rule.Max {
		return fmt.Errorf("threshold rule %s/%s: cautionMax must not be below max", rule.OilType, rule.ParameterName)
	}
	return nil
}

// RulesFor returns the rule set for an oil type, falling back to the
// default oil type when none is configured.
func (c *ThresholdCatalog) RulesFor(oilType string) map[string]ThresholdRule {
	if byParam, ok := c.rules[oilType]; ok {
		return byParam
	}
	return c.rules[c.defaultOilType]
}

func (c *ThresholdCatalog) Rule(oilType, parameterName string) (ThresholdRule, bool) {
	rule, ok := c.RulesFor(oilType)[parameterName]
	return rule, ok
}

// CategoryCatalog groups parameter names into chartable categories per
// oil type.
type CategoryCatalog struct {
	defaultOilType string
	groups         map[string]map[string][]string
}

func NewCategoryCatalog(groups map[string]map[string][]string, defaultOilType string) *CategoryCatalog {
	if groups == nil {
		groups = map[string]map[string][]string{}
	}
	return &CategoryCatalog{defaultOilType: defaultOilType, groups: groups}
}

// GroupsFor returns category groupings for an oil type, falling back to
// the default oil type.
func (c *CategoryCatalog) GroupsFor(oilType string) map[string][]string {
	if byCategory, ok := c.groups[oilType]; ok {
		return byCategory
	}
	return c.groups[c.defaultOilType]
}
