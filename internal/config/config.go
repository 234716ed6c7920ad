package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"oilwatch-backend/internal/engine"
)

// CatalogFile is the on-disk shape of the threshold/solution/category
// reference data, loaded once at startup.
type CatalogFile struct {
	DefaultOilType string                  `yaml:"defaultOilType"`
	OilTypes       map[string]OilTypeEntry `yaml:"oilTypes"`
	Solutions      []SolutionEntry         `yaml:"solutions"`
}

type OilTypeEntry struct {
	Thresholds map[string]ThresholdEntry `yaml:"thresholds"`
	Categories map[string][]string       `yaml:"categories"`
}

type ThresholdEntry struct {
	Min        *float64 `yaml:"min"`
	Max        *float64 `yaml:"max"`
	CautionMin *float64 `yaml:"cautionMin"`
	CautionMax *float64 `yaml:"cautionMax"`
	Unit       string   `yaml:"unit"`
}

type SolutionEntry struct {
	OilType     string   `yaml:"oilType"`
	Parameter   string   `yaml:"parameter"`
	Direction   string   `yaml:"direction"`
	Severity    string   `yaml:"severity"`
	Suggestions []string `yaml:"suggestions"`
}

// Catalogs bundles the validated reference data the engine needs.
type Catalogs struct {
	Thresholds *engine.ThresholdCatalog
	Solutions  *engine.SolutionCatalog
	Categories *engine.CategoryCatalog
}

func LoadCatalogs(path string) (*Catalogs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return buildCatalogs(file)
}

func buildCatalogs(file CatalogFile) (*Catalogs, error) {
	if len(file.OilTypes) == 0 {
		return nil, fmt.Errorf("catalog file defines no oil types")
	}
	rules := []engine.ThresholdRule{}
	groups := map[string]map[string][]string{}
	for oilType, entry := range file.OilTypes {
		for parameter, threshold := range entry.Thresholds {
			rules = append(rules, engine.ThresholdRule{
				OilType:       oilType,
				ParameterName: parameter,
				Min:           threshold.Min,
				Max:           threshold.Max,
				CautionMin:    threshold.CautionMin,
				CautionMax:    threshold.CautionMax,
				Unit:          threshold.Unit,
			})
		}
		if len(entry.Categories) > 0 {
			groups[oilType] = entry.Categories
		}
	}
	thresholds, err := engine.NewThresholdCatalog(rules, file.DefaultOilType)
	if err != nil {
		return nil, fmt.Errorf("threshold catalog: %w", err)
	}

	solutionRules := make([]engine.SolutionRule, 0, len(file.Solutions))
	for _, entry := range file.Solutions {
		direction, err := parseDirection(entry.Direction)
		if err != nil {
			return nil, fmt.Errorf("solution for %q: %w", entry.Parameter, err)
		}
		severity, err := parseSeverity(entry.Severity)
		if err != nil {
			return nil, fmt.Errorf("solution for %q: %w", entry.Parameter, err)
		}
		solutionRules = append(solutionRules, engine.SolutionRule{
			OilType:       entry.OilType,
			ParameterName: entry.Parameter,
			Direction:     direction,
			Severity:      severity,
			Suggestions:   entry.Suggestions,
		})
	}
	solutions, err := engine.NewSolutionCatalog(solutionRules)
	if err != nil {
		return nil, fmt.Errorf("solution catalog: %w", err)
	}

	return &Catalogs{
		Thresholds: thresholds,
		Solutions:  solutions,
		Categories: engine.NewCategoryCatalog(groups, file.DefaultOilType),
	}, nil
}

func parseDirection(value string) (engine.Direction, error) {
	switch value {
	case "too_low":
		return engine.DirectionTooLow, nil
	case "too_high":
		return engine.DirectionTooHigh, nil
	default:
		return "", fmt.Errorf("unknown direction %q", value)
	}
}

func parseSeverity(value string) (engine.Severity, error) {
	switch value {
	case "caution":
		return engine.SeverityCaution, nil
	case "critical":
		return engine.SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}
