package config

import (
	"os"
	"path/filepath"
	"testing"

	"oilwatch-backend/internal/engine"
)

const testCatalog = `
defaultOilType: water-mixable
oilTypes:
  water-mixable:
    thresholds:
      pH:
        min: 6
        max: 8
        cautionMin: 5
        unit: pH
      Bacterial Count:
        max: 5000
        cautionMax: 10000
        unit: CFU/ml
    categories:
      Chemistry:
        - pH
      Contamination:
        - Bacterial Count
solutions:
  - parameter: Bacterial Count
    direction: too_high
    severity: critical
    suggestions:
      - Check coolant filters
      - Apply biocide treatment
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalogs(t *testing.T) {
	catalogs, err := LoadCatalogs(writeCatalog(t, testCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule, ok := catalogs.Thresholds.Rule("water-mixable", "pH")
	if !ok {
		t.Fatalf("expected pH rule")
	}
	if rule.Min == nil || *rule.Min != 6 {
		t.Fatalf("unexpected rule %+v", rule)
	}
	suggestions := catalogs.Solutions.Suggest("water-mixable", "Bacterial Count", engine.DirectionTooHigh, engine.SeverityCritical)
	if len(suggestions) != 2 || suggestions[1] != "Apply biocide treatment" {
		t.Fatalf("unexpected suggestions %v", suggestions)
	}
	groups := catalogs.Categories.GroupsFor("water-mixable")
	if len(groups["Chemistry"]) != 1 || groups["Chemistry"][0] != "pH" {
		t.Fatalf("unexpected groups %v", groups)
	}
}

func TestLoadCatalogsRejectsUnknownDirection(t *testing.T) {
	broken := `
defaultOilType: water-mixable
oilTypes:
  water-mixable:
    thresholds:
      pH:
        min: 6
        max: 8
        unit: pH
solutions:
  - parameter: pH
    direction: sideways
    severity: caution
    suggestions: [check]
`
	if _, err := LoadCatalogs(writeCatalog(t, broken)); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestLoadCatalogsRejectsEmptyFile(t *testing.T) {
	if _, err := LoadCatalogs(writeCatalog(t, "oilTypes: {}")); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}
