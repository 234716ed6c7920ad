package service

import (
	"context"
	"testing"
	"time"

	"oilwatch-backend/internal/engine"
	"oilwatch-backend/internal/storage"
)

type fakeStore struct {
	equipment    *engine.Equipment
	samples      []engine.Sample
	activeAlerts []engine.Alert

	savedHealth    []engine.HealthResult
	insertedAlerts []engine.Alert
	events         []engine.EquipmentEvent
	sampleFetches  int
}

func (f *fakeStore) GetEquipment(ctx context.Context, id string) (*engine.Equipment, error) {
	if f.equipment == nil || f.equipment.ID != id {
		return nil, storage.ErrNotFound
	}
	clone := *f.equipment
	clone.OilInstances = append([]engine.OilInstance{}, f.equipment.OilInstances...)
	clone.Events = append([]engine.EquipmentEvent{}, f.equipment.Events...)
	return &clone, nil
}

func (f *fakeStore) FetchCompletedSamples(ctx context.Context, equipmentID, oilInstanceID string) ([]engine.Sample, error) {
	f.sampleFetches++
	return f.samples, nil
}

func (f *fakeStore) FetchActiveAlerts(ctx context.Context, equipmentID string) ([]engine.Alert, error) {
	return f.activeAlerts, nil
}

func (f *fakeStore) SaveHealth(ctx context.Context, equipmentID string, result engine.HealthResult) error {
	f.savedHealth = append(f.savedHealth, result)
	return nil
}

func (f *fakeStore) InsertAlerts(ctx context.Context, alerts []engine.Alert) error {
	f.insertedAlerts = append(f.insertedAlerts, alerts...)
	return nil
}

func (f *fakeStore) LogEvent(ctx context.Context, equipmentID string, event engine.EquipmentEvent) error {
	f.events = append(f.events, event)
	f.equipment.Events = append(f.equipment.Events, event)
	return nil
}

func (f *fakeStore) ReplaceOil(ctx context.Context, equipmentID, oilInstanceID, oilType string, now time.Time) (string, error) {
	for i := range f.equipment.OilInstances {
		if f.equipment.OilInstances[i].ID == oilInstanceID {
			f.equipment.OilInstances[i].DeletedAt = &now
			f.equipment.OilInstances = append(f.equipment.OilInstances, engine.OilInstance{
				ID: "oil-new", EquipmentID: equipmentID, OilTypeID: oilType, FillDate: now, HealthScore: 100,
			})
			return "oil-new", nil
		}
	}
	return "", storage.ErrNotFound
}

type fakePublisher struct {
	published []engine.Alert
}

func (f *fakePublisher) PublishAlerts(ctx context.Context, alerts []engine.Alert) error {
	f.published = append(f.published, alerts...)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, store *fakeStore, publisher *fakePublisher, clock *fakeClock) *Service {
	t.Helper()
	thresholds, err := engine.NewThresholdCatalog([]engine.ThresholdRule{
		{OilType: "water-mixable", ParameterName: "pH", Min: f64(6), Max: f64(8), CautionMin: f64(5), Unit: "pH"},
		{OilType: "water-mixable", ParameterName: "Bacterial Count", Max: f64(5000), CautionMax: f64(10000), Unit: "CFU/ml"},
	}, "water-mixable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	solutions, err := engine.NewSolutionCatalog([]engine.SolutionRule{
		{ParameterName: "Bacterial Count", Direction: engine.DirectionTooHigh, Severity: engine.SeverityCritical,
			Suggestions: []string{"Check coolant filters", "Apply biocide treatment"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	categories := engine.NewCategoryCatalog(map[string]map[string][]string{
		"water-mixable": {"Contamination": {"Bacterial Count"}, "Chemistry": {"pH"}},
	}, "water-mixable")
	return New(Config{
		Store:      store,
		Publisher:  publisher,
		Thresholds: thresholds,
		Solutions:  solutions,
		Categories: categories,
		TrendTTL:   5 * time.Minute,
		Clock:      clock,
	})
}

func f64(v float64) *float64 { return &v }

func testEquipment() *engine.Equipment {
	return &engine.Equipment{
		ID: "eq-1",
		OilInstances: []engine.OilInstance{
			{ID: "oil-1", EquipmentID: "eq-1", OilTypeID: "water-mixable", HealthScore: 100},
		},
	}
}

func testSamples(ts time.Time) []engine.Sample {
	return []engine.Sample{{
		ID:            "s-1",
		EquipmentID:   "eq-1",
		OilInstanceID: "oil-1",
		OilTypeID:     "water-mixable",
		Timestamp:     ts,
		Source:        engine.SourceLab,
		Status:        engine.StatusCompleted,
		Parameters:    []engine.ParameterReading{{Name: "Bacterial Count", Value: 12000, Unit: "CFU/ml"}},
	}}
}

func TestHandleSampleCompletedPersistsAndPublishes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := &fakeStore{equipment: testEquipment(), samples: testSamples(clock.now.Add(-time.Hour))}
	publisher := &fakePublisher{}
	svc := newTestService(t, store, publisher, clock)

	if err := svc.HandleSampleCompleted(context.Background(), "eq-1", "oil-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.savedHealth) != 1 {
		t.Fatalf("expected health persisted got %d", len(store.savedHealth))
	}
	if store.savedHealth[0].OilHealth >= 100 {
		t.Fatalf("expected degraded oil health got %v", store.savedHealth[0].OilHealth)
	}
	if len(store.insertedAlerts) != 1 {
		t.Fatalf("expected one alert persisted got %d", len(store.insertedAlerts))
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one alert published got %d", len(publisher.published))
	}
	if publisher.published[0].Severity != engine.SeverityCritical {
		t.Fatalf("expected critical alert got %s", publisher.published[0].Severity)
	}
}

func TestRefreshAlertsReusesExistingWithoutRepublishing(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := &fakeStore{equipment: testEquipment(), samples: testSamples(clock.now.Add(-time.Hour))}
	publisher := &fakePublisher{}
	svc := newTestService(t, store, publisher, clock)

	first, err := svc.RefreshAlerts(context.Background(), "eq-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.activeAlerts = first
	clock.now = clock.now.Add(time.Minute)

	second, err := svc.RefreshAlerts(context.Background(), "eq-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 || second[0].ID != first[0].ID {
		t.Fatalf("expected prior alert reused")
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected no duplicate publish got %d", len(publisher.published))
	}
	if len(store.insertedAlerts) != 1 {
		t.Fatalf("expected no duplicate insert got %d", len(store.insertedAlerts))
	}
}

func TestRecomputeHealthMissingEquipment(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	svc := newTestService(t, &fakeStore{}, &fakePublisher{}, clock)
	_, err := svc.RecomputeHealth(context.Background(), "missing", "")
	if err == nil || !engine.IsPrecondition(err) {
		t.Fatalf("expected precondition error got %v", err)
	}
}

func TestLogEventFoldsImpactIntoHealth(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eq := testEquipment()
	eq.OilInstances[0].HealthScore = 60
	store := &fakeStore{equipment: eq}
	svc := newTestService(t, store, &fakePublisher{}, clock)

	result, err := svc.LogEvent(context.Background(), "eq-1", engine.EquipmentEvent{Type: "overheat", ImpactOnHealth: -20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EquipmentHealth != 52 {
		t.Fatalf("expected equipment health 52 got %v", result.EquipmentHealth)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected event persisted")
	}
}

func TestReplaceOilStartsFreshLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eq := testEquipment()
	eq.OilInstances[0].HealthScore = 40
	store := &fakeStore{equipment: eq}
	svc := newTestService(t, store, &fakePublisher{}, clock)

	newID, result, err := svc.ReplaceOil(context.Background(), "eq-1", "oil-1", "water-mixable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newID != "oil-new" {
		t.Fatalf("unexpected new id %s", newID)
	}
	// the old instance is soft-deleted, the new one starts at 100
	if result.EquipmentHealth != 90 {
		t.Fatalf("expected equipment health 90 got %v", result.EquipmentHealth)
	}
}

func TestEquipmentTrendsServedFromCache(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := &fakeStore{equipment: testEquipment(), samples: testSamples(clock.now.Add(-time.Hour))}
	svc := newTestService(t, store, &fakePublisher{}, clock)

	first, err := svc.EquipmentTrends(context.Background(), "eq-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one populated category got %d", len(first))
	}
	fetchesAfterFirst := store.sampleFetches

	if _, err := svc.EquipmentTrends(context.Background(), "eq-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.sampleFetches != fetchesAfterFirst+1 {
		t.Fatalf("expected one fetch to derive the cache key")
	}
	series := first["Contamination"]
	if len(series.Labels) != len(series.Datasets[0].Values) {
		t.Fatalf("expected aligned series")
	}
}
