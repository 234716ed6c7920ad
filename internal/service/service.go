package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"oilwatch-backend/internal/engine"
	"oilwatch-backend/internal/logger"
	"oilwatch-backend/internal/metrics"
	"oilwatch-backend/internal/storage"
)

// Store is the persistence contract the service needs. Satisfied by
// *storage.Repository.
type Store interface {
	GetEquipment(ctx context.Context, id string) (*engine.Equipment, error)
	FetchCompletedSamples(ctx context.Context, equipmentID, oilInstanceID string) ([]engine.Sample, error)
	FetchActiveAlerts(ctx context.Context, equipmentID string) ([]engine.Alert, error)
	SaveHealth(ctx context.Context, equipmentID string, result engine.HealthResult) error
	InsertAlerts(ctx context.Context, alerts []engine.Alert) error
	LogEvent(ctx context.Context, equipmentID string, event engine.EquipmentEvent) error
	ReplaceOil(ctx context.Context, equipmentID, oilInstanceID, oilType string, now time.Time) (string, error)
}

// AlertPublisher fans newly emitted alerts out to delivery. Satisfied by
// *bus.Publisher.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []engine.Alert) error
}

type Config struct {
	Store      Store
	Publisher  AlertPublisher
	Thresholds *engine.ThresholdCatalog
	Solutions  *engine.SolutionCatalog
	Categories *engine.CategoryCatalog
	TrendTTL   time.Duration
	Clock      engine.Clock
}

// Service wires the pure engine to storage, the alert bus, and the trend
// cache, and serializes the read-modify-write cycle per equipment.
type Service struct {
	store      Store
	publisher  AlertPublisher
	thresholds *engine.ThresholdCatalog
	solutions  *engine.SolutionCatalog
	categories *engine.CategoryCatalog
	trendCache *engine.ResultCache
	clock      engine.Clock
	locks      *keyedMutex
	log        zerolog.Logger
}

func New(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = engine.SystemClock()
	}
	if cfg.TrendTTL <= 0 {
		cfg.TrendTTL = 5 * time.Minute
	}
	return &Service{
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		thresholds: cfg.Thresholds,
		solutions:  cfg.Solutions,
		categories: cfg.Categories,
		trendCache: engine.NewResultCache(cfg.TrendTTL, cfg.Clock),
		clock:      cfg.Clock,
		locks:      newKeyedMutex(),
		log:        logger.WithComponent("service"),
	}
}

// RecomputeHealth recomputes and persists health for one oil instance
// (or just the equipment aggregate when oilInstanceID is empty).
func (s *Service) RecomputeHealth(ctx context.Context, equipmentID, oilInstanceID string) (engine.HealthResult, error) {
	s.locks.Lock(equipmentID)
	defer s.locks.Unlock(equipmentID)
	return s.recomputeHealthLocked(ctx, equipmentID, oilInstanceID)
}

func (s *Service) recomputeHealthLocked(ctx context.Context, equipmentID, oilInstanceID string) (engine.HealthResult, error) {
	start := time.Now()
	result, err := s.doRecomputeHealth(ctx, equipmentID, oilInstanceID)
	metrics.HealthRecomputeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HealthRecomputeTotal.WithLabelValues("error").Inc()
		return engine.HealthResult{}, err
	}
	metrics.HealthRecomputeTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func (s *Service) doRecomputeHealth(ctx context.Context, equipmentID, oilInstanceID string) (engine.HealthResult, error) {
	eq, err := s.store.GetEquipment(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return engine.HealthResult{}, &engine.PreconditionError{Entity: "equipment", ID: equipmentID}
		}
		return engine.HealthResult{}, fmt.Errorf("load equipment %s: %w", equipmentID, err)
	}
	var samples []engine.Sample
	if oilInstanceID != "" {
		samples, err = s.store.FetchCompletedSamples(ctx, equipmentID, oilInstanceID)
		if err != nil {
			return engine.HealthResult{}, fmt.Errorf("load samples for %s: %w", oilInstanceID, err)
		}
	}
	result, err := engine.ComputeHealth(s.thresholds, eq, oilInstanceID, samples, s.clock.Now().UTC())
	if err != nil {
		return engine.HealthResult{}, err
	}
	if err := s.store.SaveHealth(ctx, equipmentID, result); err != nil {
		return engine.HealthResult{}, fmt.Errorf("persist health for %s: %w", equipmentID, err)
	}
	s.log.Info().
		Str("equipment_id", equipmentID).
		Str("oil_instance_id", oilInstanceID).
		Float64("equipment_health", result.EquipmentHealth).
		Msg("health recomputed")
	return result, nil
}

// EquipmentHealth returns the equipment with its currently persisted
// scores. No recompute happens here.
func (s *Service) EquipmentHealth(ctx context.Context, equipmentID string) (*engine.Equipment, error) {
	eq, err := s.store.GetEquipment(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &engine.PreconditionError{Entity: "equipment", ID: equipmentID}
		}
		return nil, fmt.Errorf("load equipment %s: %w", equipmentID, err)
	}
	return eq, nil
}

// RefreshAlerts evaluates the equipment's completed samples, persists
// newly emitted alerts, publishes them, and returns the full active list.
func (s *Service) RefreshAlerts(ctx context.Context, equipmentID string) ([]engine.Alert, error) {
	s.locks.Lock(equipmentID)
	defer s.locks.Unlock(equipmentID)
	return s.refreshAlertsLocked(ctx, equipmentID)
}

func (s *Service) refreshAlertsLocked(ctx context.Context, equipmentID string) ([]engine.Alert, error) {
	if _, err := s.store.GetEquipment(ctx, equipmentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &engine.PreconditionError{Entity: "equipment", ID: equipmentID}
		}
		return nil, fmt.Errorf("load equipment %s: %w", equipmentID, err)
	}
	samples, err := s.store.FetchCompletedSamples(ctx, equipmentID, "")
	if err != nil {
		return nil, fmt.Errorf("load samples for %s: %w", equipmentID, err)
	}
	existing, err := s.store.FetchActiveAlerts(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("load active alerts for %s: %w", equipmentID, err)
	}

	now := s.clock.Now().UTC()
	all := []engine.Alert{}
	emitted := []engine.Alert{}
	seen := map[string]bool{}
	for oilType, group := range samplesByOilType(samples) {
		alerts, fresh := engine.GenerateAlerts(s.thresholds, s.solutions, equipmentID, oilType, group, existing, now)
		freshIDs := map[string]bool{}
		for _, alert := range fresh {
			freshIDs[alert.ID] = true
		}
		// a parameter shared across oil-type groups must still resolve to
		// a single active alert per dedupe key
		for _, alert := range alerts {
			if seen[alert.DedupeKey] {
				continue
			}
			seen[alert.DedupeKey] = true
			all = append(all, alert)
			if freshIDs[alert.ID] {
				emitted = append(emitted, alert)
			}
		}
	}
	engine.SortAlerts(all)

	if len(emitted) > 0 {
		if err := s.store.InsertAlerts(ctx, emitted); err != nil {
			return nil, fmt.Errorf("persist alerts for %s: %w", equipmentID, err)
		}
		for _, alert := range emitted {
			metrics.AlertsEmittedTotal.WithLabelValues(string(alert.Severity)).Inc()
		}
		if s.publisher != nil {
			if err := s.publisher.PublishAlerts(ctx, emitted); err != nil {
				// delivery is best-effort; the alert rows are already persisted
				s.log.Error().Err(err).Str("equipment_id", equipmentID).Msg("alert publish failed")
			}
		}
	}
	metrics.AlertsReusedTotal.Add(float64(len(all) - len(emitted)))
	return all, nil
}

func samplesByOilType(samples []engine.Sample) map[string][]engine.Sample {
	groups := map[string][]engine.Sample{}
	for _, sample := range samples {
		groups[sample.OilTypeID] = append(groups[sample.OilTypeID], sample)
	}
	return groups
}

// EquipmentTrends builds (or serves from cache) the category-grouped
// trend series for an equipment.
func (s *Service) EquipmentTrends(ctx context.Context, equipmentID string) (map[string]engine.TrendSeries, error) {
	if _, err := s.store.GetEquipment(ctx, equipmentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &engine.PreconditionError{Entity: "equipment", ID: equipmentID}
		}
		return nil, fmt.Errorf("load equipment %s: %w", equipmentID, err)
	}
	samples, err := s.store.FetchCompletedSamples(ctx, equipmentID, "")
	if err != nil {
		return nil, fmt.Errorf("load samples for %s: %w", equipmentID, err)
	}
	oilType := ""
	if len(samples) > 0 {
		oilType = samples[0].OilTypeID
	}
	key := trendCacheKey(equipmentID, oilType, samples)
	if cached, ok := s.trendCache.Get(key); ok {
		metrics.TrendCacheHits.Inc()
		return cached.(map[string]engine.TrendSeries), nil
	}
	metrics.TrendCacheMisses.Inc()
	trends := engine.BuildTrends(samples, s.categories.GroupsFor(oilType))
	s.trendCache.Set(key, trends)
	return trends, nil
}

// trendCacheKey changes whenever the sample set changes, so a stale entry
// can only survive until the TTL after new data arrives.
func trendCacheKey(equipmentID, oilType string, samples []engine.Sample) string {
	latest := ""
	if len(samples) > 0 {
		latest = samples[0].ID
	}
	return fmt.Sprintf("trends:%s:%s:%s:%d", equipmentID, oilType, latest, len(samples))
}

// LogEvent records an equipment event and folds its health impact into
// the aggregate score.
func (s *Service) LogEvent(ctx context.Context, equipmentID string, event engine.EquipmentEvent) (engine.HealthResult, error) {
	s.locks.Lock(equipmentID)
	defer s.locks.Unlock(equipmentID)
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now().UTC()
	}
	if err := s.store.LogEvent(ctx, equipmentID, event); err != nil {
		return engine.HealthResult{}, fmt.Errorf("log event for %s: %w", equipmentID, err)
	}
	return s.recomputeHealthLocked(ctx, equipmentID, "")
}

// ReplaceOil ends one oil lifecycle, starts a fresh one, and recomputes
// the equipment aggregate. Returns the new oil instance id.
func (s *Service) ReplaceOil(ctx context.Context, equipmentID, oilInstanceID, oilType string) (string, engine.HealthResult, error) {
	s.locks.Lock(equipmentID)
	defer s.locks.Unlock(equipmentID)
	newID, err := s.store.ReplaceOil(ctx, equipmentID, oilInstanceID, oilType, s.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", engine.HealthResult{}, &engine.PreconditionError{Entity: "oil instance", ID: oilInstanceID}
		}
		return "", engine.HealthResult{}, fmt.Errorf("replace oil on %s: %w", equipmentID, err)
	}
	result, err := s.recomputeHealthLocked(ctx, equipmentID, "")
	if err != nil {
		return "", engine.HealthResult{}, err
	}
	return newID, result, nil
}

// HandleSampleCompleted is the ingest entry point: a finished measurement
// triggers a health recompute for its oil instance followed by an alert
// refresh, under one lock acquisition.
func (s *Service) HandleSampleCompleted(ctx context.Context, equipmentID, oilInstanceID string) error {
	s.locks.Lock(equipmentID)
	defer s.locks.Unlock(equipmentID)
	if _, err := s.recomputeHealthLocked(ctx, equipmentID, oilInstanceID); err != nil {
		return err
	}
	_, err := s.refreshAlertsLocked(ctx, equipmentID)
	return err
}
