package lims

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"oilwatch-backend/internal/engine"
	"oilwatch-backend/internal/logger"
	"oilwatch-backend/internal/metrics"
)

// SampleWriter persists imported samples. Satisfied by
// *storage.Repository.
type SampleWriter interface {
	InsertSample(ctx context.Context, sample engine.Sample) error
}

// SampleNotifier is told about each imported sample so health and
// alerts catch up. Satisfied by *service.Service.
type SampleNotifier interface {
	HandleSampleCompleted(ctx context.Context, equipmentID, oilInstanceID string) error
}

// Importer periodically pulls lab results and folds them into the
// sample store. Each distinct sample ref becomes one completed sample.
type Importer struct {
	conn     Connector
	writer   SampleWriter
	notifier SampleNotifier
	since    time.Time
	log      zerolog.Logger
}

func NewImporter(conn Connector, writer SampleWriter, notifier SampleNotifier) *Importer {
	return &Importer{
		conn:     conn,
		writer:   writer,
		notifier: notifier,
		log:      logger.WithComponent("lims"),
	}
}

// Run imports on the given interval until ctx is cancelled. Errors are
// logged and retried on the next tick.
func (im *Importer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := im.Import(ctx); err != nil {
				im.log.Error().Err(err).Msg("lims import failed")
			}
		}
	}
}

// Import fetches results newer than the last watermark and returns the
// number of samples persisted. Malformed rows are skipped, not fatal.
func (im *Importer) Import(ctx context.Context) (int, error) {
	results, err := im.conn.FetchResults(ctx, im.since)
	if err != nil {
		return 0, fmt.Errorf("fetch lab results: %w", err)
	}
	samples, skipped := buildSamples(results)
	if skipped > 0 {
		im.log.Warn().Int("skipped", skipped).Msg("skipped malformed lab results")
	}

	imported := 0
	for _, sample := range samples {
		if err := im.writer.InsertSample(ctx, sample); err != nil {
			return imported, fmt.Errorf("persist sample %s: %w", sample.ID, err)
		}
		imported++
		if sample.Timestamp.After(im.since) {
			im.since = sample.Timestamp
		}
		if im.notifier != nil {
			if err := im.notifier.HandleSampleCompleted(ctx, sample.EquipmentID, sample.OilInstanceID); err != nil {
				im.log.Error().Err(err).
					Str("sample_id", sample.ID).
					Msg("post-import recompute failed")
			}
		}
	}
	metrics.LimsSamplesImported.Add(float64(imported))
	if imported > 0 {
		im.log.Info().Int("samples", imported).Msg("lab results imported")
	}
	return imported, nil
}

// buildSamples groups result rows by sample ref. The sample timestamp
// is the latest analyzed_at among its readings. The lab's sample ref is
// kept as the sample id so a re-import stays idempotent.
func buildSamples(results []LabResult) ([]engine.Sample, int) {
	grouped := map[string]*engine.Sample{}
	order := []string{}
	skipped := 0
	for _, r := range results {
		if !r.Valid() {
			skipped++
			continue
		}
		sample, ok := grouped[r.SampleRef]
		if !ok {
			sample = &engine.Sample{
				ID:            r.SampleRef,
				EquipmentID:   r.EquipmentID,
				OilInstanceID: r.OilInstanceID,
				OilTypeID:     r.OilTypeID,
				Timestamp:     r.AnalyzedAt,
				Source:        engine.SourceLab,
				Status:        engine.StatusCompleted,
			}
			grouped[r.SampleRef] = sample
			order = append(order, r.SampleRef)
		}
		if r.AnalyzedAt.After(sample.Timestamp) {
			sample.Timestamp = r.AnalyzedAt
		}
		sample.Parameters = append(sample.Parameters, engine.ParameterReading{
			Name:  r.ParameterName,
			Value: r.Value,
			Unit:  r.Unit,
		})
	}
	samples := make([]engine.Sample, 0, len(order))
	for _, ref := range order {
		samples = append(samples, *grouped[ref])
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, skipped
}
