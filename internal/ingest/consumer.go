package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"oilwatch-backend/internal/logger"
	"oilwatch-backend/internal/metrics"
)

// SampleHandler reacts to a lab sample reaching the completed state.
// Satisfied by *service.Service.
type SampleHandler interface {
	HandleSampleCompleted(ctx context.Context, equipmentID, oilInstanceID string) error
}

// sampleCompletedEvent is the wire shape produced by the lab pipeline
// when a sample's measurements are all in.
type sampleCompletedEvent struct {
	SampleID      string `json:"sampleId"`
	EquipmentID   string `json:"equipmentId"`
	OilInstanceID string `json:"oilInstanceId"`
	Status        string `json:"status"`
}

func decodeSampleCompleted(data []byte) (sampleCompletedEvent, error) {
	var event sampleCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return sampleCompletedEvent{}, fmt.Errorf("decode sample event: %w", err)
	}
	if event.EquipmentID == "" || event.OilInstanceID == "" {
		return sampleCompletedEvent{}, errors.New("sample event missing equipmentId or oilInstanceId")
	}
	if event.Status != "" && event.Status != "completed" {
		return sampleCompletedEvent{}, fmt.Errorf("sample event status %q is not completed", event.Status)
	}
	return event, nil
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Workers int
}

// Consumer reads sample-completed events and drives the recompute
// pipeline. Offsets are committed only after the handler returns, so a
// crash mid-recompute replays the event.
type Consumer struct {
	reader  *kafka.Reader
	handler SampleHandler
	workers int
	log     zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, handler SampleHandler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{
		reader:  reader,
		handler: handler,
		workers: cfg.Workers,
		log:     logger.WithComponent("ingest"),
	}, nil
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	msgs := make(chan kafka.Message)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgs {
				c.process(ctx, msg)
			}
		}()
	}

	var readErr error
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				readErr = err
			}
			break
		}
		select {
		case msgs <- msg:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(msgs)
	wg.Wait()
	return readErr
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IngestEventsTotal.WithLabelValues("panic").Inc()
			c.log.Error().Interface("panic", r).Msg("sample handler panicked")
		}
	}()

	event, err := decodeSampleCompleted(msg.Value)
	if err != nil {
		metrics.IngestEventsTotal.WithLabelValues("malformed").Inc()
		c.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed sample event")
		// malformed events are committed so they are not replayed forever
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error().Err(err).Msg("commit failed")
		}
		return
	}

	if err := c.handler.HandleSampleCompleted(ctx, event.EquipmentID, event.OilInstanceID); err != nil {
		metrics.IngestEventsTotal.WithLabelValues("error").Inc()
		c.log.Error().Err(err).
			Str("equipment_id", event.EquipmentID).
			Str("oil_instance_id", event.OilInstanceID).
			Msg("sample event handling failed")
		return
	}
	metrics.IngestEventsTotal.WithLabelValues("ok").Inc()
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Error().Err(err).Msg("commit failed")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
