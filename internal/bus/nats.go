package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"oilwatch-backend/internal/engine"
)

const alertSubject = "oilwatch.alerts"

// Publisher fans newly emitted alerts out to the notification-delivery
// subsystem over NATS.
type Publisher struct {
	Conn *nats.Conn
}

type alertEvent struct {
	ID            string   `json:"id"`
	EquipmentID   string   `json:"equipmentId"`
	ParameterName string   `json:"parameterName"`
	Severity      string   `json:"severity"`
	Value         float64  `json:"value"`
	Unit          string   `json:"unit"`
	Message       string   `json:"message"`
	Solutions     []string `json:"solutions"`
	CreatedAt     string   `json:"createdAt"`
	DedupeKey     string   `json:"dedupeKey"`
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) PublishAlerts(ctx context.Context, alerts []engine.Alert) error {
	for _, alert := range alerts {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(alertEvent{
			ID:            alert.ID,
			EquipmentID:   alert.EquipmentID,
			ParameterName: alert.ParameterName,
			Severity:      string(alert.Severity),
			Value:         alert.Value,
			Unit:          alert.Unit,
			Message:       alert.Message,
			Solutions:     alert.Solutions,
			CreatedAt:     alert.CreatedAt.UTC().Format(time.RFC3339),
			DedupeKey:     alert.DedupeKey,
		})
		if err != nil {
			return fmt.Errorf("marshal alert %s: %w", alert.ID, err)
		}
		if err := p.Conn.Publish(alertSubject, payload); err != nil {
			return fmt.Errorf("publish alert %s: %w", alert.ID, err)
		}
	}
	return nil
}
