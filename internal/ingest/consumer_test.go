package ingest

import (
	"testing"
)

func TestDecodeSampleCompleted(t *testing.T) {
	event, err := decodeSampleCompleted([]byte(`{"sampleId":"s-1","equipmentId":"eq-1","oilInstanceId":"oil-1","status":"completed"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EquipmentID != "eq-1" || event.OilInstanceID != "oil-1" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestDecodeSampleCompletedStatusOptional(t *testing.T) {
	if _, err := decodeSampleCompleted([]byte(`{"equipmentId":"eq-1","oilInstanceId":"oil-1"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeSampleCompletedRejectsPending(t *testing.T) {
	if _, err := decodeSampleCompleted([]byte(`{"equipmentId":"eq-1","oilInstanceId":"oil-1","status":"pending"}`)); err == nil {
		t.Fatalf("expected error for pending status")
	}
}

func TestDecodeSampleCompletedRejectsMissingIDs(t *testing.T) {
	cases := []string{
		`{"oilInstanceId":"oil-1"}`,
		`{"equipmentId":"eq-1"}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, err := decodeSampleCompleted([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestNewConsumerValidation(t *testing.T) {
	if _, err := NewConsumer(ConsumerConfig{Topic: "samples"}, nil); err == nil {
		t.Fatalf("expected error for missing brokers")
	}
	if _, err := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}}, nil); err == nil {
		t.Fatalf("expected error for missing topic")
	}
}
