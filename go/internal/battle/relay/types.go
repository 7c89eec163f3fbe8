package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/events"
)

// Envelope is the wire shape of one published battle event
type Envelope struct {
	EventID   uuid.UUID        `json:"eventId"`
	EventType events.EventType `json:"eventType"`
	BattleID  uuid.UUID        `json:"battleId"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

// NewEnvelope wraps a derived event for battleID
func NewEnvelope(battleID uuid.UUID, ev events.Event, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: ev.Type,
		BattleID:  battleID,
		Timestamp: at.UTC(),
		Payload:   payload,
	}, nil
}

// Subject is the NATS subject an envelope is published on
func Subject(prefix string, env Envelope) string {
	return fmt.Sprintf("%s.battle.%s.%s", prefix, env.BattleID, env.EventType)
}

// Publisher delivers envelopes to the event bus
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}
