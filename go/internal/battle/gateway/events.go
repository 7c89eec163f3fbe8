package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
)

// BattleEvent represents the base structure for all messages sent to the renderer
type BattleEvent struct {
	ID        string          `json:"id"`        // Event UUID
	BattleID  string          `json:"battle_id"` // Battle UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of gateway event
type EventType string

const (
	EventTypeSnapshot        EventType = "Snapshot"
	EventTypeStateChanged    EventType = "StateChanged"
	EventTypeCommandRejected EventType = "CommandRejected"
	EventTypeBattleClosed    EventType = "BattleClosed"
)

// StateChangedPayload carries the renderer view after an update and the fields it touched.
type StateChangedPayload struct {
	State   StateView      `json:"state"`
	Changed []engine.Field `json:"changed"`
}

// CommandRejectedPayload explains why a client message had no effect.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func newEvent(battleID uuid.UUID, t EventType, payload any) (*BattleEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &BattleEvent{
		ID:        uuid.New().String(),
		BattleID:  battleID.String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}
