package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/registry"
	"github.com/rs/zerolog/log"
)

// Client message types accepted over the WebSocket
const (
	CommandSelectAnswer      = "select_answer"
	CommandNewGame           = "new_game"
	CommandConfigureOpponent = "configure_opponent"
)

// ClientMessage is a command sent by the renderer
type ClientMessage struct {
	Type     string                 `json:"type"`
	Option   *int                   `json:"option,omitempty"`
	Opponent *engine.OpponentConfig `json:"opponent,omitempty"`
}

// EngineLookup resolves a battle ID to its engine.
type EngineLookup interface {
	Get(id uuid.UUID) (*engine.Engine, error)
}

// commandRunner executes renderer commands against the registry. State changes reach the
// renderer through the battle's broadcast, so only rejections are replied to directly.
type commandRunner struct {
	battles EngineLookup
}

func (r *commandRunner) HandleCommand(ctx context.Context, battleID uuid.UUID, msg ClientMessage) *BattleEvent {
	e, err := r.battles.Get(battleID)
	if err != nil {
		if errors.Is(err, registry.ErrBattleNotFound) {
			return rejected(battleID, msg.Type, "battle not found")
		}
		return rejected(battleID, msg.Type, err.Error())
	}

	switch msg.Type {
	case CommandSelectAnswer:
		if msg.Option == nil {
			return rejected(battleID, msg.Type, "option is required")
		}
		if !e.SelectAnswer(engine.SidePlayer, *msg.Option) {
			return rejected(battleID, msg.Type, "selection not accepted")
		}
	case CommandNewGame:
		if err := e.StartNewGame(ctx); err != nil {
			return rejected(battleID, msg.Type, err.Error())
		}
	case CommandConfigureOpponent:
		if msg.Opponent == nil {
			return rejected(battleID, msg.Type, "opponent is required")
		}
		if err := msg.Opponent.Validate(); err != nil {
			return rejected(battleID, msg.Type, err.Error())
		}
		e.ConfigureOpponent(*msg.Opponent)
	default:
		log.Debug().Str("battle_id", battleID.String()).Str("type", msg.Type).Msg("unknown client command")
		return rejected(battleID, msg.Type, "unknown command")
	}
	return nil
}
