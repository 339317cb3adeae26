package protocol

import (
	"encoding/json"
	"fmt"
)

// Outbound client -> server envelope types.
const (
	TypeTakeSeat        = "TAKE_SEAT"
	TypeReadyToggle     = "READY_TOGGLE"
	TypeStartGame       = "START_GAME"
	TypeWerewolfVote    = "WEREWOLF_VOTE"
	TypeWitchAction     = "WITCH_ACTION"
	TypeSeerCheck       = "SEER_CHECK"
	TypeGuardAction     = "GUARD_ACTION"
	TypeVotePlayer      = "VOTE_PLAYER"
	TypeSheriffRun      = "SHERIFF_RUN"
	TypeSheriffWithdraw = "SHERIFF_WITHDRAW"
	TypeSheriffVote     = "SHERIFF_VOTE"
	TypePassTurn        = "PASS_TURN"
	TypeConfirmAction   = "CONFIRM_ACTION"
)

// Intent is one outbound action. Every send carries {type, payload}.
type Intent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type targetPayload struct {
	TargetPlayerID string `json:"target_player_id"`
}

type seatPayload struct {
	Seat int `json:"seat"`
}

type witchPayload struct {
	Action         string `json:"action"`
	TargetPlayerID string `json:"target_player_id,omitempty"`
}

func TakeSeat(seat int) Intent {
	return Intent{Type: TypeTakeSeat, Payload: seatPayload{Seat: seat}}
}

func ReadyToggle() Intent { return Intent{Type: TypeReadyToggle} }

func StartGame() Intent { return Intent{Type: TypeStartGame} }

func WerewolfVote(targetID string) Intent {
	return Intent{Type: TypeWerewolfVote, Payload: targetPayload{TargetPlayerID: targetID}}
}

func WitchSave() Intent {
	return Intent{Type: TypeWitchAction, Payload: witchPayload{Action: "save"}}
}

func WitchPoison(targetID string) Intent {
	return Intent{Type: TypeWitchAction, Payload: witchPayload{Action: "poison", TargetPlayerID: targetID}}
}

func SeerCheck(targetID string) Intent {
	return Intent{Type: TypeSeerCheck, Payload: targetPayload{TargetPlayerID: targetID}}
}

func GuardAction(targetID string) Intent {
	return Intent{Type: TypeGuardAction, Payload: targetPayload{TargetPlayerID: targetID}}
}

func VotePlayer(targetID string) Intent {
	return Intent{Type: TypeVotePlayer, Payload: targetPayload{TargetPlayerID: targetID}}
}

func SheriffRun() Intent { return Intent{Type: TypeSheriffRun} }

func SheriffWithdraw() Intent { return Intent{Type: TypeSheriffWithdraw} }

func SheriffVote(targetID string) Intent {
	return Intent{Type: TypeSheriffVote, Payload: targetPayload{TargetPlayerID: targetID}}
}

func PassTurn() Intent { return Intent{Type: TypePassTurn} }

func ConfirmAction() Intent { return Intent{Type: TypeConfirmAction} }

func EncodeIntent(i Intent) ([]byte, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", i.Type, err)
	}
	return data, nil
}
