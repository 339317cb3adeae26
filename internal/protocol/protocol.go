// Package protocol is the wire codec for the persistent room connection.
// Inbound frames are `{type, payload}` envelopes decoded into a closed set
// of variants so downstream code can switch exhaustively instead of
// comparing type strings everywhere.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/moonhowl/werewolf-client/internal/game"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Envelope is the raw shape of every frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound server -> client envelope types.
const (
	TypeGameStart          = "GAME_START"
	TypeGameStateUpdate    = "GAME_STATE_UPDATE"
	TypePhaseChange        = "PHASE_CHANGE"
	TypePlayerJoined       = "PLAYER_JOINED"
	TypeRoleAssign         = "ROLE_ASSIGN"
	TypeNightResult        = "NIGHT_RESULT"
	TypeVoteResult         = "VOTE_RESULT"
	TypeSheriffElection    = "SHERIFF_ELECTION"
	TypeSheriffResult      = "SHERIFF_RESULT"
	TypeWerewolfPanel      = "WEREWOLF_PANEL"
	TypeWitchPanel         = "WITCH_PANEL"
	TypeSeerPanel          = "SEER_PANEL"
	TypeGuardPanel         = "GUARD_PANEL"
	TypeSeerResult         = "SEER_RESULT"
	TypeGameEvent          = "GAME_EVENT"
	TypeGameOver           = "GAME_OVER"
	TypePlayerDisconnected = "PLAYER_DISCONNECTED"
)

type Inbound interface{ isInbound() }

// FullState carries a complete authoritative room snapshot.
type FullState struct {
	Room game.State `json:"room"`
}

type PhaseChange struct {
	Phase        game.Phase `json:"phase"`
	Day          *int       `json:"day,omitempty"`
	PhaseEndTime *int64     `json:"phase_end_time,omitempty"`
	Deaths       []string   `json:"deaths,omitempty"`
}

type PlayerJoined struct {
	Player game.Player `json:"player"`
}

// RoleAssigned is unicast; teammates are only present for faction members.
type RoleAssigned struct {
	Role      game.Role `json:"role"`
	Teammates []string  `json:"teammates,omitempty"`
}

type NightResult struct {
	Dead     []string `json:"dead"`
	Saved    string   `json:"saved,omitempty"`
	Poisoned string   `json:"poisoned,omitempty"`
}

type VoteResult struct {
	Eliminated string            `json:"eliminated,omitempty"`
	Votes      map[string]string `json:"votes"`
}

type SheriffUpdate struct {
	Candidates []string `json:"candidates,omitempty"`
	ElectedID  string   `json:"elected_id,omitempty"`
	SpeakerID  string   `json:"speaker_id,omitempty"`
}

// Panel grants. Receiving one is the authoritative signal that this
// connection currently holds the corresponding action.
type WerewolfGrant struct {
	Players   []game.Player `json:"players"`
	Teammates []game.Player `json:"teammates,omitempty"`
}

type WitchGrant struct {
	WerewolfTarget string        `json:"werewolf_target,omitempty"`
	HasSave        bool          `json:"has_save"`
	HasPoison      bool          `json:"has_poison"`
	Players        []game.Player `json:"players"`
}

type SeerGrant struct {
	Players []game.Player `json:"players"`
}

type GuardGrant struct {
	Players       []game.Player `json:"players"`
	LastGuardedID string        `json:"last_guarded_id,omitempty"`
}

type SeerResult struct {
	Results map[string]string `json:"results"`
}

type GameEvent struct {
	Message string `json:"message"`
}

type GameOver struct {
	Winner game.Faction         `json:"winner"`
	Roles  map[string]game.Role `json:"roles"`
}

type PlayerDisconnected struct {
	PlayerID string `json:"player_id"`
}

// Unknown is any well-formed envelope whose type we do not recognize. It is
// kept rather than dropped so it still leaves a trace in the event log.
type Unknown struct {
	Type string
}

func (FullState) isInbound()          {}
func (PhaseChange) isInbound()        {}
func (PlayerJoined) isInbound()       {}
func (RoleAssigned) isInbound()       {}
func (NightResult) isInbound()        {}
func (VoteResult) isInbound()         {}
func (SheriffUpdate) isInbound()      {}
func (WerewolfGrant) isInbound()      {}
func (WitchGrant) isInbound()         {}
func (SeerGrant) isInbound()          {}
func (GuardGrant) isInbound()         {}
func (SeerResult) isInbound()         {}
func (GameEvent) isInbound()          {}
func (GameOver) isInbound()           {}
func (PlayerDisconnected) isInbound() {}
func (Unknown) isInbound()            {}

// Decode parses one raw frame into its tagged variant. A frame that is not
// valid JSON, or whose payload does not match the declared type, fails with
// ErrMalformedFrame; a valid frame with an unrecognized type decodes to
// Unknown and is never an error.
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return DecodeEnvelope(env)
}

func DecodeEnvelope(env Envelope) (Inbound, error) {
	switch env.Type {
	case TypeGameStart, TypeGameStateUpdate:
		var msg FullState
		// Snapshots arrive either as {"room": {...}} or as the room object
		// itself, depending on server iteration. Accept both.
		if err := unmarshalPayload(env, &msg); err != nil || msg.Room.RoomID == "" {
			if err2 := unmarshalPayload(env, &msg.Room); err2 != nil {
				return nil, payloadErr(env.Type, err2)
			}
		}
		return msg, nil
	case TypePhaseChange:
		return decodeAs[PhaseChange](env)
	case TypePlayerJoined:
		return decodeAs[PlayerJoined](env)
	case TypeRoleAssign:
		return decodeAs[RoleAssigned](env)
	case TypeNightResult:
		return decodeAs[NightResult](env)
	case TypeVoteResult:
		return decodeAs[VoteResult](env)
	case TypeSheriffElection, TypeSheriffResult:
		return decodeAs[SheriffUpdate](env)
	case TypeWerewolfPanel:
		return decodeAs[WerewolfGrant](env)
	case TypeWitchPanel:
		return decodeAs[WitchGrant](env)
	case TypeSeerPanel:
		return decodeAs[SeerGrant](env)
	case TypeGuardPanel:
		return decodeAs[GuardGrant](env)
	case TypeSeerResult:
		return decodeAs[SeerResult](env)
	case TypeGameEvent:
		return decodeAs[GameEvent](env)
	case TypeGameOver:
		return decodeAs[GameOver](env)
	case TypePlayerDisconnected:
		return decodeAs[PlayerDisconnected](env)
	default:
		return Unknown{Type: env.Type}, nil
	}
}

func decodeAs[T Inbound](env Envelope) (Inbound, error) {
	var msg T
	if err := unmarshalPayload(env, &msg); err != nil {
		return nil, payloadErr(env.Type, err)
	}
	return msg, nil
}

func unmarshalPayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, dst)
}

func payloadErr(typ string, err error) error {
	return fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, typ, err)
}
