// Package state holds the canonical room snapshot and applies inbound
// events to it. The store is owned by the client loop and is not safe for
// concurrent use; everything that mutates it runs on that one goroutine.
package state

import (
	"errors"
	"math"
	"time"

	"github.com/moonhowl/werewolf-client/internal/game"
	"github.com/moonhowl/werewolf-client/internal/protocol"
)

var (
	// ErrNoState - a targeted event arrived before any full snapshot. A full
	// replace is the only path out of the empty state.
	ErrNoState = errors.New("no room state yet")
	// ErrPhaseOutOfOrder - the announced phase is not a legal successor per
	// the configured template. State is left unchanged.
	ErrPhaseOutOfOrder = errors.New("phase change out of order")
	ErrUnknownPhase    = errors.New("phase not in template")
)

// Result tells the caller what a successfully applied event implies for the
// rest of the client.
type Result struct {
	// PhaseChanged - ephemeral panel/selection state must be reset now.
	PhaseChanged bool
}

type Store struct {
	template game.Template
	localID  string

	room      *game.State
	myRole    game.Role
	teammates []string

	remaining int
	timed     bool
}

func New(template game.Template) *Store {
	return &Store{template: template}
}

// Bind sets the local player's in-game id. Must happen before the first
// event; role assignment and confidentiality scrubbing key off it.
func (s *Store) Bind(playerID string) { s.localID = playerID }

func (s *Store) LocalID() string { return s.localID }

func (s *Store) Template() game.Template { return s.template }

// Room returns a deep copy of the current snapshot, or nil before the first
// full state.
func (s *Store) Room() *game.State {
	if s.room == nil {
		return nil
	}
	room := s.room.Clone()
	return &room
}

// Self returns the local player's entry, or nil when absent.
func (s *Store) Self() *game.Player {
	if s.room == nil {
		return nil
	}
	return s.room.FindPlayer(s.localID)
}

// MyRole is what the server has told this connection, independent of the
// players list. Empty means "my role unknown", never "no role".
func (s *Store) MyRole() game.Role { return s.myRole }

func (s *Store) Teammates() []string {
	return append([]string(nil), s.teammates...)
}

// Apply folds one decoded event into the snapshot. Unrecognized or
// out-of-order input leaves state untouched and reports an error the caller
// logs; nothing here is fatal.
func (s *Store) Apply(msg protocol.Inbound) (Result, error) {
	switch m := msg.(type) {
	case protocol.FullState:
		return s.applyFull(m)
	case protocol.PlayerJoined:
		return s.applyPlayerJoined(m)
	case protocol.PhaseChange:
		return s.applyPhaseChange(m)
	case protocol.RoleAssigned:
		s.myRole = m.Role
		s.teammates = append([]string(nil), m.Teammates...)
		if s.room != nil {
			if self := s.room.FindPlayer(s.localID); self != nil {
				self.Role = m.Role
			}
		}
		return Result{}, nil
	case protocol.NightResult:
		if s.room == nil {
			return Result{}, ErrNoState
		}
		for _, id := range m.Dead {
			s.markDead(id)
		}
		s.room.NightlyDeaths = append([]string(nil), m.Dead...)
		return Result{}, nil
	case protocol.VoteResult:
		if s.room == nil {
			return Result{}, ErrNoState
		}
		if m.Eliminated != "" {
			s.markDead(m.Eliminated)
		}
		return Result{}, nil
	case protocol.SheriffUpdate:
		if s.room == nil {
			return Result{}, ErrNoState
		}
		if m.Candidates != nil {
			s.room.SheriffCandidates = append([]string(nil), m.Candidates...)
		}
		if m.SpeakerID != "" {
			s.room.CurrentSpeakerID = m.SpeakerID
		}
		if m.ElectedID != "" {
			if p := s.room.FindPlayer(m.ElectedID); p != nil {
				p.IsSheriff = true
			}
		}
		return Result{}, nil
	case protocol.GameOver:
		if s.room == nil {
			return Result{}, ErrNoState
		}
		s.room.Winner = m.Winner
		s.room.Phase = game.PhaseEnded
		s.room.PhaseEndTime = nil
		for id, role := range m.Roles {
			if p := s.room.FindPlayer(id); p != nil {
				p.Role = role
			}
		}
		s.timed = false
		s.remaining = 0
		return Result{PhaseChanged: true}, nil
	default:
		// Grants, seer results, narrative events, disconnects and unknown
		// envelopes carry no room state.
		return Result{}, nil
	}
}

func (s *Store) applyFull(m protocol.FullState) (Result, error) {
	room := m.Room.Clone()

	// Confidentiality: before game over, no role other than our own may
	// survive into the local store, whatever the snapshot claimed.
	if room.Winner == "" && room.Phase != game.PhaseEnded {
		for i := range room.Players {
			if room.Players[i].ID != s.localID {
				room.Players[i].Role = ""
			}
		}
	}
	if self := room.FindPlayer(s.localID); self != nil && self.Role != "" {
		s.myRole = self.Role
	} else if self != nil && s.myRole != "" {
		self.Role = s.myRole
	}

	phaseChanged := s.room == nil || s.room.Phase != room.Phase
	s.room = &room
	s.syncDeadline()
	return Result{PhaseChanged: phaseChanged}, nil
}

func (s *Store) applyPlayerJoined(m protocol.PlayerJoined) (Result, error) {
	if s.room == nil {
		return Result{}, ErrNoState
	}
	// Duplicate join events for a known id are no-ops.
	if s.room.HasPlayer(m.Player.ID) {
		return Result{}, nil
	}
	p := m.Player
	if p.ID != s.localID {
		p.Role = ""
	}
	s.room.Players = append(s.room.Players, p)
	return Result{}, nil
}

func (s *Store) applyPhaseChange(m protocol.PhaseChange) (Result, error) {
	if s.room == nil {
		return Result{}, ErrNoState
	}
	if !s.template.HasPhase(m.Phase) {
		return Result{}, ErrUnknownPhase
	}
	if !s.template.CanFollow(s.room.Phase, m.Phase) {
		return Result{}, ErrPhaseOutOfOrder
	}

	s.room.Phase = m.Phase
	if m.Day != nil && *m.Day >= s.room.Day {
		s.room.Day = *m.Day
	}
	s.room.PhaseEndTime = nil
	if m.PhaseEndTime != nil {
		end := *m.PhaseEndTime
		s.room.PhaseEndTime = &end
	}
	for _, id := range m.Deaths {
		s.markDead(id)
	}
	// Phase-scoped fields do not outlive their phase.
	s.room.SheriffCandidates = nil
	s.room.CurrentSpeakerID = ""
	s.syncDeadline()
	return Result{PhaseChanged: true}, nil
}

// markDead flips is_alive at most once; there is no resurrection.
func (s *Store) markDead(id string) {
	if p := s.room.FindPlayer(id); p != nil && p.IsAlive {
		p.IsAlive = false
	}
}

func (s *Store) syncDeadline() {
	if s.room == nil || s.room.PhaseEndTime == nil {
		s.timed = false
		s.remaining = 0
		return
	}
	s.timed = true
}

// Tick recomputes the live countdown from the server deadline. Runs on the
// client loop's 1 Hz ticker, never on message arrival, so independently
// clocked clients stay in step without per-second server traffic.
func (s *Store) Tick(now time.Time) {
	if s.room == nil || s.room.PhaseEndTime == nil {
		s.timed = false
		s.remaining = 0
		return
	}
	s.timed = true
	left := math.Round(float64(*s.room.PhaseEndTime) - float64(now.UnixMilli())/1000.0)
	if left < 0 {
		left = 0
	}
	s.remaining = int(left)
}

// Remaining returns the last computed countdown and whether the current
// phase is timed at all. It floors at zero and is only ever extended by a
// fresh server deadline.
func (s *Store) Remaining() (int, bool) { return s.remaining, s.timed }
