// Package panel decides which interactive action panel the local player
// currently holds, tracks the in-progress selection, and turns a confirm
// into exactly one outbound intent per grant.
package panel

import (
	"errors"

	"github.com/moonhowl/werewolf-client/internal/game"
	"github.com/moonhowl/werewolf-client/internal/protocol"
)

// Local policy violations. These are rejected client-side and never reach
// the server.
var (
	ErrNoPanel          = errors.New("no active panel")
	ErrDeadPlayer       = errors.New("dead players cannot act")
	ErrNotSelectable    = errors.New("target not selectable")
	ErrNothingSelected  = errors.New("nothing selected")
	ErrAlreadyConfirmed = errors.New("action already confirmed this phase")
)

type Kind string

const (
	NoPanel          Kind = "none"
	WerewolfPanel    Kind = "werewolf"
	WitchPanel       Kind = "witch"
	SeerPanel        Kind = "seer"
	GuardPanel       Kind = "guard"
	SheriffElection  Kind = "sheriff_election"
	SpeechTurn       Kind = "speech_turn"
	VotePanel        Kind = "vote"
	SheriffVotePanel Kind = "sheriff_vote"
)

// Machine holds the single active panel and its ephemeral selection. All
// of it is transient: a phase change resets everything through Reset, the
// one and only reset point.
type Machine struct {
	kind       Kind
	selectable map[string]bool
	disabled   map[string]bool
	selection  string

	// witch grant context
	witchTarget   string
	witchHasSave  bool
	witchUseSave  bool
	witchCanSave  bool
	witchPoisonOK bool

	// acted blocks re-entering a phase-implied panel after the single
	// confirm, until the server's next phase change.
	acted bool
}

func NewMachine() *Machine {
	m := &Machine{}
	m.Reset()
	return m
}

func (m *Machine) Kind() Kind        { return m.kind }
func (m *Machine) Selection() string { return m.selection }

// Selectable reports whether the given target may currently be picked.
func (m *Machine) Selectable(id string) bool {
	return m.selectable[id] && !m.disabled[id]
}

// Reset drops the active panel and all selection state. Called on every
// phase change regardless of what was active; nothing bypasses it.
func (m *Machine) Reset() {
	m.kind = NoPanel
	m.selectable = make(map[string]bool)
	m.disabled = make(map[string]bool)
	m.selection = ""
	m.witchTarget = ""
	m.witchHasSave = false
	m.witchUseSave = false
	m.witchCanSave = false
	m.witchPoisonOK = false
	m.acted = false
}

// ApplyGrant activates the panel named by an explicit server grant. Grants
// addressed to a dead player are ignored outright.
func (m *Machine) ApplyGrant(grant protocol.Inbound, self *game.Player) {
	if self == nil || !self.IsAlive {
		return
	}
	// A fresh grant carries a fresh single intent; the latch only holds
	// within one grant, not across re-grants in the same phase.
	m.acted = false
	switch g := grant.(type) {
	case protocol.WerewolfGrant:
		m.enter(WerewolfPanel)
		m.allow(g.Players)
	case protocol.SeerGrant:
		m.enter(SeerPanel)
		m.allow(g.Players)
		m.disabled[self.ID] = true
	case protocol.GuardGrant:
		m.enter(GuardPanel)
		m.allow(g.Players)
		// No consecutive same-target guard.
		if g.LastGuardedID != "" {
			m.disabled[g.LastGuardedID] = true
		}
	case protocol.WitchGrant:
		m.enter(WitchPanel)
		m.allow(g.Players)
		m.witchTarget = g.WerewolfTarget
		m.witchCanSave = g.HasSave && g.WerewolfTarget != ""
		m.witchPoisonOK = g.HasPoison
	}
}

// SyncPhase activates panels that are implied by phase and role rather than
// granted explicitly: day voting for any living player, the sheriff
// sub-flow panels, and the speech turn when it is ours.
func (m *Machine) SyncPhase(room *game.State, self *game.Player) {
	if room == nil || self == nil || !self.IsAlive || m.acted {
		return
	}
	if m.kind != NoPanel {
		return
	}
	switch room.Phase {
	case game.PhaseVoting:
		m.enter(VotePanel)
		m.allowLiving(room)
	case game.PhaseSheriffVote:
		m.enter(SheriffVotePanel)
		for _, id := range room.SheriffCandidates {
			m.selectable[id] = true
		}
	case game.PhaseSheriffElection:
		m.enter(SheriffElection)
	case game.PhaseSheriffSpeech, game.PhaseDayDiscussion:
		if room.CurrentSpeakerID == self.ID {
			m.enter(SpeechTurn)
		}
	}
}

// Select records the in-progress target. Re-selecting is allowed any number
// of times before confirming; a disabled or unknown target is a no-op
// rejected locally.
func (m *Machine) Select(id string) error {
	switch m.kind {
	case NoPanel, SheriffElection, SpeechTurn:
		return ErrNoPanel
	}
	if !m.selectable[id] || m.disabled[id] {
		return ErrNotSelectable
	}
	m.selection = id
	m.witchUseSave = false
	return nil
}

// UseSave marks the witch's antidote as this night's choice. Only valid
// while the witch grant is active and the potion is still held.
func (m *Machine) UseSave() error {
	if m.kind != WitchPanel {
		return ErrNoPanel
	}
	if !m.witchCanSave {
		return ErrNotSelectable
	}
	m.witchUseSave = true
	m.selection = ""
	return nil
}

// Confirm emits the single intent for the current panel and selection, then
// drops back to NoPanel. The server's next phase change is the authoritative
// confirmation; locally the panel will not re-activate until then.
func (m *Machine) Confirm() (protocol.Intent, error) {
	if m.acted {
		return protocol.Intent{}, ErrAlreadyConfirmed
	}

	var intent protocol.Intent
	switch m.kind {
	case WerewolfPanel:
		if m.selection == "" {
			return protocol.Intent{}, ErrNothingSelected
		}
		intent = protocol.WerewolfVote(m.selection)
	case SeerPanel:
		if m.selection == "" {
			return protocol.Intent{}, ErrNothingSelected
		}
		intent = protocol.SeerCheck(m.selection)
	case GuardPanel:
		if m.selection == "" {
			return protocol.Intent{}, ErrNothingSelected
		}
		intent = protocol.GuardAction(m.selection)
	case WitchPanel:
		switch {
		case m.witchUseSave:
			intent = protocol.WitchSave()
		case m.selection != "":
			if !m.witchPoisonOK {
				return protocol.Intent{}, ErrNotSelectable
			}
			intent = protocol.WitchPoison(m.selection)
		default:
			return protocol.Intent{}, ErrNothingSelected
		}
	case VotePanel:
		if m.selection == "" {
			return protocol.Intent{}, ErrNothingSelected
		}
		intent = protocol.VotePlayer(m.selection)
	case SheriffVotePanel:
		if m.selection == "" {
			return protocol.Intent{}, ErrNothingSelected
		}
		intent = protocol.SheriffVote(m.selection)
	case SheriffElection:
		intent = protocol.SheriffRun()
	case SpeechTurn:
		intent = protocol.PassTurn()
	default:
		return protocol.Intent{}, ErrNoPanel
	}

	// Optimistic local exit; acted keeps phase-implied panels from
	// re-entering until the next phase change resets it.
	acted := true
	m.Reset()
	m.acted = acted
	return intent, nil
}

// Skip declines the active night-action grant, confirming it with no
// target. Only grant panels can be skipped; day panels have no skip.
func (m *Machine) Skip() (protocol.Intent, error) {
	if m.acted {
		return protocol.Intent{}, ErrAlreadyConfirmed
	}
	switch m.kind {
	case WerewolfPanel, WitchPanel, SeerPanel, GuardPanel:
	default:
		return protocol.Intent{}, ErrNoPanel
	}
	m.Reset()
	m.acted = true
	return protocol.ConfirmAction(), nil
}

func (m *Machine) enter(k Kind) {
	// Entering a panel always starts from an empty selection.
	acted := m.acted
	m.Reset()
	m.acted = acted
	m.kind = k
}

func (m *Machine) allow(players []game.Player) {
	for _, p := range players {
		if p.IsAlive {
			m.selectable[p.ID] = true
		}
	}
}

func (m *Machine) allowLiving(room *game.State) {
	for i := range room.Players {
		if room.Players[i].IsAlive {
			m.selectable[room.Players[i].ID] = true
		}
	}
}
