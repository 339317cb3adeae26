package panel

import (
	"errors"
	"testing"

	"github.com/moonhowl/werewolf-client/internal/game"
	"github.com/moonhowl/werewolf-client/internal/protocol"
)

func livingPlayers(ids ...string) []game.Player {
	players := make([]game.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, game.Player{ID: id, IsAlive: true})
	}
	return players
}

func self() *game.Player {
	return &game.Player{ID: "me", IsAlive: true}
}

func votingRoom() *game.State {
	return &game.State{
		RoomID:  "r1",
		Phase:   game.PhaseVoting,
		Players: append(livingPlayers("me", "p2"), game.Player{ID: "p3", IsAlive: false}),
	}
}

// Every panel state must collapse to NoPanel with an empty selection when
// the phase changes, no exceptions.
func TestReset_FromEveryPanel(t *testing.T) {
	activate := map[Kind]func(m *Machine){
		WerewolfPanel: func(m *Machine) {
			m.ApplyGrant(protocol.WerewolfGrant{Players: livingPlayers("p2")}, self())
			_ = m.Select("p2")
		},
		WitchPanel: func(m *Machine) {
			m.ApplyGrant(protocol.WitchGrant{HasSave: true, HasPoison: true, WerewolfTarget: "p2", Players: livingPlayers("p2")}, self())
			_ = m.UseSave()
		},
		SeerPanel: func(m *Machine) {
			m.ApplyGrant(protocol.SeerGrant{Players: livingPlayers("p2")}, self())
			_ = m.Select("p2")
		},
		GuardPanel: func(m *Machine) {
			m.ApplyGrant(protocol.GuardGrant{Players: livingPlayers("p2")}, self())
			_ = m.Select("p2")
		},
		VotePanel: func(m *Machine) {
			m.SyncPhase(votingRoom(), self())
			_ = m.Select("p2")
		},
		SheriffElection: func(m *Machine) {
			room := votingRoom()
			room.Phase = game.PhaseSheriffElection
			m.SyncPhase(room, self())
		},
		SheriffVotePanel: func(m *Machine) {
			room := votingRoom()
			room.Phase = game.PhaseSheriffVote
			room.SheriffCandidates = []string{"p2"}
			m.SyncPhase(room, self())
			_ = m.Select("p2")
		},
		SpeechTurn: func(m *Machine) {
			room := votingRoom()
			room.Phase = game.PhaseDayDiscussion
			room.CurrentSpeakerID = "me"
			m.SyncPhase(room, self())
		},
	}

	for kind, setup := range activate {
		t.Run(string(kind), func(t *testing.T) {
			m := NewMachine()
			setup(m)
			if m.Kind() != kind {
				t.Fatalf("setup should reach %s, got %s", kind, m.Kind())
			}

			m.Reset()

			if m.Kind() != NoPanel {
				t.Fatalf("after reset: want NoPanel, got %s", m.Kind())
			}
			if m.Selection() != "" {
				t.Fatalf("after reset: selection must be empty, got %q", m.Selection())
			}
		})
	}
}

func TestSelect_ReselectionAllowedBeforeConfirm(t *testing.T) {
	m := NewMachine()
	m.ApplyGrant(protocol.WerewolfGrant{Players: livingPlayers("p2", "p3")}, self())

	if err := m.Select("p2"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if err := m.Select("p3"); err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if m.Selection() != "p3" {
		t.Fatalf("want p3 selected, got %q", m.Selection())
	}
}

func TestGuard_LastGuardedTargetIsNotSelectable(t *testing.T) {
	m := NewMachine()
	m.ApplyGrant(protocol.GuardGrant{
		Players:       livingPlayers("p2", "p3"),
		LastGuardedID: "p2",
	}, self())

	if err := m.Select("p2"); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("selecting last guarded target: want ErrNotSelectable, got %v", err)
	}
	if m.Selection() != "" {
		t.Fatalf("rejected select must not stick, got %q", m.Selection())
	}

	if err := m.Select("p3"); err != nil {
		t.Fatalf("legal target: %v", err)
	}
	intent, err := m.Confirm()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if intent.Type != protocol.TypeGuardAction {
		t.Fatalf("want GUARD_ACTION, got %s", intent.Type)
	}
}

func TestConfirm_EmitsOnceThenReturnsToNoPanel(t *testing.T) {
	m := NewMachine()
	m.SyncPhase(votingRoom(), self())
	if err := m.Select("p2"); err != nil {
		t.Fatalf("select: %v", err)
	}

	intent, err := m.Confirm()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if intent.Type != protocol.TypeVotePlayer {
		t.Fatalf("want VOTE_PLAYER, got %s", intent.Type)
	}
	if m.Kind() != NoPanel {
		t.Fatalf("confirm must drop back to NoPanel, got %s", m.Kind())
	}

	// The phase is still voting, but the single intent is spent: the
	// implied panel must not come back until the next phase change.
	m.SyncPhase(votingRoom(), self())
	if m.Kind() != NoPanel {
		t.Fatalf("vote panel re-activated after confirm")
	}
	if _, err := m.Confirm(); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("second confirm: want ErrAlreadyConfirmed, got %v", err)
	}

	// The phase change reset re-arms it.
	m.Reset()
	m.SyncPhase(votingRoom(), self())
	if m.Kind() != VotePanel {
		t.Fatalf("after reset the implied panel should return, got %s", m.Kind())
	}
}

func TestConfirm_RequiresSelection(t *testing.T) {
	m := NewMachine()
	m.ApplyGrant(protocol.SeerGrant{Players: livingPlayers("p2")}, self())

	if _, err := m.Confirm(); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("want ErrNothingSelected, got %v", err)
	}
}

func TestDeadPlayerNeverGetsAPanel(t *testing.T) {
	dead := &game.Player{ID: "me", IsAlive: false}

	m := NewMachine()
	m.ApplyGrant(protocol.WerewolfGrant{Players: livingPlayers("p2")}, dead)
	if m.Kind() != NoPanel {
		t.Fatalf("grant to a dead player must be ignored")
	}

	m.SyncPhase(votingRoom(), dead)
	if m.Kind() != NoPanel {
		t.Fatalf("dead players do not vote")
	}
}

func TestVotePanel_DeadTargetsAreNotSelectable(t *testing.T) {
	m := NewMachine()
	m.SyncPhase(votingRoom(), self())

	if err := m.Select("p3"); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("dead target: want ErrNotSelectable, got %v", err)
	}
}

func TestWitch_SaveAndPoisonFlows(t *testing.T) {
	grant := protocol.WitchGrant{
		WerewolfTarget: "p2",
		HasSave:        true,
		HasPoison:      true,
		Players:        livingPlayers("p2", "p3"),
	}

	t.Run("save", func(t *testing.T) {
		m := NewMachine()
		m.ApplyGrant(grant, self())
		if err := m.UseSave(); err != nil {
			t.Fatalf("use save: %v", err)
		}
		intent, err := m.Confirm()
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if intent.Type != protocol.TypeWitchAction {
			t.Fatalf("want WITCH_ACTION, got %s", intent.Type)
		}
	})

	t.Run("poison", func(t *testing.T) {
		m := NewMachine()
		m.ApplyGrant(grant, self())
		if err := m.Select("p3"); err != nil {
			t.Fatalf("select: %v", err)
		}
		if _, err := m.Confirm(); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	})

	t.Run("no antidote without a kill", func(t *testing.T) {
		m := NewMachine()
		noKill := grant
		noKill.WerewolfTarget = ""
		m.ApplyGrant(noKill, self())
		if err := m.UseSave(); !errors.Is(err, ErrNotSelectable) {
			t.Fatalf("want ErrNotSelectable, got %v", err)
		}
	})

	t.Run("empty-handed witch cannot act", func(t *testing.T) {
		m := NewMachine()
		spent := grant
		spent.HasSave = false
		spent.HasPoison = false
		m.ApplyGrant(spent, self())
		if err := m.UseSave(); !errors.Is(err, ErrNotSelectable) {
			t.Fatalf("save without potion: want ErrNotSelectable, got %v", err)
		}
		if err := m.Select("p3"); err != nil {
			t.Fatalf("select itself is allowed: %v", err)
		}
		if _, err := m.Confirm(); !errors.Is(err, ErrNotSelectable) {
			t.Fatalf("poison without potion: want ErrNotSelectable, got %v", err)
		}
	})
}

func TestSkip_DeclinesNightAction(t *testing.T) {
	m := NewMachine()
	m.ApplyGrant(protocol.SeerGrant{Players: livingPlayers("p2")}, self())

	intent, err := m.Skip()
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if intent.Type != protocol.TypeConfirmAction {
		t.Fatalf("want CONFIRM_ACTION, got %s", intent.Type)
	}
	if m.Kind() != NoPanel {
		t.Fatalf("skip must drop back to NoPanel, got %s", m.Kind())
	}
	if _, err := m.Skip(); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("second skip: want ErrAlreadyConfirmed, got %v", err)
	}
}

func TestSkip_OnlyForGrantPanels(t *testing.T) {
	m := NewMachine()
	m.SyncPhase(votingRoom(), self())
	if m.Kind() != VotePanel {
		t.Fatalf("setup should reach VotePanel, got %s", m.Kind())
	}
	if _, err := m.Skip(); !errors.Is(err, ErrNoPanel) {
		t.Fatalf("day vote has no skip: want ErrNoPanel, got %v", err)
	}
}

// A re-grant within the same phase carries its own single intent; the spent
// latch from the previous grant must not stick to it.
func TestFreshGrantRearmsSingleIntentLatch(t *testing.T) {
	m := NewMachine()
	m.ApplyGrant(protocol.SeerGrant{Players: livingPlayers("p2", "p3")}, self())
	if err := m.Select("p2"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := m.Confirm(); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	m.ApplyGrant(protocol.SeerGrant{Players: livingPlayers("p3")}, self())
	if m.Kind() != SeerPanel {
		t.Fatalf("re-grant must activate the panel, got %s", m.Kind())
	}
	if err := m.Select("p3"); err != nil {
		t.Fatalf("select after re-grant: %v", err)
	}
	intent, err := m.Confirm()
	if err != nil {
		t.Fatalf("confirm after re-grant: %v", err)
	}
	if intent.Type != protocol.TypeSeerCheck {
		t.Fatalf("want SEER_CHECK, got %s", intent.Type)
	}
}

func TestSpeechTurn_OnlyForCurrentSpeaker(t *testing.T) {
	room := votingRoom()
	room.Phase = game.PhaseDayDiscussion
	room.CurrentSpeakerID = "p2"

	m := NewMachine()
	m.SyncPhase(room, self())
	if m.Kind() != NoPanel {
		t.Fatalf("someone else is speaking; want NoPanel, got %s", m.Kind())
	}

	room.CurrentSpeakerID = "me"
	m.SyncPhase(room, self())
	if m.Kind() != SpeechTurn {
		t.Fatalf("our turn to speak; want SpeechTurn, got %s", m.Kind())
	}

	intent, err := m.Confirm()
	if err != nil {
		t.Fatalf("pass turn: %v", err)
	}
	if intent.Type != protocol.TypePassTurn {
		t.Fatalf("want PASS_TURN, got %s", intent.Type)
	}
}
