package game

// Template describes one game board: which phases exist and in what order,
// which roles are in play, and how many seats the room holds. The server is
// the authority on the actual sequence; the template only lets the client
// tell "forward" from "backward". Loaded from configuration so a new board
// does not require a rebuild.
type Template struct {
	Name string `yaml:"name" env-default:"standard-12"`
	// Seats is the seat range; valid seats are 0..Seats-1.
	Seats  int     `yaml:"seats" env-default:"12"`
	Phases []Phase `yaml:"phases"`
	// NightEntry is the phase that begins a new day cycle. Seeing it again
	// is a legal "wrap" rather than an out-of-order transition.
	NightEntry Phase  `yaml:"night-entry" env-default:"werewolf_turn"`
	Roles      []Role `yaml:"roles"`
	WolfRoles  []Role `yaml:"wolf-roles"`
}

// DefaultTemplate is the standard 12-seat board. Used when the config file
// leaves the template section empty.
func DefaultTemplate() Template {
	return Template{
		Name:       "standard-12",
		Seats:      12,
		NightEntry: PhaseWerewolfTurn,
		Phases: []Phase{
			PhaseLobby,
			PhaseRoleAssign,
			PhaseWerewolfTurn,
			PhaseWitchTurn,
			PhaseSeerTurn,
			PhaseGuardTurn,
			PhaseSheriffElection,
			PhaseSheriffSpeech,
			PhaseSheriffVote,
			PhaseDayDiscussion,
			PhaseVoting,
			PhaseVoteResult,
			PhaseEnded,
		},
		Roles: []Role{
			RoleWerewolf, RoleVillager, RoleSeer, RoleWitch,
			RoleHunter, RoleIdiot, RoleGuard,
		},
		WolfRoles: []Role{RoleWerewolf, RoleWolfKing, RoleWhiteWolfKing},
	}
}

// PhaseIndex returns the position of p in the template order, or -1 when the
// phase is not part of this board.
func (t Template) PhaseIndex(p Phase) int {
	for i, q := range t.Phases {
		if q == p {
			return i
		}
	}
	return -1
}

func (t Template) HasPhase(p Phase) bool { return t.PhaseIndex(p) >= 0 }

func (t Template) ValidSeat(seat int) bool { return seat >= 0 && seat < t.Seats }

func (t Template) IsWolfRole(r Role) bool {
	for _, w := range t.WolfRoles {
		if w == r {
			return true
		}
	}
	return false
}

// CanFollow reports whether moving from cur to next is a legal transition:
// strictly forward within the cycle (optional sub-phases may be skipped),
// wrapping to NightEntry for a new day, or entering the terminal phase.
// An empty cur means the room has no phase yet and accepts anything known.
func (t Template) CanFollow(cur, next Phase) bool {
	ni := t.PhaseIndex(next)
	if ni < 0 {
		return false
	}
	if cur == "" {
		return true
	}
	if next == t.NightEntry || next == PhaseEnded {
		return true
	}
	ci := t.PhaseIndex(cur)
	return ci < 0 || ni > ci
}
