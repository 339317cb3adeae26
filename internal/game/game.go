package game

// Phase is one segment of the server-driven turn structure. The full set and
// its order come from the configured Template, not from this list alone; the
// constants below cover the standard board.
type Phase string

const (
	PhaseLobby           Phase = "lobby"
	PhaseRoleAssign      Phase = "role_assign"
	PhaseWerewolfTurn    Phase = "werewolf_turn"
	PhaseWitchTurn       Phase = "witch_turn"
	PhaseSeerTurn        Phase = "seer_turn"
	PhaseGuardTurn       Phase = "guard_turn"
	PhaseSheriffElection Phase = "sheriff_election"
	PhaseSheriffSpeech   Phase = "sheriff_speech"
	PhaseSheriffVote     Phase = "sheriff_vote"
	PhaseDayDiscussion   Phase = "day_discussion"
	PhaseVoting          Phase = "voting"
	PhaseVoteResult      Phase = "vote_result"
	PhaseEnded           Phase = "ended"
)

type Role string

const (
	RoleVillager      Role = "villager"
	RoleWerewolf      Role = "werewolf"
	RoleSeer          Role = "seer"
	RoleWitch         Role = "witch"
	RoleHunter        Role = "hunter"
	RoleIdiot         Role = "idiot"
	RoleGuard         Role = "guard"
	RoleKnight        Role = "knight"
	RoleWolfKing      Role = "wolf_king"
	RoleWhiteWolfKing Role = "white_wolf_king"
	RoleWolfBeauty    Role = "wolf_beauty"
	RoleSnowWolf      Role = "snow_wolf"
	RoleGargoyle      Role = "gargoyle"
	RoleEvilKnight    Role = "evil_knight"
	RoleHiddenWolf    Role = "hidden_wolf"
)

type Faction string

const (
	FactionGood Faction = "GOOD"
	FactionWolf Faction = "WOLF"
)

// Player is one seat-holder inside a room. ID is the in-game id, scoped to
// this session; ProfileID points at the externally managed profile and is
// never resolved here.
type Player struct {
	ID        string `json:"id"`
	ProfileID string `json:"profile_id"`
	Name      string `json:"name,omitempty"`
	Seat      *int   `json:"seat,omitempty"`
	IsAlive   bool   `json:"is_alive"`
	Role      Role   `json:"role,omitempty"`
	IsSheriff bool   `json:"is_sheriff,omitempty"`
	IsHost    bool   `json:"is_host,omitempty"`
	IsReady   bool   `json:"is_ready,omitempty"`
}

// State is the single canonical room snapshot. It is fully replaced by
// server snapshots and patched by targeted events; nothing else writes it.
type State struct {
	RoomID            string   `json:"room_id"`
	Phase             Phase    `json:"phase"`
	Day               int      `json:"day"`
	Players           []Player `json:"players"`
	HostID            string   `json:"host_id"`
	PhaseEndTime      *int64   `json:"phase_end_time,omitempty"`
	SheriffCandidates []string `json:"sheriff_candidates,omitempty"`
	CurrentSpeakerID  string   `json:"current_speaker_id,omitempty"`
	NightlyDeaths     []string `json:"nightly_deaths,omitempty"`
	Winner            Faction  `json:"winner,omitempty"`
}

func (s *State) FindPlayer(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *State) HasPlayer(id string) bool {
	return s.FindPlayer(id) != nil
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (s *State) Clone() State {
	out := *s
	out.Players = make([]Player, len(s.Players))
	copy(out.Players, s.Players)
	for i := range out.Players {
		if s.Players[i].Seat != nil {
			seat := *s.Players[i].Seat
			out.Players[i].Seat = &seat
		}
	}
	if s.PhaseEndTime != nil {
		end := *s.PhaseEndTime
		out.PhaseEndTime = &end
	}
	out.SheriffCandidates = append([]string(nil), s.SheriffCandidates...)
	out.NightlyDeaths = append([]string(nil), s.NightlyDeaths...)
	return out
}

// SeatTaken reports whether a seat is already held by a living or seated
// player other than the one asking.
func (s *State) SeatTaken(seat int, exceptID string) bool {
	for i := range s.Players {
		p := &s.Players[i]
		if p.ID == exceptID || p.Seat == nil {
			continue
		}
		if *p.Seat == seat {
			return true
		}
	}
	return false
}
