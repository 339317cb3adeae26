// Package gamelog projects inbound events into the human-readable,
// append-only room narrative. Order is arrival order; reconnecting starts a
// fresh log, history is never replayed.
package gamelog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moonhowl/werewolf-client/internal/game"
	"github.com/moonhowl/werewolf-client/internal/protocol"
)

type Log struct {
	lines []string
}

func New() *Log { return &Log{} }

func (l *Log) Append(line string) { l.lines = append(l.lines, line) }

// Lines returns a copy; the log itself only ever grows.
func (l *Log) Lines() []string {
	return append([]string(nil), l.lines...)
}

func (l *Log) Len() int { return len(l.lines) }

// Project maps one decoded event to its log line. Panel grants and the
// unicast role material are UI state, not narrative, and produce nothing.
// Unrecognized envelopes still get a generic line so nothing vanishes
// without trace.
func Project(msg protocol.Inbound, room *game.State) (string, bool) {
	switch m := msg.(type) {
	case protocol.FullState:
		return fmt.Sprintf("Synced with room %s.", m.Room.RoomID), true
	case protocol.PhaseChange:
		if m.Day != nil {
			return fmt.Sprintf("Day %d: phase is now %s.", *m.Day, m.Phase), true
		}
		return fmt.Sprintf("Phase is now %s.", m.Phase), true
	case protocol.PlayerJoined:
		return fmt.Sprintf("%s joined the room.", displayName(room, m.Player.ID, m.Player.Name)), true
	case protocol.NightResult:
		if len(m.Dead) == 0 {
			return "The night passes peacefully. Nobody died.", true
		}
		return fmt.Sprintf("Dawn breaks. Died in the night: %s.", nameList(room, m.Dead)), true
	case protocol.VoteResult:
		return formatVoteResult(m, room), true
	case protocol.SheriffUpdate:
		switch {
		case m.ElectedID != "":
			return fmt.Sprintf("%s was elected sheriff.", displayName(room, m.ElectedID, "")), true
		case m.SpeakerID != "":
			return fmt.Sprintf("%s is speaking.", displayName(room, m.SpeakerID, "")), true
		case len(m.Candidates) > 0:
			return fmt.Sprintf("Sheriff candidates: %s.", nameList(room, m.Candidates)), true
		default:
			return "Nobody is running for sheriff.", true
		}
	case protocol.GameEvent:
		return m.Message, true
	case protocol.GameOver:
		if m.Winner == game.FactionWolf {
			return "Game over. The werewolves win.", true
		}
		return "Game over. The villagers win.", true
	case protocol.PlayerDisconnected:
		return fmt.Sprintf("%s disconnected.", displayName(room, m.PlayerID, "")), true
	case protocol.Unknown:
		return fmt.Sprintf("Unhandled event: %s.", m.Type), true
	default:
		// Grants, role assignment, seer results.
		return "", false
	}
}

// formatVoteResult enumerates voter->target pairs in a stable order, then
// the outcome line.
func formatVoteResult(m protocol.VoteResult, room *game.State) string {
	voters := make([]string, 0, len(m.Votes))
	for voter := range m.Votes {
		voters = append(voters, voter)
	}
	sort.Strings(voters)

	pairs := make([]string, 0, len(voters))
	for _, voter := range voters {
		pairs = append(pairs, fmt.Sprintf("%s voted %s",
			displayName(room, voter, ""), displayName(room, m.Votes[voter], "")))
	}

	outcome := "The vote was tied. Nobody was eliminated."
	if m.Eliminated != "" {
		outcome = fmt.Sprintf("%s was voted out.", displayName(room, m.Eliminated, ""))
	}
	if len(pairs) == 0 {
		return outcome
	}
	return strings.Join(pairs, ", ") + ". " + outcome
}

func nameList(room *game.State, ids []string) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, displayName(room, id, ""))
	}
	return strings.Join(names, ", ")
}

func displayName(room *game.State, id, fallback string) string {
	if room != nil {
		if p := room.FindPlayer(id); p != nil && p.Name != "" {
			return p.Name
		}
	}
	if fallback != "" {
		return fallback
	}
	return id
}
