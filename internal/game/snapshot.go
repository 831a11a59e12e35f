package game

import (
	"maps"
	"time"
)

// Snapshot is the externally visible state of a room. It never carries a
// round's secret or another participant's guess text.
type Snapshot struct {
	RoomID  string     `json:"roomId"`
	Host    string     `json:"host"`
	Members []Member   `json:"members"`
	Match   *MatchView `json:"match"`
}

type Member struct {
	Identity    string `json:"wallet"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

type MatchView struct {
	ID          string                  `json:"id"`
	RoundIndex  int                     `json:"currentRoundIndex"`
	RoundCount  int                     `json:"roundCount"`
	Phase       Phase                   `json:"phase"`
	PhaseEndsAt int64                   `json:"phaseEndsAt"`
	RemainingMs int64                   `json:"remainingMs"`
	Judging     bool                    `json:"judging"`
	Round       *Round                  `json:"round"`
	Submitted   []string                `json:"submitted"`
	Leaderboard map[string][]ScoreEntry `json:"leaderboard"`
	Challenge   *ChallengeView          `json:"challenge"`
	Outcomes    []ChallengeOutcome      `json:"challengeOutcomes"`
	Final       []FinalEntry            `json:"finalLeaderboard,omitempty"`
}

type ChallengeView struct {
	RoundID    string          `json:"roundId"`
	ReasonCode string          `json:"reasonCode"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  int64           `json:"createdAt"`
	EndsAt     int64           `json:"endsAt"`
	Votes      map[string]bool `json:"votes"`
	Yes        int             `json:"yes"`
	No         int             `json:"no"`
}

// Project builds the snapshot of a room and its match, if any.
func Project(room *Room, match *Match, now time.Time) Snapshot {
	snap := Snapshot{RoomID: room.ID, Host: room.Host, Members: []Member{}}
	for _, p := range room.Members() {
		snap.Members = append(snap.Members, Member{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			IsHost:      p.Identity == room.Host,
		})
	}
	if match != nil {
		snap.Match = projectMatch(match, now)
	}
	return snap
}

func projectMatch(m *Match, now time.Time) *MatchView {
	view := &MatchView{
		ID:          m.ID,
		RoundIndex:  m.RoundIndex,
		RoundCount:  len(m.Rounds),
		Phase:       m.Phase,
		Judging:     m.sealed,
		Leaderboard: m.Leaderboards(),
		Outcomes:    []ChallengeOutcome{},
		Submitted:   []string{},
	}
	if !m.Deadline.IsZero() {
		view.PhaseEndsAt = m.Deadline.UnixMilli()
		view.RemainingMs = max(0, m.Deadline.Sub(now).Milliseconds())
	}
	if round, ok := m.CurrentRound(); ok {
		round.Secret = ""
		view.Round = &round
		view.Submitted = m.Submitters(round.ID)
	}
	for _, round := range m.Rounds {
		if o, ok := m.outcomes[round.ID]; ok {
			view.Outcomes = append(view.Outcomes, o)
		}
	}
	if ch := m.Challenge; ch != nil {
		yes, no := Tally(ch.Votes)
		view.Challenge = &ChallengeView{
			RoundID:    ch.RoundID,
			ReasonCode: ch.ReasonCode,
			CreatedBy:  ch.CreatedBy,
			CreatedAt:  ch.CreatedAt.UnixMilli(),
			EndsAt:     ch.Deadline.UnixMilli(),
			Votes:      maps.Clone(ch.Votes),
			Yes:        yes,
			No:         no,
		}
	}
	view.Final = m.FinalLeaderboard()
	return view
}
