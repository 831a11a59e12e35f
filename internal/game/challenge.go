package game

import (
	"fmt"
	"time"
)

// OpenChallenge starts the appeal of the active round. It is only accepted
// during the challenge window, once per round, and moves the match straight
// into voting with the challenge's own deadline.
func (m *Match) OpenChallenge(identity, roundID, reasonCode string, now time.Time) bool {
	if m.Phase != PhaseChallengeWindow || m.Challenge != nil || identity == "" {
		return false
	}
	round, ok := m.CurrentRound()
	if !ok {
		return false
	}
	if roundID == "" {
		roundID = round.ID
	}
	if roundID != round.ID {
		return false
	}
	if _, resolved := m.outcomes[roundID]; resolved {
		return false
	}
	if reasonCode == "" {
		reasonCode = DefaultReasonCode
	}
	m.Challenge = &Challenge{
		RoundID:    roundID,
		ReasonCode: reasonCode,
		CreatedBy:  identity,
		CreatedAt:  now,
		Deadline:   now.Add(m.timings.ChallengeVote),
		Votes:      make(map[string]bool),
	}
	m.enter(PhaseChallengeVote, m.Challenge.Deadline)
	return true
}

// CastVote records identity's vote; a later vote replaces the earlier one.
func (m *Match) CastVote(identity string, yes bool) bool {
	if m.Phase != PhaseChallengeVote || m.Challenge == nil || identity == "" {
		return false
	}
	if prev, ok := m.Challenge.Votes[identity]; ok && prev == yes {
		return false
	}
	m.Challenge.Votes[identity] = yes
	return true
}

// Tally counts yes and no votes.
func Tally(votes map[string]bool) (yes, no int) {
	for _, v := range votes {
		if v {
			yes++
		} else {
			no++
		}
	}
	return yes, no
}

// resolveChallenge closes the vote. A strict yes majority lifts every entry of
// the round by AppealBonus; ties fail. The challenge is always cleared.
func (m *Match) resolveChallenge() {
	ch := m.Challenge
	if ch == nil {
		return
	}
	yes, no := Tally(ch.Votes)
	passed := yes > no
	if passed {
		board := m.leaderboards[ch.RoundID]
		for i := range board {
			raised := clampScore(board[i].Score + AppealBonus)
			board[i].XP += raised - board[i].Score
			board[i].Score = raised
			board[i].Reasoning += fmt.Sprintf(" (+%d after a successful appeal)", AppealBonus)
		}
		sortEntries(board)
	}
	m.outcomes[ch.RoundID] = ChallengeOutcome{
		RoundID:    ch.RoundID,
		ReasonCode: ch.ReasonCode,
		Yes:        yes,
		No:         no,
		Passed:     passed,
	}
	m.Challenge = nil
}

// Outcome returns the resolved challenge of a round, if any.
func (m *Match) Outcome(roundID string) (ChallengeOutcome, bool) {
	o, ok := m.outcomes[roundID]
	return o, ok
}
