package game

import (
	"cmp"
	"slices"
	"sort"
)

// FinalEntry is one participant's standing at the end of a match.
type FinalEntry struct {
	Identity     string `json:"wallet"`
	TotalXP      int    `json:"totalXp"`
	RoundsPlayed int    `json:"roundsPlayed"`
}

// sortEntries orders by score, highest first, keeping insertion order on ties.
func sortEntries(entries []ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}

// RoundLeaderboard returns a copy of a round's scored entries.
func (m *Match) RoundLeaderboard(roundID string) []ScoreEntry {
	return append([]ScoreEntry(nil), m.leaderboards[roundID]...)
}

// Leaderboards returns copies of every round leaderboard produced so far.
func (m *Match) Leaderboards() map[string][]ScoreEntry {
	out := make(map[string][]ScoreEntry, len(m.leaderboards))
	for id, board := range m.leaderboards {
		out[id] = append([]ScoreEntry(nil), board...)
	}
	return out
}

// FinalLeaderboard sums each submitter's XP over the rounds they played. It
// is nil until the match has completed.
func (m *Match) FinalLeaderboard() []FinalEntry {
	if !m.Completed() {
		return nil
	}
	totals := make(map[string]*FinalEntry)
	var order []string
	for _, round := range m.Rounds {
		xpByIdentity := make(map[string]int)
		for _, e := range m.leaderboards[round.ID] {
			xpByIdentity[e.Identity] = e.XP
		}
		for _, identity := range m.submitOrder[round.ID] {
			fe, ok := totals[identity]
			if !ok {
				fe = &FinalEntry{Identity: identity}
				totals[identity] = fe
				order = append(order, identity)
			}
			fe.RoundsPlayed++
			fe.TotalXP += xpByIdentity[identity]
		}
	}
	out := make([]FinalEntry, 0, len(order))
	for _, identity := range order {
		out = append(out, *totals[identity])
	}
	slices.SortFunc(out, func(a, b FinalEntry) int {
		if c := cmp.Compare(b.TotalXP, a.TotalXP); c != 0 {
			return c
		}
		if c := cmp.Compare(b.RoundsPlayed, a.RoundsPlayed); c != 0 {
			return c
		}
		return cmp.Compare(a.Identity, b.Identity)
	})
	return out
}
