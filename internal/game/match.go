package game

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrNoRounds = errors.New("match needs at least one round")

// Match is the phase state machine of one play-through. All methods are pure
// state transitions driven by the caller's clock; a false return means the
// command was not applicable and nothing changed.
type Match struct {
	ID         string
	Rounds     []Round
	RoundIndex int
	Phase      Phase
	Deadline   time.Time
	Challenge  *Challenge

	submissions  map[string]map[string]string // roundID -> identity -> text
	submitOrder  map[string][]string          // roundID -> identities in first-submission order
	leaderboards map[string][]ScoreEntry
	outcomes     map[string]ChallengeOutcome
	sealed       bool
	timings      Timings
}

func NewMatch(id string, rounds []Round, timings Timings, now time.Time) (*Match, error) {
	if len(rounds) == 0 {
		return nil, ErrNoRounds
	}
	m := &Match{
		ID:           id,
		Rounds:       append([]Round(nil), rounds...),
		Phase:        PhaseReveal,
		Deadline:     now.Add(timings.Reveal),
		submissions:  make(map[string]map[string]string),
		submitOrder:  make(map[string][]string),
		leaderboards: make(map[string][]ScoreEntry),
		outcomes:     make(map[string]ChallengeOutcome),
		timings:      timings,
	}
	return m, nil
}

// CurrentRound returns the active round. It stays on the last round once the
// match is completed.
func (m *Match) CurrentRound() (Round, bool) {
	if m.RoundIndex < 0 || m.RoundIndex >= len(m.Rounds) {
		return Round{}, false
	}
	return m.Rounds[m.RoundIndex], true
}

func (m *Match) Completed() bool {
	return m.Phase == PhaseCompleted
}

// Judging reports whether the submit phase has closed and scores are pending.
func (m *Match) Judging() bool {
	return m.sealed
}

// SanitizeSubmission trims surrounding whitespace and keeps at most
// MaxSubmissionRunes runes.
func SanitizeSubmission(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= MaxSubmissionRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:MaxSubmissionRunes]))
}

// Submit records identity's guess for the active round, replacing any earlier one.
func (m *Match) Submit(identity, roundID, text string) bool {
	if m.Phase != PhaseSubmit || m.sealed || identity == "" {
		return false
	}
	round, ok := m.CurrentRound()
	if !ok || round.ID != roundID {
		return false
	}
	text = SanitizeSubmission(text)
	if text == "" {
		return false
	}
	subs := m.submissions[roundID]
	if subs == nil {
		subs = make(map[string]string)
		m.submissions[roundID] = subs
	}
	prev, seen := subs[identity]
	if seen && prev == text {
		return false
	}
	if !seen {
		m.submitOrder[roundID] = append(m.submitOrder[roundID], identity)
	}
	subs[identity] = text
	return true
}

// Submission returns the stored guess of identity for a round.
func (m *Match) Submission(roundID, identity string) (string, bool) {
	text, ok := m.submissions[roundID][identity]
	return text, ok
}

// Submitters lists who has submitted for a round, in first-submission order.
func (m *Match) Submitters(roundID string) []string {
	return append([]string(nil), m.submitOrder[roundID]...)
}

// Due reports whether the phase deadline has passed and a transition is owed.
func (m *Match) Due(now time.Time) bool {
	return m.Phase != PhaseCompleted && !m.sealed && !now.Before(m.Deadline)
}

// Advance performs at most one phase transition. When the submit phase
// expires the round is sealed and a ScoringJob is returned; the transition to
// verdict happens in ApplyScores once the job is done.
func (m *Match) Advance(now time.Time) (bool, *ScoringJob) {
	if !m.Due(now) {
		return false, nil
	}
	switch m.Phase {
	case PhaseReveal:
		m.enter(PhaseSubmit, now.Add(m.timings.Submit))
	case PhaseSubmit:
		round, _ := m.CurrentRound()
		m.sealed = true
		job := &ScoringJob{MatchID: m.ID, RoundID: round.ID, Secret: round.Secret}
		for _, identity := range m.submitOrder[round.ID] {
			job.Submissions = append(job.Submissions, Submission{
				Identity: identity,
				Text:     m.submissions[round.ID][identity],
			})
		}
		return true, job
	case PhaseVerdict:
		m.enter(PhaseChallengeWindow, now.Add(m.timings.ChallengeWindow))
	case PhaseChallengeWindow:
		if m.Challenge != nil {
			m.enter(PhaseChallengeVote, m.Challenge.Deadline)
			return true, nil
		}
		m.nextRound(now)
	case PhaseChallengeVote:
		m.resolveChallenge()
		m.nextRound(now)
	default:
		return false, nil
	}
	return true, nil
}

// ApplyScores stores the judged entries of the sealed round and opens the
// verdict phase. Entries for identities that did not submit are ignored.
func (m *Match) ApplyScores(roundID string, entries []ScoreEntry, now time.Time) bool {
	if m.Phase != PhaseSubmit || !m.sealed {
		return false
	}
	round, ok := m.CurrentRound()
	if !ok || round.ID != roundID {
		return false
	}
	subs := m.submissions[roundID]
	seen := make(map[string]bool, len(entries))
	board := make([]ScoreEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := subs[e.Identity]; !ok || seen[e.Identity] {
			continue
		}
		seen[e.Identity] = true
		e.Score = clampScore(e.Score)
		if e.XP < 0 {
			e.XP = 0
		}
		board = append(board, e)
	}
	sortEntries(board)
	m.leaderboards[roundID] = board
	m.sealed = false
	m.enter(PhaseVerdict, now.Add(m.timings.Verdict))
	return true
}

func (m *Match) enter(phase Phase, deadline time.Time) {
	m.Phase = phase
	m.Deadline = deadline
}

func (m *Match) nextRound(now time.Time) {
	if m.RoundIndex+1 >= len(m.Rounds) {
		m.enter(PhaseCompleted, time.Time{})
		return
	}
	m.RoundIndex++
	m.enter(PhaseReveal, now.Add(m.timings.Reveal))
}

func clampScore(score int) int {
	return max(0, min(100, score))
}
