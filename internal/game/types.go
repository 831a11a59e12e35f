package game

import (
	"time"
)

type Phase string

const (
	PhaseReveal          Phase = "reveal"
	PhaseSubmit          Phase = "submit"
	PhaseVerdict         Phase = "verdict"
	PhaseChallengeWindow Phase = "challenge_window"
	PhaseChallengeVote   Phase = "challenge_vote"
	PhaseCompleted       Phase = "completed"
)

const (
	// MaxSubmissionRunes bounds a stored guess after trimming.
	MaxSubmissionRunes = 240
	// AppealBonus is added to every entry of a round whose challenge passes.
	AppealBonus = 3
	// DefaultReasonCode is used when a challenge is created without one.
	DefaultReasonCode = "too_harsh"
)

// Timings holds the length of every timed phase.
type Timings struct {
	Reveal          time.Duration
	Submit          time.Duration
	Verdict         time.Duration
	ChallengeWindow time.Duration
	ChallengeVote   time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Reveal:          30 * time.Second,
		Submit:          75 * time.Second,
		Verdict:         20 * time.Second,
		ChallengeWindow: 20 * time.Second,
		ChallengeVote:   120 * time.Second,
	}
}

// Round is one case of a match. Secret is the hidden prompt and never leaves the server.
type Round struct {
	ID       string `json:"roundId"`
	ImageURL string `json:"imageUrl"`
	Theme    string `json:"theme,omitempty"`
	Secret   string `json:"-"`
}

type Profile struct {
	Identity    string    `json:"wallet"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type ScoreEntry struct {
	Identity  string `json:"wallet"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
	XP        int    `json:"xp"`
	Fallback  bool   `json:"fallback,omitempty"`
}

type Challenge struct {
	RoundID    string          `json:"roundId"`
	ReasonCode string          `json:"reasonCode"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
	Deadline   time.Time       `json:"endsAt"`
	Votes      map[string]bool `json:"votes"`
}

// ChallengeOutcome is what remains of a challenge once voting has closed.
type ChallengeOutcome struct {
	RoundID    string `json:"roundId"`
	ReasonCode string `json:"reasonCode"`
	Yes        int    `json:"yes"`
	No         int    `json:"no"`
	Passed     bool   `json:"passed"`
}

// Submission is one guess waiting to be judged.
type Submission struct {
	Identity string
	Text     string
}

// ScoringJob is handed out when the submit phase of a round closes.
type ScoringJob struct {
	MatchID     string
	RoundID     string
	Secret      string
	Submissions []Submission
}
