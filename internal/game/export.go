package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MatchReport is the archived form of a completed match.
type MatchReport struct {
	RoomID     string
	MatchID    string
	FinishedAt time.Time
	Names      map[string]string
	Rounds     []RoundReport
	Final      []FinalEntry
}

type RoundReport struct {
	Round       Round
	Leaderboard []ScoreEntry
	Challenge   *ChallengeOutcome
}

func NewMatchReport(roomID string, m *Match, names map[string]string, now time.Time) MatchReport {
	r := MatchReport{
		RoomID:     roomID,
		MatchID:    m.ID,
		FinishedAt: now,
		Names:      names,
		Final:      m.FinalLeaderboard(),
	}
	for _, round := range m.Rounds {
		rr := RoundReport{Round: round, Leaderboard: m.RoundLeaderboard(round.ID)}
		if o, ok := m.Outcome(round.ID); ok {
			rr.Challenge = &o
		}
		r.Rounds = append(r.Rounds, rr)
	}
	return r
}

// FileExporter appends a plain-text report of every completed match to a file.
type FileExporter struct {
	Path string
	mu   sync.Mutex
}

func NewFileExporter(path string) *FileExporter {
	return &FileExporter{Path: path}
}

func (e *FileExporter) RecordMatch(r MatchReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.Path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	_, statErr := os.Stat(e.Path)
	fileExists := statErr == nil

	file, err := os.OpenFile(e.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	if fileExists {
		sb.WriteString("\n\n")
	}
	name := func(wallet string) string {
		if n := r.Names[wallet]; n != "" {
			return n
		}
		return wallet
	}

	fmt.Fprintf(&sb, "Prompt Heist Results - Room %s, Match %s\n", r.RoomID, r.MatchID)
	fmt.Fprintf(&sb, "Finished: %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	for i, rr := range r.Rounds {
		fmt.Fprintf(&sb, "Round %d: %s\n", i+1, rr.Round.ID)
		fmt.Fprintf(&sb, "Secret: %q\n", rr.Round.Secret)
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		if len(rr.Leaderboard) == 0 {
			sb.WriteString("(no submissions)\n")
		}
		for _, e := range rr.Leaderboard {
			fallback := ""
			if e.Fallback {
				fallback = " [fallback]"
			}
			fmt.Fprintf(&sb, "- %s: %d (%d xp)%s %s\n", name(e.Identity), e.Score, e.XP, fallback, e.Reasoning)
		}
		if c := rr.Challenge; c != nil {
			result := "failed"
			if c.Passed {
				result = "passed"
			}
			fmt.Fprintf(&sb, "Challenge (%s): %d yes / %d no, %s\n", c.ReasonCode, c.Yes, c.No, result)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Final standings:\n")
	for _, f := range r.Final {
		fmt.Fprintf(&sb, "- %s: %d xp over %d round(s)\n", name(f.Identity), f.TotalXP, f.RoundsPlayed)
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
