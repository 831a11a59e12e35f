package game

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestProjectWithoutMatch(t *testing.T) {
	r := NewRoom("r1")
	r.Join("0xa", "alice", t0)
	r.Join("0xb", "bob", t0)
	snap := Project(r, nil, t0)
	if snap.RoomID != "r1" || snap.Host != "0xa" || snap.Match != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Members) != 2 || !snap.Members[0].IsHost || snap.Members[1].IsHost {
		t.Fatalf("unexpected members %+v", snap.Members)
	}
}

func TestProjectNeverLeaksSecretsOrGuesses(t *testing.T) {
	r := NewRoom("r1")
	r.Join("0xa", "alice", t0)
	m := newTestMatch(t, 2)
	advanceTo(t, m, PhaseSubmit)
	m.Submit("0xa", "case-a", "my private guess")

	snap := Project(r, m, m.Deadline.Add(-10*time.Second))
	if snap.Match.Round == nil || snap.Match.Round.ID != "case-a" || snap.Match.Round.Secret != "" {
		t.Fatalf("unexpected round view %+v", snap.Match.Round)
	}
	if len(snap.Match.Submitted) != 1 || snap.Match.Submitted[0] != "0xa" {
		t.Fatalf("expected submitter list, got %v", snap.Match.Submitted)
	}
	if snap.Match.RemainingMs != 10000 {
		t.Fatalf("expected 10000ms remaining, got %d", snap.Match.RemainingMs)
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, leak := range []string{"secret a", "secret b", "my private guess"} {
		if strings.Contains(string(b), leak) {
			t.Fatalf("snapshot leaked %q: %s", leak, b)
		}
	}
}

func TestProjectChallengeAndFinal(t *testing.T) {
	r := NewRoom("r1")
	r.Join("0xa", "alice", t0)
	m := matchInWindow(t, 1, map[string]int{"0xa": 70})
	m.OpenChallenge("0xa", "", "too_harsh", m.Deadline)
	m.CastVote("0xa", true)

	snap := Project(r, m, m.Deadline)
	ch := snap.Match.Challenge
	if ch == nil || ch.Yes != 1 || ch.No != 0 || ch.EndsAt != m.Deadline.UnixMilli() {
		t.Fatalf("unexpected challenge view %+v", ch)
	}
	if snap.Match.RemainingMs != 0 {
		t.Fatalf("expected zero remaining at deadline, got %d", snap.Match.RemainingMs)
	}

	m.Advance(m.Deadline)
	snap = Project(r, m, m.Deadline)
	if snap.Match.Phase != PhaseCompleted || len(snap.Match.Final) != 1 || snap.Match.Final[0].TotalXP != 73 {
		t.Fatalf("unexpected completed view %+v", snap.Match)
	}
	if len(snap.Match.Outcomes) != 1 || !snap.Match.Outcomes[0].Passed {
		t.Fatalf("expected passed outcome, got %+v", snap.Match.Outcomes)
	}
	if snap.Match.PhaseEndsAt != 0 {
		t.Fatalf("expected no deadline once completed, got %d", snap.Match.PhaseEndsAt)
	}
}
