package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type scoredRound struct {
	matchID string
	roundID string
	entries []ScoreEntry
}

// actor is the single writer of one room. Commands, timer fires and scoring
// results are all applied on its goroutine, in arrival order.
type actor struct {
	id string
	m  *Manager

	inbox  chan func()
	scored chan scoredRound
	quit   chan struct{}
	done   chan struct{}

	pending int // guarded by m.mu

	room    *Room
	match   *Match
	timer   *time.Timer
	settled string

	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

func newActor(id string, m *Manager) *actor {
	ctx, cancel := context.WithCancel(context.Background())
	return &actor{
		id:     id,
		m:      m,
		inbox:  make(chan func(), 64),
		scored: make(chan scoredRound),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		room:   NewRoom(id),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("room", id).Logger(),
	}
}

func (a *actor) run() {
	defer close(a.done)
	defer a.stop()
	a.log.Info().Msg("room opened")
	for {
		select {
		case fn := <-a.inbox:
			fn()
			if a.m.release(a) {
				a.log.Info().Msg("room closed")
				return
			}
		case <-a.timerC():
			a.timer = nil
			a.tick()
		case res := <-a.scored:
			a.applyScores(res)
		case <-a.quit:
			return
		}
	}
}

func (a *actor) stop() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.cancel()
}

func (a *actor) now() time.Time {
	return a.m.deps.Now()
}

func (a *actor) timerC() <-chan time.Time {
	if a.timer == nil {
		return nil
	}
	return a.timer.C
}

// arm points the timer at the current phase deadline. Nothing is armed while
// a round is being judged; the scoring result restarts the clock.
func (a *actor) arm() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.match == nil || a.match.Completed() || a.match.Judging() {
		return
	}
	a.timer = time.NewTimer(max(0, a.match.Deadline.Sub(a.now())))
}

func (a *actor) project() Snapshot {
	return Project(a.room, a.match, a.now())
}

func (a *actor) publish() {
	if n := a.m.deps.Notifier; n != nil {
		n.RoomState(a.id, a.project())
	}
}

func (a *actor) join(wallet string) {
	if a.room.Join(wallet, a.m.deps.Names.DisplayName(wallet), a.now()) {
		a.log.Info().Str("wallet", wallet).Int("members", a.room.Len()).Msg("room:join")
		a.publish()
	}
}

func (a *actor) leave(wallet string) {
	if !a.room.Leave(wallet) {
		return
	}
	a.log.Info().Str("wallet", wallet).Str("host", a.room.Host).Msg("room:leave")
	a.publish()
}

func (a *actor) start(wallet string) {
	if !a.room.IsHost(wallet) {
		a.log.Debug().Str("wallet", wallet).Msg("match:start ignored, not host")
		return
	}
	if a.m.deps.Rounds == nil {
		a.log.Error().Msg("match:start ignored, no round source")
		return
	}
	rounds, err := a.m.deps.Rounds.Draw(a.m.deps.RoundsPerMatch)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to draw rounds")
		return
	}
	match, err := NewMatch(uuid.NewString(), rounds, a.m.deps.Timings, a.now())
	if err != nil {
		a.log.Error().Err(err).Msg("failed to start match")
		return
	}
	// drop any judging still running for the previous match
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.match = match
	a.log.Info().Str("match", match.ID).Int("rounds", len(rounds)).Msg("match:start")
	a.publish()
	a.arm()
}

func (a *actor) submit(wallet, roundID, text string) {
	if a.match == nil || !a.room.IsMember(wallet) {
		return
	}
	if !a.match.Submit(wallet, roundID, text) {
		a.log.Debug().Str("wallet", wallet).Str("round", roundID).Str("phase", string(a.match.Phase)).Msg("round:submit ignored")
		return
	}
	a.log.Info().Str("wallet", wallet).Str("round", roundID).Msg("round:submit")
	a.publish()
}

func (a *actor) challenge(wallet, roundID, reasonCode string) {
	if a.match == nil || !a.room.IsMember(wallet) {
		return
	}
	if !a.match.OpenChallenge(wallet, roundID, reasonCode, a.now()) {
		a.log.Debug().Str("wallet", wallet).Str("phase", string(a.match.Phase)).Msg("challenge:create ignored")
		return
	}
	a.log.Info().Str("wallet", wallet).Str("round", a.match.Challenge.RoundID).Str("reason", a.match.Challenge.ReasonCode).Msg("challenge:create")
	a.publish()
	a.arm()
}

func (a *actor) vote(wallet string, yes bool) {
	if a.match == nil || !a.room.IsMember(wallet) {
		return
	}
	if !a.match.CastVote(wallet, yes) {
		return
	}
	a.log.Info().Str("wallet", wallet).Bool("yes", yes).Msg("challenge:vote")
	a.publish()
}

// tick applies the transition owed by an expired deadline, if any.
func (a *actor) tick() {
	if a.match == nil {
		return
	}
	from := a.match.Phase
	changed, job := a.match.Advance(a.now())
	if !changed {
		a.arm()
		return
	}
	if job != nil {
		a.log.Info().Str("round", job.RoundID).Int("submissions", len(job.Submissions)).Msg("judging round")
		a.score(job)
	} else {
		a.log.Info().Str("from", string(from)).Str("to", string(a.match.Phase)).Msg("phase transition")
	}
	a.publish()
	a.settle()
	a.arm()
}

func (a *actor) score(job *ScoringJob) {
	ctx, deps, logger := a.ctx, a.m.deps, a.log
	go func() {
		entries := ScoreJob(ctx, deps.Oracle, job, deps.JudgeTimeout, deps.JudgeConcurrency, logger)
		select {
		case a.scored <- scoredRound{matchID: job.MatchID, roundID: job.RoundID, entries: entries}:
		case <-a.done:
		}
	}()
}

func (a *actor) applyScores(res scoredRound) {
	if a.match == nil || a.match.ID != res.matchID {
		a.log.Debug().Str("match", res.matchID).Msg("dropping scores of a stale match")
		return
	}
	if !a.match.ApplyScores(res.roundID, res.entries, a.now()) {
		a.log.Debug().Str("round", res.roundID).Msg("dropping scores of a stale round")
		return
	}
	a.log.Info().Str("from", string(PhaseSubmit)).Str("to", string(a.match.Phase)).Int("scored", len(res.entries)).Msg("phase transition")
	a.publish()
	a.arm()
}

// settle runs the completion side effects once per match, off the room goroutine.
func (a *actor) settle() {
	m := a.match
	if m == nil || !m.Completed() || a.settled == m.ID {
		return
	}
	a.settled = m.ID
	final := m.FinalLeaderboard()
	names := make(map[string]string, len(final))
	for _, e := range final {
		name := a.room.DisplayName(e.Identity)
		if name == "" {
			name = a.m.deps.Names.DisplayName(e.Identity)
		}
		names[e.Identity] = name
	}
	report := NewMatchReport(a.id, m, names, a.now())
	deps, logger := a.m.deps, a.log
	logger.Info().Str("match", m.ID).Int("players", len(final)).Msg("match completed")

	a.m.settling.Add(1)
	go func() {
		defer a.m.settling.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deps.SettleTimeout)
		defer cancel()
		if deps.Ledger != nil {
			for _, e := range final {
				if err := deps.Ledger.AddXP(ctx, e.Identity, e.TotalXP, names[e.Identity]); err != nil {
					logger.Error().Err(err).Str("wallet", e.Identity).Msg("failed to credit xp")
				}
			}
		}
		if deps.Recorder != nil {
			if err := deps.Recorder.RecordMatch(report); err != nil {
				logger.Error().Err(err).Str("match", report.MatchID).Msg("failed to export match")
			} else {
				logger.Info().Str("match", report.MatchID).Msg("exported match")
			}
		}
	}()
}
