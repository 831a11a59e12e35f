package game

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/kiliankoe/promptheist/internal/identity"
	"github.com/kiliankoe/promptheist/internal/judge"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrMissingRoom   = errors.New("room id required")
	ErrMissingWallet = errors.New("wallet required")
	ErrClosed        = errors.New("manager closed")
)

// RoundSource hands out the rounds of a new match.
type RoundSource interface {
	Draw(n int) ([]Round, error)
}

// Notifier receives a room's snapshot after every visible change. It is
// called from the room's goroutine and must not block.
type Notifier interface {
	RoomState(roomID string, snap Snapshot)
}

// Ledger credits experience once a match completes.
type Ledger interface {
	AddXP(ctx context.Context, identity string, amount int, displayName string) error
}

// Recorder archives completed matches.
type Recorder interface {
	RecordMatch(report MatchReport) error
}

// NameResolver returns the display name to use for a joining wallet.
type NameResolver interface {
	DisplayName(identity string) string
}

type nameFunc func(string) string

func (f nameFunc) DisplayName(identity string) string { return f(identity) }

// Deps are the collaborators and tunables shared by all rooms.
type Deps struct {
	Oracle   judge.Oracle
	Rounds   RoundSource
	Notifier Notifier
	Ledger   Ledger
	Recorder Recorder
	Names    NameResolver

	Timings          Timings
	RoundsPerMatch   int
	JudgeTimeout     time.Duration
	JudgeConcurrency int
	SettleTimeout    time.Duration
	Now              func() time.Time
}

func (d *Deps) fill() {
	if d.Timings == (Timings{}) {
		d.Timings = DefaultTimings()
	}
	if d.RoundsPerMatch <= 0 {
		d.RoundsPerMatch = 3
	}
	if d.JudgeTimeout <= 0 {
		d.JudgeTimeout = 20 * time.Second
	}
	if d.JudgeConcurrency <= 0 {
		d.JudgeConcurrency = 8
	}
	if d.SettleTimeout <= 0 {
		d.SettleTimeout = 10 * time.Second
	}
	if d.Names == nil {
		d.Names = nameFunc(identity.DefaultDisplayName)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Manager owns the lifecycle of every room. Each room is served by its own
// goroutine; the manager only routes commands to it.
type Manager struct {
	mu     sync.Mutex
	rooms  map[string]*actor
	deps   Deps
	closed bool

	settling sync.WaitGroup // completion side effects still running
}

func NewManager(deps Deps) *Manager {
	deps.fill()
	return &Manager{rooms: make(map[string]*actor), deps: deps}
}

// Join adds identity to a room, creating the room on first join.
func (m *Manager) Join(roomID, wallet string) error {
	wallet = NormalizeIdentity(wallet)
	if err := validate(roomID, wallet); err != nil {
		return err
	}
	return m.dispatch(roomID, true, func(a *actor) { a.join(wallet) })
}

func (m *Manager) Leave(roomID, wallet string) error {
	wallet = NormalizeIdentity(wallet)
	if err := validate(roomID, wallet); err != nil {
		return err
	}
	return m.dispatch(roomID, false, func(a *actor) { a.leave(wallet) })
}

// Start begins a new match. Only the host can start one.
func (m *Manager) Start(roomID, wallet string) error {
	wallet = NormalizeIdentity(wallet)
	if err := validate(roomID, wallet); err != nil {
		return err
	}
	return m.dispatch(roomID, false, func(a *actor) { a.start(wallet) })
}

func (m *Manager) Submit(roomID, wallet, roundID, text string) error {
	wallet = NormalizeIdentity(wallet)
	if err := validate(roomID, wallet); err != nil {
		return err
	}
	return m.dispatch(roomID, false, func(a *actor) { a.submit(wallet, roundID, text) })
}

func (m *Manager) CreateChallenge(roomID, wallet, roundID, reasonCode string) error {
	wallet = NormalizeIdentity(wallet)
	if err := validate(roomID, wallet); err != nil {
		return err
	}
	return m.dispatch(roomID, false, func(a *actor) { a.challenge(wallet, roundID, reasonCode) })
}

func (m *Manager) Vote(roomID, wallet string, yes bool) error {
	wallet = NormalizeIdentity(wallet)
	if err := validate(roomID, wallet); err != nil {
		return err
	}
	return m.dispatch(roomID, false, func(a *actor) { a.vote(wallet, yes) })
}

// Snapshot returns the current state of a room. Commands queued before the
// call are reflected in the result.
func (m *Manager) Snapshot(ctx context.Context, roomID string) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := m.dispatch(roomID, false, func(a *actor) { reply <- a.project() }); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Rooms lists the ids of all live rooms.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close stops every room and waits for their goroutines to exit, including
// the ledger and export work of matches that already completed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	actors := make([]*actor, 0, len(m.rooms))
	for id, a := range m.rooms {
		actors = append(actors, a)
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	for _, a := range actors {
		close(a.quit)
	}
	for _, a := range actors {
		<-a.done
	}
	m.settling.Wait()
}

func (m *Manager) dispatch(roomID string, create bool, fn func(a *actor)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	a := m.rooms[roomID]
	if a == nil {
		if !create {
			m.mu.Unlock()
			return ErrRoomNotFound
		}
		a = newActor(roomID, m)
		m.rooms[roomID] = a
		go a.run()
	}
	a.pending++
	m.mu.Unlock()

	select {
	case a.inbox <- func() { fn(a) }:
		return nil
	case <-a.done:
		return ErrClosed
	}
}

// release forgets an empty room once nothing else is queued for it.
func (m *Manager) release(a *actor) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.pending--
	if a.pending > 0 || !a.room.Empty() {
		return false
	}
	if m.rooms[a.id] == a {
		delete(m.rooms, a.id)
	}
	return true
}

func validate(roomID, wallet string) error {
	if roomID == "" {
		return ErrMissingRoom
	}
	if wallet == "" {
		return ErrMissingWallet
	}
	return nil
}
