package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/gorilla/websocket"
	"github.com/kiliankoe/promptheist/internal/game"
)

// fakeGames records every call and keeps room membership like the manager.
type fakeGames struct {
	mu      sync.Mutex
	snaps   map[string]game.Snapshot
	members map[string]map[string]bool
	calls   []string
}

func newFakeGames() *fakeGames {
	return &fakeGames{snaps: map[string]game.Snapshot{}, members: map[string]map[string]bool{}}
}

func (f *fakeGames) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGames) Join(roomID, wallet string) error {
	f.record("join " + roomID + " " + wallet)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[roomID] == nil {
		f.members[roomID] = map[string]bool{}
	}
	f.members[roomID][wallet] = true
	return nil
}

func (f *fakeGames) Leave(roomID, wallet string) error {
	f.record("leave " + roomID + " " + wallet)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[roomID], wallet)
	return nil
}

func (f *fakeGames) Start(roomID, wallet string) error {
	f.record("start " + roomID + " " + wallet)
	return nil
}

func (f *fakeGames) Submit(roomID, wallet, roundID, text string) error {
	f.record("submit " + roomID + " " + wallet + " " + roundID + " " + text)
	return nil
}

func (f *fakeGames) CreateChallenge(roomID, wallet, roundID, reasonCode string) error {
	f.record("challenge " + roomID + " " + wallet + " " + reasonCode)
	return nil
}

func (f *fakeGames) Vote(roomID, wallet string, yes bool) error {
	f.record(fmt.Sprintf("vote %s %s %t", roomID, wallet, yes))
	return nil
}

func (f *fakeGames) Snapshot(_ context.Context, roomID string) (game.Snapshot, error) {
	snap, ok := f.snaps[roomID]
	if !ok {
		return game.Snapshot{}, game.ErrRoomNotFound
	}
	return snap, nil
}

func (f *fakeGames) memberList(roomID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for w := range f.members[roomID] {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// fakeConn stands in for a socket.io connection. Methods it does not
// override panic through the nil embedded interface.
type fakeConn struct {
	socketio.Conn
	id    string
	ctx   any
	rooms map[string]bool
	emits []string
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, rooms: map[string]bool{}}
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) Context() any { return c.ctx }
func (c *fakeConn) SetContext(v any) { c.ctx = v }
func (c *fakeConn) Join(room string) { c.rooms[room] = true }
func (c *fakeConn) Leave(room string) { delete(c.rooms, room) }
func (c *fakeConn) Emit(event string, _ ...any) { c.emits = append(c.emits, event) }

const (
	walletA = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	walletB = "0x9e8f2c7a4b1d3e5f60718293a4b5c6d7e8f90a1b"
)

func newTestServer(t *testing.T) (*Server, *fakeGames) {
	t.Helper()
	srv, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	games := newFakeGames()
	srv.SetGames(games)
	return srv, games
}

func connect(t *testing.T, srv *Server, id string) *fakeConn {
	t.Helper()
	c := newFakeConn(id)
	if err := srv.onConnect(c); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

func TestJoinThenDisconnectLeavesRoom(t *testing.T) {
	srv, games := newTestServer(t)
	c := connect(t, srv, "s1")

	if resp := srv.onJoin(c, roomPayload{RoomID: "r1", Wallet: walletA}); resp["ok"] != true {
		t.Fatalf("expected ok, got %v", resp)
	}
	a := game.NormalizeIdentity(walletA)
	if got := games.memberList("r1"); len(got) != 1 || got[0] != a {
		t.Fatalf("expected %s in room, got %v", a, got)
	}
	if !c.rooms["r1"] {
		t.Fatal("expected socket to join the broadcast room")
	}

	srv.onDisconnect(c, "transport close")
	if got := games.memberList("r1"); len(got) != 0 {
		t.Fatalf("expected room to be empty after disconnect, got %v", got)
	}
}

func TestSecondSocketKeepsWalletPresent(t *testing.T) {
	srv, games := newTestServer(t)
	c1 := connect(t, srv, "s1")
	c2 := connect(t, srv, "s2")
	srv.onJoin(c1, roomPayload{RoomID: "r1", Wallet: walletA})
	srv.onJoin(c2, roomPayload{RoomID: "r1", Wallet: walletA})

	srv.onDisconnect(c1, "transport close")
	if got := games.memberList("r1"); len(got) != 1 {
		t.Fatalf("expected wallet to stay while a second socket is open, got %v", got)
	}
	srv.onDisconnect(c2, "transport close")
	if got := games.memberList("r1"); len(got) != 0 {
		t.Fatalf("expected wallet to leave with its last socket, got %v", got)
	}
}

func TestWalletSwitchReleasesPreviousWallet(t *testing.T) {
	srv, games := newTestServer(t)
	c := connect(t, srv, "s1")
	srv.onJoin(c, roomPayload{RoomID: "r1", Wallet: walletA})
	srv.onJoin(c, roomPayload{RoomID: "r1", Wallet: walletB})

	b := game.NormalizeIdentity(walletB)
	if got := games.memberList("r1"); len(got) != 1 || got[0] != b {
		t.Fatalf("expected only %s after switching, got %v", b, got)
	}
	if !c.rooms["r1"] {
		t.Fatal("expected socket to stay in the broadcast room")
	}

	srv.onDisconnect(c, "transport close")
	if got := games.memberList("r1"); len(got) != 0 {
		t.Fatalf("expected room to be empty after disconnect, got %v", got)
	}
	if len(srv.presence) != 0 {
		t.Fatalf("expected no presence left, got %v", srv.presence)
	}
}

func TestExplicitLeave(t *testing.T) {
	srv, games := newTestServer(t)
	c := connect(t, srv, "s1")
	srv.onJoin(c, roomPayload{RoomID: "r1", Wallet: walletA})
	if resp := srv.onLeave(c, roomPayload{RoomID: "r1", Wallet: walletA}); resp["ok"] != true {
		t.Fatalf("expected ok, got %v", resp)
	}
	if c.rooms["r1"] || len(games.memberList("r1")) != 0 {
		t.Fatal("expected socket and wallet to have left")
	}

	before := len(games.calls)
	srv.onDisconnect(c, "transport close")
	if len(games.calls) != before {
		t.Fatalf("expected no further calls after an explicit leave, got %v", games.calls[before:])
	}
}

func TestCommandsReachGames(t *testing.T) {
	srv, games := newTestServer(t)
	c := connect(t, srv, "s1")

	srv.onStart(c, roomPayload{RoomID: "r1", Wallet: walletA})
	srv.onSubmit(c, submitPayload{RoomID: "r1", Wallet: walletA, RoundID: "case-a", Text: "a cat"})
	srv.onChallenge(c, challengePayload{RoomID: "r1", Wallet: walletA, ReasonCode: "off_topic"})
	srv.onVote(c, votePayload{RoomID: "r1", Wallet: walletA, VoteYes: true})

	want := []string{
		"start r1 " + walletA,
		"submit r1 " + walletA + " case-a a cat",
		"challenge r1 " + walletA + " off_topic",
		"vote r1 " + walletA + " true",
	}
	if len(games.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), games.calls)
	}
	for i := range want {
		if !strings.EqualFold(games.calls[i], want[i]) {
			t.Fatalf("expected %q, got %q", want[i], games.calls[i])
		}
	}
}

func TestInvalidPayloadIsRejected(t *testing.T) {
	srv, games := newTestServer(t)
	c := connect(t, srv, "s1")

	resp := srv.onChallenge(c, challengePayload{RoomID: "r1", Wallet: walletA, ReasonCode: "rigged"})
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected error reply, got %v", resp)
	}
	srv.onJoin(c, roomPayload{RoomID: "r1", Wallet: "alice"})
	if len(games.calls) != 0 {
		t.Fatalf("expected no game calls for invalid payloads, got %v", games.calls)
	}
	if len(c.emits) != 2 || c.emits[0] != "error" {
		t.Fatalf("expected two error events, got %v", c.emits)
	}
}

func TestStateRepliesToCaller(t *testing.T) {
	srv, games := newTestServer(t)
	games.snaps["r1"] = game.Snapshot{RoomID: "r1"}
	c := connect(t, srv, "s1")

	if resp := srv.onState(c, statePayload{RoomID: "r1"}); resp["ok"] != true {
		t.Fatalf("expected ok, got %v", resp)
	}
	if len(c.emits) != 1 || c.emits[0] != "room:state" {
		t.Fatalf("expected room:state emit, got %v", c.emits)
	}
	resp := srv.onState(c, statePayload{RoomID: "missing"})
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected error for unknown room, got %v", resp)
	}
}

func newFeedServer(t *testing.T, games Games) (*Feed, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	feed := NewFeed()
	feed.SetGames(games)
	r := gin.New()
	r.GET("/ws/rooms/:roomId", feed.Handle)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return feed, ts
}

func readSnapshot(t *testing.T, conn *websocket.Conn) game.Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return snap
}

func TestFeedSendsCurrentStateThenUpdates(t *testing.T) {
	games := newFakeGames()
	games.snaps["r1"] = game.Snapshot{RoomID: "r1", Host: "0xaaa"}
	feed, ts := newFeedServer(t, games)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/r1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if snap := readSnapshot(t, conn); snap.RoomID != "r1" || snap.Host != "0xaaa" {
		t.Fatalf("expected initial snapshot for r1, got %+v", snap)
	}

	deadline := time.Now().Add(2 * time.Second)
	for feed.observers("r1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	feed.RoomState("r1", game.Snapshot{RoomID: "r1", Host: "0xbbb"})
	if snap := readSnapshot(t, conn); snap.Host != "0xbbb" {
		t.Fatalf("expected pushed update, got %+v", snap)
	}
}

func TestFeedUnknownRoom(t *testing.T) {
	_, ts := newFeedServer(t, newFakeGames())
	resp, err := http.Get(ts.URL + "/ws/rooms/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFeedDropsUpdatesForSlowObserver(t *testing.T) {
	feed := NewFeed()
	o := &observer{send: make(chan []byte, 1)}
	feed.subscribe("r1", o)
	feed.RoomState("r1", game.Snapshot{RoomID: "r1"})
	feed.RoomState("r1", game.Snapshot{RoomID: "r1"})
	if len(o.send) != 1 {
		t.Fatalf("expected buffered update to be kept and extra dropped, got %d", len(o.send))
	}
	feed.unsubscribe("r1", o)
	if feed.observers("r1") != 0 {
		t.Fatal("expected observer removed")
	}
	feed.unsubscribe("r1", o)
}

func TestPresenceCountsSockets(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.hold("r1", "0xaaa")
	srv.hold("r1", "0xaaa")
	if srv.release("r1", "0xaaa") {
		t.Fatal("expected wallet to stay present while a second socket is open")
	}
	if !srv.release("r1", "0xaaa") {
		t.Fatal("expected last socket to report departure")
	}
	if srv.release("r1", "0xaaa") {
		t.Fatal("expected release of unknown wallet to be a no-op")
	}
	if len(srv.presence) != 0 {
		t.Fatalf("expected presence map to be empty, got %v", srv.presence)
	}
}

func TestPayloadValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	good := challengePayload{RoomID: "r1", Wallet: "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", ReasonCode: "too_harsh"}
	if err := srv.validate.Struct(good); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	noReason := good
	noReason.ReasonCode = ""
	if err := srv.validate.Struct(noReason); err != nil {
		t.Fatalf("expected empty reason to be accepted, got %v", err)
	}
	bad := good
	bad.ReasonCode = "rigged"
	if err := srv.validate.Struct(bad); err == nil {
		t.Fatal("expected unknown reason code to be rejected")
	}
	if err := srv.validate.Struct(submitPayload{RoomID: "r1", Wallet: good.Wallet, RoundID: "x"}); err == nil {
		t.Fatal("expected missing text to be rejected")
	}
	if err := srv.validate.Struct(roomPayload{RoomID: "r1", Wallet: "alice"}); err == nil {
		t.Fatal("expected non-address wallet to be rejected")
	}
}

type countingNotifier struct{ n int }

func (c *countingNotifier) RoomState(string, game.Snapshot) { c.n++ }

func TestFanout(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	Fanout{a, b}.RoomState("r1", game.Snapshot{})
	if a.n != 1 || b.n != 1 {
		t.Fatalf("expected both notifiers called once, got %d and %d", a.n, b.n)
	}
}
