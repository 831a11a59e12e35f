package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/promptheist/internal/game"
	"github.com/kiliankoe/promptheist/internal/validation"
	"github.com/rs/zerolog/log"
)

// Games is the part of game.Manager the transports drive.
type Games interface {
	Join(roomID, wallet string) error
	Leave(roomID, wallet string) error
	Start(roomID, wallet string) error
	Submit(roomID, wallet, roundID, text string) error
	CreateChallenge(roomID, wallet, roundID, reasonCode string) error
	Vote(roomID, wallet string, yes bool) error
	Snapshot(ctx context.Context, roomID string) (game.Snapshot, error)
}

// ConnCtx remembers which rooms a socket joined and as which wallet.
type ConnCtx struct {
	Rooms map[string]string // roomID -> wallet
}

type Server struct {
	games    Games
	io       *socketio.Server
	validate *validator.Validate

	mu       sync.Mutex
	presence map[string]map[string]int // roomID -> wallet -> open sockets
}

func New() (*Server, error) {
	v, err := validation.New()
	if err != nil {
		return nil, err
	}
	return &Server{
		io:       socketio.NewServer(nil),
		validate: v,
		presence: make(map[string]map[string]int),
	}, nil
}

func (srv *Server) SetGames(g Games) { srv.games = g }

// RoomState broadcasts a snapshot to every socket in the room.
func (srv *Server) RoomState(roomID string, snap game.Snapshot) {
	srv.io.BroadcastToRoom("/", roomID, "room:state", snap)
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	Wallet string `json:"wallet" validate:"required,eth_addr"`
}

type submitPayload struct {
	RoomID  string `json:"roomId" validate:"required,max=64"`
	Wallet  string `json:"wallet" validate:"required,eth_addr"`
	RoundID string `json:"roundId" validate:"required,max=64"`
	Text    string `json:"text" validate:"required,max=1000"`
}

type challengePayload struct {
	RoomID     string `json:"roomId" validate:"required,max=64"`
	Wallet     string `json:"wallet" validate:"required,eth_addr"`
	RoundID    string `json:"roundId" validate:"omitempty,max=64"`
	ReasonCode string `json:"reasonCode" validate:"omitempty,reason"`
}

type votePayload struct {
	RoomID  string `json:"roomId" validate:"required,max=64"`
	Wallet  string `json:"wallet" validate:"required,eth_addr"`
	VoteYes bool   `json:"voteYes"`
}

type statePayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := srv.io

	io.OnConnect("/", srv.onConnect)
	io.OnEvent("/", "room:join", srv.onJoin)
	io.OnEvent("/", "room:leave", srv.onLeave)
	io.OnEvent("/", "match:start", srv.onStart)
	io.OnEvent("/", "round:submit", srv.onSubmit)
	io.OnEvent("/", "challenge:create", srv.onChallenge)
	io.OnEvent("/", "challenge:vote", srv.onVote)
	io.OnEvent("/", "room:state", srv.onState)
	io.OnError("/", func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", srv.onDisconnect)

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) onConnect(s socketio.Conn) error {
	s.SetContext(&ConnCtx{Rooms: map[string]string{}})
	log.Debug().Str("sid", s.ID()).Msg("socket connected")
	return nil
}

// onJoin adds the wallet to the room. A socket that switches wallets within
// a room gives up the previous one first.
func (srv *Server) onJoin(s socketio.Conn, p roomPayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	wallet := game.NormalizeIdentity(p.Wallet)
	ctx := connCtx(s)
	prev, joined := ctx.Rooms[p.RoomID]

	s.Join(p.RoomID)
	if err := srv.games.Join(p.RoomID, wallet); err != nil {
		if !joined {
			s.Leave(p.RoomID)
		}
		return srv.err(s, "unavailable", err)
	}
	if prev != wallet {
		if joined && srv.release(p.RoomID, prev) {
			srv.leaveGame(p.RoomID, prev)
		}
		ctx.Rooms[p.RoomID] = wallet
		srv.hold(p.RoomID, wallet)
	}
	log.Info().Str("sid", s.ID()).Str("room", p.RoomID).Str("wallet", wallet).Msg("room:join")
	return map[string]any{"ok": true}
}

func (srv *Server) onLeave(s socketio.Conn, p roomPayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	wallet := game.NormalizeIdentity(p.Wallet)
	s.Leave(p.RoomID)
	ctx := connCtx(s)
	if ctx.Rooms[p.RoomID] == wallet {
		delete(ctx.Rooms, p.RoomID)
		srv.release(p.RoomID, wallet)
	}
	if err := srv.games.Leave(p.RoomID, wallet); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		return srv.err(s, "unavailable", err)
	}
	log.Info().Str("sid", s.ID()).Str("room", p.RoomID).Str("wallet", wallet).Msg("room:leave")
	return map[string]any{"ok": true}
}

func (srv *Server) onStart(s socketio.Conn, p roomPayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	return srv.result(s, srv.games.Start(p.RoomID, p.Wallet))
}

func (srv *Server) onSubmit(s socketio.Conn, p submitPayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	return srv.result(s, srv.games.Submit(p.RoomID, p.Wallet, p.RoundID, p.Text))
}

func (srv *Server) onChallenge(s socketio.Conn, p challengePayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	return srv.result(s, srv.games.CreateChallenge(p.RoomID, p.Wallet, p.RoundID, p.ReasonCode))
}

func (srv *Server) onVote(s socketio.Conn, p votePayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	return srv.result(s, srv.games.Vote(p.RoomID, p.Wallet, p.VoteYes))
}

// onState answers the caller alone with the current snapshot.
func (srv *Server) onState(s socketio.Conn, p statePayload) map[string]any {
	if err := srv.validate.Struct(p); err != nil {
		return srv.err(s, "bad_request", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := srv.games.Snapshot(ctx, p.RoomID)
	if err != nil {
		return srv.err(s, "room_not_found", err)
	}
	s.Emit("room:state", snap)
	return map[string]any{"ok": true}
}

func (srv *Server) onDisconnect(s socketio.Conn, reason string) {
	if ctx, ok := s.Context().(*ConnCtx); ok {
		for roomID, wallet := range ctx.Rooms {
			if srv.release(roomID, wallet) {
				srv.leaveGame(roomID, wallet)
			}
		}
		ctx.Rooms = map[string]string{}
	}
	log.Debug().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
}

func (srv *Server) leaveGame(roomID, wallet string) {
	if err := srv.games.Leave(roomID, wallet); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		log.Warn().Err(err).Str("room", roomID).Str("wallet", wallet).Msg("leave failed")
	}
}

// hold counts one more socket of wallet in a room.
func (srv *Server) hold(roomID, wallet string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.presence[roomID] == nil {
		srv.presence[roomID] = make(map[string]int)
	}
	srv.presence[roomID][wallet]++
}

// release drops one socket of wallet and reports whether it was the last one.
func (srv *Server) release(roomID, wallet string) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	sockets := srv.presence[roomID]
	if sockets == nil || sockets[wallet] == 0 {
		return false
	}
	sockets[wallet]--
	if sockets[wallet] > 0 {
		return false
	}
	delete(sockets, wallet)
	if len(sockets) == 0 {
		delete(srv.presence, roomID)
	}
	return true
}

func (srv *Server) result(s socketio.Conn, err error) map[string]any {
	if err == nil {
		return map[string]any{"ok": true}
	}
	code := "unavailable"
	if errors.Is(err, game.ErrRoomNotFound) {
		code = "room_not_found"
	}
	return srv.err(s, code, err)
}

func (srv *Server) err(s socketio.Conn, code string, err error) map[string]any {
	message := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		message = "invalid " + strings.Join(fields, ", ")
	}
	log.Debug().Str("sid", s.ID()).Str("code", code).Msg(message)
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}

func connCtx(s socketio.Conn) *ConnCtx {
	if ctx, ok := s.Context().(*ConnCtx); ok {
		return ctx
	}
	ctx := &ConnCtx{Rooms: map[string]string{}}
	s.SetContext(ctx)
	return ctx
}
