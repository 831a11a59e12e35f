package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kiliankoe/promptheist/internal/game"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

type snapshotter interface {
	Snapshot(ctx context.Context, roomID string) (game.Snapshot, error)
}

// Feed streams room snapshots to read-only observers over a plain websocket.
type Feed struct {
	games    snapshotter
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*observer]struct{}
}

type observer struct {
	conn *websocket.Conn
	send chan []byte
}

func NewFeed() *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[*observer]struct{}),
	}
}

func (f *Feed) SetGames(g snapshotter) { f.games = g }

// RoomState fans the snapshot out to every observer of the room. Slow
// observers miss updates instead of blocking the room.
func (f *Feed) RoomState(roomID string, snap game.Snapshot) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	subs := f.subs[roomID]
	if len(subs) == 0 {
		return
	}
	msg, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("marshal snapshot")
		return
	}
	for o := range subs {
		select {
		case o.send <- msg:
		default:
			log.Debug().Str("room", roomID).Msg("observer too slow, dropping update")
		}
	}
}

// observers returns the number of observers attached to roomID.
func (f *Feed) observers(roomID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[roomID])
}

// Handle upgrades GET /ws/rooms/:roomId. The current snapshot goes out first.
func (f *Feed) Handle(c *gin.Context) {
	roomID := c.Param("roomId")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	snap, err := f.games.Snapshot(ctx, roomID)
	cancel()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
		return
	}
	first, err := json.Marshal(snap)
	if err != nil {
		conn.Close()
		return
	}

	o := &observer{conn: conn, send: make(chan []byte, sendBuffer)}
	o.send <- first
	f.subscribe(roomID, o)
	log.Debug().Str("room", roomID).Msg("observer attached")

	go o.writePump()
	o.readPump()

	f.unsubscribe(roomID, o)
	log.Debug().Str("room", roomID).Msg("observer detached")
}

func (f *Feed) subscribe(roomID string, o *observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[*observer]struct{})
	}
	f.subs[roomID][o] = struct{}{}
}

func (f *Feed) unsubscribe(roomID string, o *observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[roomID][o]; !ok {
		return
	}
	delete(f.subs[roomID], o)
	if len(f.subs[roomID]) == 0 {
		delete(f.subs, roomID)
	}
	close(o.send)
}

// readPump discards inbound frames and returns once the peer goes away.
func (o *observer) readPump() {
	defer o.conn.Close()
	o.conn.SetReadLimit(512)
	_ = o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (o *observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-o.send:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
