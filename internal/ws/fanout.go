package ws

import "github.com/kiliankoe/promptheist/internal/game"

// Fanout delivers each snapshot to several notifiers in order.
type Fanout []game.Notifier

func (f Fanout) RoomState(roomID string, snap game.Snapshot) {
	for _, n := range f {
		n.RoomState(roomID, snap)
	}
}
