package game

import (
	"strings"
	"time"
)

// Room is the membership side of a room. It is owned by exactly one actor and
// is not safe for concurrent use.
type Room struct {
	ID      string
	Host    string
	members map[string]*Profile
	order   []string
}

func NewRoom(id string) *Room {
	return &Room{ID: id, members: make(map[string]*Profile)}
}

// NormalizeIdentity lowercases and trims a wallet address.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Join adds or refreshes a member. The first member to ever join becomes host.
// It reports whether anything visible changed.
func (r *Room) Join(identity, displayName string, now time.Time) bool {
	if identity == "" {
		return false
	}
	if p, ok := r.members[identity]; ok {
		if displayName == "" || p.DisplayName == displayName {
			return false
		}
		p.DisplayName = displayName
		return true
	}
	if r.Host == "" {
		r.Host = identity
	}
	r.members[identity] = &Profile{Identity: identity, DisplayName: displayName, JoinedAt: now}
	r.order = append(r.order, identity)
	return true
}

// Leave removes a member. When the host leaves, the earliest-joined remaining
// member takes over.
func (r *Room) Leave(identity string) bool {
	if _, ok := r.members[identity]; !ok {
		return false
	}
	delete(r.members, identity)
	for i, id := range r.order {
		if id == identity {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.Host == identity {
		r.Host = ""
		if len(r.order) > 0 {
			r.Host = r.order[0]
		}
	}
	return true
}

func (r *Room) IsMember(identity string) bool {
	_, ok := r.members[identity]
	return ok
}

func (r *Room) IsHost(identity string) bool {
	return identity != "" && r.Host == identity
}

func (r *Room) Empty() bool {
	return len(r.members) == 0
}

func (r *Room) Len() int {
	return len(r.members)
}

func (r *Room) DisplayName(identity string) string {
	if p, ok := r.members[identity]; ok {
		return p.DisplayName
	}
	return ""
}

// Members returns copies of all profiles in join order.
func (r *Room) Members() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id])
	}
	return out
}
