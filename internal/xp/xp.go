// Package xp defines the global experience leaderboard and its backends.
package xp

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 200
	// MaxNameLen caps stored display names, in runes.
	MaxNameLen = 20
)

var ErrInvalidWallet = errors.New("invalid wallet")

// Player is one row of the global leaderboard.
type Player struct {
	Wallet      string    `json:"wallet"`
	DisplayName string    `json:"displayName"`
	TotalXP     int       `json:"totalXp"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists accumulated experience. Amounts below zero are treated as zero.
type Store interface {
	UpsertPlayer(ctx context.Context, wallet, displayName string) error
	AddXP(ctx context.Context, wallet string, amount int, displayName string) error
	TopPlayers(ctx context.Context, limit int) ([]Player, error)
	Close() error
}

// NormalizeWallet lowercases a wallet and rejects anything not 0x-prefixed.
func NormalizeWallet(wallet string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(wallet))
	if !strings.HasPrefix(w, "0x") || len(w) < 3 {
		return "", ErrInvalidWallet
	}
	return w, nil
}

// CleanName trims a display name and caps it to MaxNameLen runes.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > MaxNameLen {
		name = string(r[:MaxNameLen])
	}
	return name
}

// ClampLimit maps a requested page size into [1, MaxLimit], zero meaning DefaultLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Sort orders players by XP, most recently updated first on ties.
func Sort(players []Player) {
	slices.SortStableFunc(players, func(a, b Player) int {
		if c := cmp.Compare(b.TotalXP, a.TotalXP); c != 0 {
			return c
		}
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
