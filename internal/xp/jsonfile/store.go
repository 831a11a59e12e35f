// Package jsonfile keeps the XP leaderboard in a single JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kiliankoe/promptheist/internal/xp"
	"github.com/rs/zerolog/log"
)

type document struct {
	Players map[string]*record `json:"players"`
}

type record struct {
	Wallet      string `json:"wallet"`
	DisplayName string `json:"displayName"`
	XP          int    `json:"xp"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Store rewrites the whole file on every change via a temp file and rename.
// A file that fails to parse is copied to <path>.bak and treated as empty.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

var _ xp.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{path: path, now: time.Now}, nil
}

func (s *Store) UpsertPlayer(ctx context.Context, wallet, displayName string) error {
	return s.update(ctx, wallet, 0, displayName)
}

func (s *Store) AddXP(ctx context.Context, wallet string, amount int, displayName string) error {
	return s.update(ctx, wallet, max(0, amount), displayName)
}

func (s *Store) update(ctx context.Context, wallet string, amount int, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, err := xp.NormalizeWallet(wallet)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	rec := doc.Players[w]
	if rec == nil {
		rec = &record{Wallet: w}
		doc.Players[w] = rec
	}
	if name := xp.CleanName(displayName); name != "" {
		rec.DisplayName = name
	}
	rec.XP = max(0, rec.XP) + amount
	rec.UpdatedAt = s.now().UTC().UnixMilli()
	return s.write(doc)
}

func (s *Store) TopPlayers(ctx context.Context, limit int) ([]xp.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	doc, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	players := make([]xp.Player, 0, len(doc.Players))
	for wallet, rec := range doc.Players {
		players = append(players, xp.Player{
			Wallet:      wallet,
			DisplayName: rec.DisplayName,
			TotalXP:     max(0, rec.XP),
			UpdatedAt:   time.UnixMilli(rec.UpdatedAt).UTC(),
		})
	}
	xp.Sort(players)
	if n := xp.ClampLimit(limit); len(players) > n {
		players = players[:n]
	}
	return players, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) read() (*document, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{Players: map[string]*record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Str("file", s.path).Msg("leaderboard file corrupt, backing up and resetting")
		if err := os.WriteFile(s.path+".bak", raw, 0644); err != nil {
			return nil, fmt.Errorf("back up corrupt leaderboard: %w", err)
		}
		return &document{Players: map[string]*record{}}, nil
	}
	if doc.Players == nil {
		doc.Players = map[string]*record{}
	}
	return &doc, nil
}

func (s *Store) write(doc *document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("write leaderboard: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace leaderboard: %w", err)
	}
	return nil
}
