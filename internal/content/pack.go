// Package content loads the case packs rounds are drawn from.
package content

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/kiliankoe/promptheist/internal/game"
)

//go:embed packs/default.json
var packs embed.FS

var (
	ErrEmptyPack   = errors.New("case pack is empty")
	ErrInvalidCase = errors.New("invalid case")
)

// Case is one entry of a pack file.
type Case struct {
	ID           string `json:"id"`
	ImageURL     string `json:"imageUrl"`
	SecretPrompt string `json:"secretPrompt"`
	Theme        string `json:"theme,omitempty"`
}

// Pack is a validated set of cases. It is safe for concurrent use.
type Pack struct {
	cases []Case
	mu    sync.Mutex
	rng   *rand.Rand
}

// Default returns the pack compiled into the binary.
func Default() (*Pack, error) {
	b, err := packs.ReadFile("packs/default.json")
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Load reads a pack from disk, or returns the default pack when path is empty.
func Load(path string) (*Pack, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case pack: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Pack, error) {
	var cases []Case
	if err := json.Unmarshal(b, &cases); err != nil {
		return nil, fmt.Errorf("decode case pack: %w", err)
	}
	if err := Validate(cases); err != nil {
		return nil, err
	}
	return &Pack{cases: cases, rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}, nil
}

// Validate checks ids are present and unique, secrets are non-empty and
// images are absolute http(s) URLs or rooted paths.
func Validate(cases []Case) error {
	if len(cases) == 0 {
		return ErrEmptyPack
	}
	seen := make(map[string]bool, len(cases))
	for i, c := range cases {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidCase, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidCase, id)
		}
		seen[id] = true
		if strings.TrimSpace(c.SecretPrompt) == "" {
			return fmt.Errorf("%w: %s has no secretPrompt", ErrInvalidCase, id)
		}
		u := strings.TrimSpace(c.ImageURL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "/") {
			return fmt.Errorf("%w: %s imageUrl must be http(s) or start with \"/\", got %q", ErrInvalidCase, id, c.ImageURL)
		}
	}
	return nil
}

func (p *Pack) Len() int { return len(p.cases) }

// Draw picks n distinct cases at random. Asking for more than the pack holds
// returns the whole pack, shuffled.
func (p *Pack) Draw(n int) ([]game.Round, error) {
	if n <= 0 {
		return nil, fmt.Errorf("draw %d cases: count must be positive", n)
	}
	p.mu.Lock()
	idx := p.rng.Perm(len(p.cases))
	p.mu.Unlock()

	n = min(n, len(idx))
	rounds := make([]game.Round, 0, n)
	for _, i := range idx[:n] {
		c := p.cases[i]
		rounds = append(rounds, game.Round{
			ID:       strings.TrimSpace(c.ID),
			ImageURL: strings.TrimSpace(c.ImageURL),
			Theme:    c.Theme,
			Secret:   strings.TrimSpace(c.SecretPrompt),
		})
	}
	return rounds, nil
}
