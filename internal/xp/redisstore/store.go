// Package redisstore keeps the XP leaderboard in a Redis sorted set, with
// player details in one hash per wallet.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kiliankoe/promptheist/internal/xp"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ xp.Store = (*Store)(nil)

// New wraps an existing client. prefix namespaces every key.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "promptheist"
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, ""), nil
}

func (s *Store) boardKey() string {
	return s.prefix + ":xp"
}

func (s *Store) playerKey(wallet string) string {
	return fmt.Sprintf("%s:player:%s", s.prefix, wallet)
}

func (s *Store) UpsertPlayer(ctx context.Context, wallet, displayName string) error {
	return s.add(ctx, wallet, 0, displayName)
}

func (s *Store) AddXP(ctx context.Context, wallet string, amount int, displayName string) error {
	return s.add(ctx, wallet, max(0, amount), displayName)
}

func (s *Store) add(ctx context.Context, wallet string, amount int, displayName string) error {
	w, err := xp.NormalizeWallet(wallet)
	if err != nil {
		return err
	}
	fields := map[string]any{"updatedAt": s.now().UTC().UnixMilli()}
	if name := xp.CleanName(displayName); name != "" {
		fields["displayName"] = name
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZIncrBy(ctx, s.boardKey(), float64(amount), w)
		p.HSet(ctx, s.playerKey(w), fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add xp: %w", err)
	}
	return nil
}

// TopPlayers reads the top of the sorted set and joins player details. The
// set orders equal scores by member, so when the page is full every member
// tied with its last score is loaded too and the page is cut after sorting.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]xp.Player, error) {
	limit = xp.ClampLimit(limit)
	results, err := s.client.ZRevRangeWithScores(ctx, s.boardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	if len(results) == limit {
		results, err = s.withTies(ctx, results)
		if err != nil {
			return nil, err
		}
	}

	cmds := make([]*redis.SliceCmd, len(results))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, z := range results {
			cmds[i] = p.HMGet(ctx, s.playerKey(z.Member.(string)), "displayName", "updatedAt")
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read players: %w", err)
	}

	players := make([]xp.Player, len(results))
	for i, z := range results {
		p := xp.Player{Wallet: z.Member.(string), TotalXP: int(z.Score)}
		vals := cmds[i].Val()
		if len(vals) == 2 {
			if name, ok := vals[0].(string); ok {
				p.DisplayName = name
			}
			if ts, ok := vals[1].(string); ok {
				if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
					p.UpdatedAt = time.UnixMilli(ms).UTC()
				}
			}
		}
		players[i] = p
	}
	xp.Sort(players)
	if len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

// withTies appends the members that share the page's lowest score but fell
// outside the range read.
func (s *Store) withTies(ctx context.Context, page []redis.Z) ([]redis.Z, error) {
	last := strconv.FormatFloat(page[len(page)-1].Score, 'f', -1, 64)
	tied, err := s.client.ZRangeByScoreWithScores(ctx, s.boardKey(), &redis.ZRangeBy{Min: last, Max: last}).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard ties: %w", err)
	}
	seen := make(map[string]bool, len(page))
	for _, z := range page {
		seen[z.Member.(string)] = true
	}
	for _, z := range tied {
		if !seen[z.Member.(string)] {
			page = append(page, z)
		}
	}
	return page, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
