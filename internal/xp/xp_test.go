package xp

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeWallet(t *testing.T) {
	w, err := NormalizeWallet(" 0xABC ")
	if err != nil || w != "0xabc" {
		t.Fatalf("expected 0xabc, got %q %v", w, err)
	}
	for _, bad := range []string{"", "abc", "0x"} {
		if _, err := NormalizeWallet(bad); !errors.Is(err, ErrInvalidWallet) {
			t.Fatalf("expected ErrInvalidWallet for %q, got %v", bad, err)
		}
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-1: DefaultLimit, 0: DefaultLimit, 10: 10, 200: 200, 5000: MaxLimit}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d): expected %d, got %d", in, want, got)
		}
	}
}

func TestSortBreaksTiesByRecency(t *testing.T) {
	base := time.Unix(0, 0)
	players := []Player{
		{Wallet: "0x1", TotalXP: 10, UpdatedAt: base},
		{Wallet: "0x2", TotalXP: 30, UpdatedAt: base},
		{Wallet: "0x3", TotalXP: 10, UpdatedAt: base.Add(time.Minute)},
	}
	Sort(players)
	if players[0].Wallet != "0x2" || players[1].Wallet != "0x3" || players[2].Wallet != "0x1" {
		t.Fatalf("unexpected order %+v", players)
	}
}

func TestCleanName(t *testing.T) {
	if got := CleanName("  ünïcødé_name_that_is_long  "); len([]rune(got)) != MaxNameLen {
		t.Fatalf("expected %d runes, got %q", MaxNameLen, got)
	}
}
