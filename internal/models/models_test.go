package models

import (
	"errors"
	"testing"
	"time"
)

func TestParsePowerUps(t *testing.T) {
	got, err := ParsePowerUps([]string{"shake", "barrage", "shake"})
	if err != nil {
		t.Fatalf("ParsePowerUps: %v", err)
	}
	if len(got) != 2 || got[0] != PowerShake || got[1] != PowerBarrage {
		t.Fatalf("got %v, want [shake barrage]", got)
	}

	if _, err := ParsePowerUps([]string{"freeze"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("unknown power err = %v", err)
	}
	if got, err := ParsePowerUps(nil); err != nil || len(got) != 0 {
		t.Fatalf("empty = %v, %v", got, err)
	}
}

func TestAddPower(t *testing.T) {
	tests := []struct {
		start, add int
		want       int
		full       bool
	}{
		{0, 10, 10, false},
		{90, 10, 0, true},
		{95, 60, 0, true},
		{5, -20, 0, false},
	}
	for _, tt := range tests {
		p := &PlayerState{Power: tt.start}
		if full := p.AddPower(tt.add); full != tt.full || p.Power != tt.want {
			t.Errorf("AddPower(%d) from %d = %v/%d, want %v/%d", tt.add, tt.start, full, p.Power, tt.full, tt.want)
		}
	}
}

func TestTakeDamage(t *testing.T) {
	p := NewPlayer("p1", "alice")
	p.Combo = 4
	if dead := p.TakeDamage(30); dead || p.Health != 70 || p.Combo != 0 {
		t.Fatalf("after 30 damage: dead=%v %+v", dead, p)
	}
	if dead := p.TakeDamage(100); !dead || p.Health != 0 {
		t.Fatalf("lethal damage: dead=%v %+v", dead, p)
	}
	p = NewPlayer("p2", "bob")
	if dead := p.TakeDamage(-50); dead || p.Health != MaxHealth {
		t.Fatalf("health should cap at %d, got %d", MaxHealth, p.Health)
	}
}

func TestOpponentAndPlayerIDs(t *testing.T) {
	m := &Match{Players: map[string]*PlayerState{"b": NewPlayer("b", "B"), "a": NewPlayer("a", "A")}}
	if ids := m.PlayerIDs(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("PlayerIDs = %v", ids)
	}
	if m.Opponent("a") != "b" || m.Opponent("b") != "a" {
		t.Fatalf("opponents wrong")
	}
	delete(m.Players, "b")
	if got := m.Opponent("a"); got != "" {
		t.Fatalf("solo opponent = %q", got)
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &Match{}
	if got := m.Elapsed(start); got != 0 {
		t.Fatalf("unstarted elapsed = %v", got)
	}
	m.StartTime = Unix(start)
	if got := m.Elapsed(start.Add(90 * time.Second)); got < 89*time.Second || got > 91*time.Second {
		t.Fatalf("elapsed = %v", got)
	}
	if got := m.Elapsed(start.Add(-time.Minute)); got != 0 {
		t.Fatalf("clock skew elapsed = %v", got)
	}
}

func TestViewIsDeepCopy(t *testing.T) {
	m := &Match{
		Code:    "ABCD",
		Powers:  []PowerUp{PowerShake},
		Players: map[string]*PlayerState{"a": NewPlayer("a", "A")},
	}
	v := m.View()
	m.Players["a"].Health = 1
	m.Powers[0] = PowerBarrage
	if v.Players["a"].Health != MaxHealth || v.Powers[0] != PowerShake {
		t.Fatalf("view shares state with match: %+v", v)
	}
}

func TestPendingWordExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w := &PendingWord{SpawnTime: Unix(now), Duration: 5}
	if w.Expired(now.Add(4 * time.Second)) {
		t.Fatal("expired too early")
	}
	if !w.Expired(now.Add(6 * time.Second)) {
		t.Fatal("not expired after lifetime")
	}
}
