package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"typing-duel/internal/bus"
	"typing-duel/internal/models"
	"typing-duel/internal/results"
	"typing-duel/internal/store"
	"typing-duel/internal/words"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// flakyStore fails the next n Updates with a transient error.
type flakyStore struct {
	store.Store
	failures atomic.Int32
}

func (f *flakyStore) Update(ctx context.Context, code string, fn func(*store.State) error) error {
	if f.failures.Add(-1) >= 0 {
		return models.ErrTransient
	}
	return f.Store.Update(ctx, code, fn)
}

type chanRecorder chan results.Outcome

func (c chanRecorder) Record(_ context.Context, o results.Outcome) error {
	c <- o
	return nil
}

type harness struct {
	svc   *MatchService
	st    store.Store
	bus   *bus.MemoryBus
	clock *fakeClock
}

type harnessOpt func(*Options)

func newHarness(t *testing.T, st store.Store, opts ...harnessOpt) *harness {
	t.Helper()
	clock := newFakeClock()
	o := Options{
		TickInterval: time.Hour,
		Now:          clock.Now,
		Seed:         42,
	}
	for _, fn := range opts {
		fn(&o)
	}
	b := bus.NewMemoryBus()
	wp := words.New([]string{"CAT", "DOG", "SUN", "TREE"}, []string{"GALAXY", "NEBULA", "QUASAR"})
	svc := NewMatchService(st, b, wp, o)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &harness{svc: svc, st: st, bus: b, clock: clock}
}

func newRedisStore(t *testing.T) store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return store.NewRedisStore(rdb, time.Hour)
}

// backends runs fn against each store implementation.
func backends(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemoryStore(time.Hour)) })
	t.Run("redis", func(t *testing.T) { fn(t, newRedisStore(t)) })
}

// versus creates a two player match and moves it to playing without
// starting a tick loop.
func (h *harness) versus(t *testing.T, powers ...string) (code, host, guest string) {
	t.Helper()
	ctx := context.Background()
	code, host, err := h.svc.CreateMatch(ctx, "alice", models.DifficultyEasy, powers)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	guest, err = h.svc.JoinMatch(ctx, code, "bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := h.svc.SetStatus(ctx, code, models.StatusPlaying); err != nil {
		t.Fatalf("set playing: %v", err)
	}
	return code, host, guest
}

func (h *harness) subscribe(t *testing.T, code string) bus.Subscription {
	t.Helper()
	sub, err := h.bus.Subscribe(context.Background(), code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func (h *harness) putWord(t *testing.T, code, pid string, w *models.PendingWord) {
	t.Helper()
	err := h.st.Update(context.Background(), code, func(st *store.State) error {
		st.Words(pid)[w.ID] = w
		return nil
	})
	if err != nil {
		t.Fatalf("put word: %v", err)
	}
}

func (h *harness) setPlayer(t *testing.T, code, pid string, fn func(p *models.PlayerState)) {
	t.Helper()
	err := h.st.Update(context.Background(), code, func(st *store.State) error {
		p, ok := st.Match.Players[pid]
		if !ok {
			return errors.New("no such player")
		}
		fn(p)
		return nil
	})
	if err != nil {
		t.Fatalf("set player: %v", err)
	}
}

func (h *harness) player(t *testing.T, code, pid string) models.PlayerState {
	t.Helper()
	v, err := h.svc.GetSnapshot(context.Background(), code)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	p, ok := v.Players[pid]
	if !ok {
		t.Fatalf("player %s missing from snapshot", pid)
	}
	return p
}

func pendingWord(now time.Time, id, text string, age, duration float64) *models.PendingWord {
	return &models.PendingWord{
		ID:        id,
		Text:      text,
		SpawnTime: models.Unix(now) - age,
		Duration:  duration,
	}
}

type event struct {
	Type           string  `json:"type"`
	TargetPID      string  `json:"target_pid"`
	PlayerID       string  `json:"player_id"`
	WordID         string  `json:"word_id"`
	NewPower       int     `json:"new_power"`
	NewHealth      int     `json:"new_health"`
	Combo          int     `json:"combo"`
	WordsCleared   int     `json:"words_cleared"`
	TriggeredPower *string `json:"triggered_power"`
	Duration       int     `json:"duration"`
	Loser          string  `json:"loser"`
	Winner         string  `json:"winner"`
	Status         string  `json:"status"`
	Reason         string  `json:"reason"`
	Word           struct {
		ID        string   `json:"id"`
		Text      string   `json:"text"`
		Duration  float64  `json:"duration"`
		VY        *float64 `json:"vy"`
		IsSpecial bool     `json:"is_special"`
	} `json:"word"`
}

// drain returns every event already delivered to sub.
func drain(t *testing.T, sub bus.Subscription) []event {
	t.Helper()
	var out []event
	for {
		select {
		case b := <-sub.C():
			var ev event
			if err := json.Unmarshal(b, &ev); err != nil {
				t.Fatalf("decode event %s: %v", b, err)
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// waitFor reads events until one of type typ arrives.
func waitFor(t *testing.T, sub bus.Subscription, typ string) event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b := <-sub.C():
			var ev event
			if err := json.Unmarshal(b, &ev); err != nil {
				t.Fatalf("decode event %s: %v", b, err)
			}
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func ofType(evs []event, typ string) []event {
	var out []event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func types(evs []event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
