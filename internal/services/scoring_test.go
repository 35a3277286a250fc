package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"typing-duel/internal/models"
	"typing-duel/internal/store"
)

func TestSubmitWordClearsMatchingWord(t *testing.T) {
	backends(t, func(t *testing.T, st store.Store) {
		h := newHarness(t, st)
		ctx := context.Background()
		code, host, _ := h.versus(t)
		h.putWord(t, code, host, pendingWord(h.clock.Now(), "w1", "TEST", 1, 10))
		sub := h.subscribe(t, code)

		ok, err := h.svc.SubmitWord(ctx, code, host, "TEST")
		if err != nil || !ok {
			t.Fatalf("SubmitWord = %v, %v", ok, err)
		}

		p := h.player(t, code, host)
		if p.WordsCleared != 1 || p.Power != 10 || p.Combo != 1 {
			t.Fatalf("player after clear = %+v", p)
		}
		pending, _ := h.svc.PendingWords(ctx, code, host)
		if len(pending) != 0 {
			t.Fatalf("word still pending: %+v", pending)
		}

		evs := drain(t, sub)
		if len(evs) != 1 || evs[0].Type != "word_cleared" {
			t.Fatalf("events = %v, want [word_cleared]", types(evs))
		}
		ev := evs[0]
		if ev.PlayerID != host || ev.WordID != "w1" || ev.NewPower != 10 || ev.Combo != 1 || ev.TriggeredPower != nil {
			t.Fatalf("word_cleared = %+v", ev)
		}
	})
}

func TestSubmitWordWithoutMatchWritesNothing(t *testing.T) {
	backends(t, func(t *testing.T, st store.Store) {
		h := newHarness(t, st)
		ctx := context.Background()
		code, host, guest := h.versus(t)
		h.putWord(t, code, host, pendingWord(h.clock.Now(), "w1", "TEST", 1, 10))
		// The opponent's words are not the submitter's.
		h.putWord(t, code, guest, pendingWord(h.clock.Now(), "w2", "OTHER", 1, 10))
		before, _ := st.Get(ctx, code)
		sub := h.subscribe(t, code)

		for _, text := range []string{"TES", "test", "OTHER", ""} {
			ok, err := h.svc.SubmitWord(ctx, code, host, text)
			if err != nil || ok {
				t.Fatalf("SubmitWord(%q) = %v, %v", text, ok, err)
			}
		}

		after, _ := st.Get(ctx, code)
		if after.Version != before.Version {
			t.Fatalf("version moved %d -> %d", before.Version, after.Version)
		}
		if evs := drain(t, sub); len(evs) != 0 {
			t.Fatalf("unexpected events %v", types(evs))
		}
	})
}

func TestSubmitWordOutsidePlay(t *testing.T) {
	h := newHarness(t, store.NewMemoryStore(time.Hour))
	ctx := context.Background()

	if _, err := h.svc.SubmitWord(ctx, "NOPE", "p", "X"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown code err = %v", err)
	}

	code, host, _ := h.svc.CreateMatch(ctx, "alice", models.DifficultyEasy, nil)
	h.putWord(t, code, host, pendingWord(h.clock.Now(), "w1", "CAT", 0, 10))
	ok, err := h.svc.SubmitWord(ctx, code, host, "CAT")
	if err != nil || ok {
		t.Fatalf("lobby submit = %v, %v", ok, err)
	}
}

func TestSubmitWordPrefersOldestDuplicate(t *testing.T) {
	h := newHarness(t, store.NewMemoryStore(time.Hour))
	ctx := context.Background()
	code, host, _ := h.versus(t)
	now := h.clock.Now()
	h.putWord(t, code, host, pendingWord(now, "b", "CAT", 2, 10))
	h.putWord(t, code, host, pendingWord(now, "c", "CAT", 5, 10))
	h.putWord(t, code, host, pendingWord(now, "a", "CAT", 2, 10))

	var order []string
	for i := 0; i < 3; i++ {
		sub := h.subscribe(t, code)
		if ok, _ := h.svc.SubmitWord(ctx, code, host, "CAT"); !ok {
			t.Fatalf("submit %d failed", i)
		}
		order = append(order, waitFor(t, sub, "word_cleared").WordID)
		_ = sub.Close()
	}
	if fmt.Sprint(order) != "[c a b]" {
		t.Fatalf("clear order = %v, want [c a b]", order)
	}
}

func TestSubmitSpecialWordBonus(t *testing.T) {
	h := newHarness(t, store.NewMemoryStore(time.Hour))
	code, host, _ := h.versus(t)
	w := pendingWord(h.clock.Now(), "s1", "NEBULA", 1, 5)
	w.IsSpecial = true
	h.putWord(t, code, host, w)

	if ok, err := h.svc.SubmitWord(context.Background(), code, host, "NEBULA"); !ok || err != nil {
		t.Fatalf("submit = %v, %v", ok, err)
	}
	if p := h.player(t, code, host); p.Power != basePower+specialBonus {
		t.Fatalf("power = %d, want %d", p.Power, basePower+specialBonus)
	}
}

func TestSubmitWordPowerWrapsAndTriggersOnce(t *testing.T) {
	backends(t, func(t *testing.T, st store.Store) {
		h := newHarness(t, st)
		code, host, guest := h.versus(t, "shake")
		h.setPlayer(t, code, host, func(p *models.PlayerState) { p.Power = 90 })
		h.putWord(t, code, host, pendingWord(h.clock.Now(), "w1", "TEST", 1, 10))
		sub := h.subscribe(t, code)

		if ok, err := h.svc.SubmitWord(context.Background(), code, host, "TEST"); !ok || err != nil {
			t.Fatalf("submit = %v, %v", ok, err)
		}
		if p := h.player(t, code, host); p.Power != 0 {
			t.Fatalf("power = %d, want wrap to 0", p.Power)
		}

		evs := drain(t, sub)
		if fmt.Sprint(types(evs)) != "[effect_shake word_cleared]" {
			t.Fatalf("events = %v", types(evs))
		}
		if evs[0].TargetPID != guest || evs[0].Duration != shakeMS {
			t.Fatalf("shake = %+v", evs[0])
		}
		if tp := evs[1].TriggeredPower; tp == nil || *tp != "shake" || evs[1].NewPower != 0 {
			t.Fatalf("word_cleared = %+v", evs[1])
		}
	})
}

func TestSubmitWordFullMeterWithoutPowers(t *testing.T) {
	h := newHarness(t, store.NewMemoryStore(time.Hour))
	code, host, _ := h.versus(t)
	h.setPlayer(t, code, host, func(p *models.PlayerState) { p.Power = 95 })
	h.putWord(t, code, host, pendingWord(h.clock.Now(), "w1", "TEST", 1, 10))
	sub := h.subscribe(t, code)

	if ok, _ := h.svc.SubmitWord(context.Background(), code, host, "TEST"); !ok {
		t.Fatalf("submit failed")
	}
	evs := drain(t, sub)
	if len(evs) != 1 || evs[0].TriggeredPower != nil || evs[0].NewPower != 0 {
		t.Fatalf("events = %+v", evs)
	}
}

func TestConcurrentSubmitAndDamageLoseNoUpdates(t *testing.T) {
	backends(t, func(t *testing.T, st store.Store) {
		h := newHarness(t, st)
		ctx := context.Background()
		code, host, _ := h.versus(t)

		const submits, hits = 8, 5
		for i := 0; i < submits; i++ {
			h.putWord(t, code, host, pendingWord(h.clock.Now(), fmt.Sprintf("w%d", i), fmt.Sprintf("WORD%d", i), 1, 10))
		}

		var wg sync.WaitGroup
		errs := make(chan error, submits+hits)
		for i := 0; i < submits; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := h.svc.SubmitWord(ctx, code, host, fmt.Sprintf("WORD%d", i))
				if err == nil && !ok {
					err = fmt.Errorf("WORD%d not cleared", i)
				}
				if err != nil {
					errs <- err
				}
			}(i)
		}
		for i := 0; i < hits; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := h.svc.Damage(ctx, code, host, WordDamage); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatal(err)
		}

		p := h.player(t, code, host)
		if p.WordsCleared != submits {
			t.Fatalf("words cleared = %d, want %d", p.WordsCleared, submits)
		}
		if p.Power != submits*basePower {
			t.Fatalf("power = %d, want %d", p.Power, submits*basePower)
		}
		if p.Health != models.MaxHealth-hits*WordDamage {
			t.Fatalf("health = %d, want %d", p.Health, models.MaxHealth-hits*WordDamage)
		}
		m, _ := st.Get(ctx, code)
		// Two setup writes in versus plus the words and every operation.
		if want := int64(2 + submits + submits + hits); m.Version != want {
			t.Fatalf("version = %d, want %d", m.Version, want)
		}
	})
}
