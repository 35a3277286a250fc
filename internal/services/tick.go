package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"typing-duel/internal/bus"
	"typing-duel/internal/models"
)

// tick spawns one word for every living player and expires overdue words.
// running is false once the match is no longer playing.
func (s *MatchService) tick(ctx context.Context, code string) (running bool, err error) {
	t, err := s.apply(ctx, code, func(t *txn) error {
		m := t.st.Match
		if m.Status != models.StatusPlaying {
			return errNoChange
		}
		for _, pid := range m.PlayerIDs() {
			if m.Status != models.StatusPlaying {
				break
			}
			if m.Players[pid].Health <= 0 {
				continue
			}
			// Words spawned below must not be swept in the same tick.
			existing := t.st.SortedWords(pid)
			t.spawn(pid, s.nextWord(m, t.now))
			for _, w := range existing {
				if m.Status != models.StatusPlaying {
					break
				}
				if !w.Expired(t.now) {
					continue
				}
				t.damage(pid, WordDamage)
				delete(t.st.Pending[pid], w.ID)
				t.expired++
				t.emit(bus.NewWordExpired(pid, w.ID))
			}
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	s.countEffects(t)
	err = s.publish(ctx, code, t.events)
	// Ending the match stops this loop, which cancels ctx.
	s.afterCommit(code, t)
	return !t.ended, err
}

// markStalled flags a match whose tick loop gave up. Both steps are best
// effort.
func (s *MatchService) markStalled(ctx context.Context, code, reason string) {
	_, err := s.apply(ctx, code, func(t *txn) error {
		t.st.Match.Fault = reason
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("mark match fault")
	}
	if err := s.bus.Publish(ctx, code, bus.NewMatchStalled(reason)); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("publish match_stalled")
	}
}
