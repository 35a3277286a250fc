package services

import (
	"context"
	"errors"
	"fmt"

	"typing-duel/internal/bus"
	"typing-duel/internal/models"
)

// WordDamage is the health a player loses per expired word.
const WordDamage = 10

// Damage lowers a player's health. A player reaching zero ends the match.
// Damage against a match that is not playing is ignored.
func (s *MatchService) Damage(ctx context.Context, code, playerID string, amount int) error {
	t, err := s.apply(ctx, code, func(t *txn) error {
		m := t.st.Match
		if m.Status != models.StatusPlaying {
			return errNoChange
		}
		if _, ok := m.Players[playerID]; !ok {
			return fmt.Errorf("player %s: %w", playerID, models.ErrNotFound)
		}
		t.damage(playerID, amount)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	_ = s.publish(ctx, code, t.events)
	s.afterCommit(code, t)
	return nil
}

// damage is the only path that lowers health, so the finish transition and
// game_over happen at most once per match.
func (t *txn) damage(pid string, amount int) {
	m := t.st.Match
	p, ok := m.Players[pid]
	if !ok || m.Status != models.StatusPlaying {
		return
	}
	dead := p.TakeDamage(amount)
	t.emit(bus.NewHealthUpdate(pid, p))
	if !dead {
		return
	}
	m.Loser = pid
	m.Winner = m.Opponent(pid)
	m.Status = models.StatusFinished
	t.ended = true
	t.emit(bus.NewStatusChange(models.StatusFinished))
	t.emit(bus.NewGameOver(m.Loser, m.Winner))
}
