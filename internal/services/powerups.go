package services

import (
	"context"
	"fmt"

	"typing-duel/internal/bus"
	"typing-duel/internal/models"
)

const (
	shakeMS         = 3000
	blindMS         = 5000
	barrageSize     = 5
	barrageLifetime = 5.0
)

// TriggerPowerUp fires kind on behalf of attackerID outside the normal
// power meter, e.g. from an admin tool or a test.
func (s *MatchService) TriggerPowerUp(ctx context.Context, code, attackerID string, kind models.PowerUp) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown power-up %q: %w", kind, models.ErrInvalidConfig)
	}
	t, err := s.apply(ctx, code, func(t *txn) error {
		m := t.st.Match
		if _, ok := m.Players[attackerID]; !ok {
			return fmt.Errorf("player %s: %w", attackerID, models.ErrNotFound)
		}
		if m.Status != models.StatusPlaying {
			return fmt.Errorf("power-up while %s: %w", m.Status, models.ErrInvalidTransition)
		}
		t.triggerPowerUp(attackerID, kind)
		return nil
	})
	if err != nil {
		return err
	}
	s.countEffects(t)
	_ = s.publish(ctx, code, t.events)
	return nil
}

// triggerPowerUp applies kind inside the current update. Effects aimed at
// the opponent are skipped in solo matches.
func (t *txn) triggerPowerUp(attacker string, kind models.PowerUp) {
	t.powers = append(t.powers, kind)
	m := t.st.Match

	if kind == models.PowerClearScreen {
		delete(t.st.Pending, attacker)
		t.emit(bus.NewEffect(bus.TypeEffectClearScreen, attacker, 0))
		return
	}

	target := m.Opponent(attacker)
	if target == "" {
		return
	}
	switch kind {
	case models.PowerShake:
		t.emit(bus.NewEffect(bus.TypeEffectShake, target, shakeMS))
	case models.PowerBlindness:
		t.emit(bus.NewEffect(bus.TypeEffectBlind, target, blindMS))
	case models.PowerBarrage:
		for i := 0; i < barrageSize; i++ {
			t.spawn(target, t.svc.barrageWord(m.Difficulty, t.now))
		}
	}
}
