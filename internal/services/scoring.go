package services

import (
	"context"
	"errors"

	"typing-duel/internal/bus"
	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/models"
)

const (
	basePower    = 10
	specialBonus = 50
)

// SubmitWord clears the player's oldest pending word whose text equals text.
// It reports false without writing anything when nothing matches or the
// match is not playing.
func (s *MatchService) SubmitWord(ctx context.Context, code, playerID, text string) (bool, error) {
	t, err := s.apply(ctx, code, func(t *txn) error {
		m := t.st.Match
		p, ok := m.Players[playerID]
		if !ok || m.Status != models.StatusPlaying {
			return models.ErrNoMatch
		}
		var hit *models.PendingWord
		for _, w := range t.st.SortedWords(playerID) {
			if w.Text == text {
				hit = w
				break
			}
		}
		if hit == nil {
			return models.ErrNoMatch
		}

		delete(t.st.Pending[playerID], hit.ID)
		p.Combo++
		p.WordsCleared++
		gain := basePower
		if hit.IsSpecial {
			gain += specialBonus
		}

		var triggered *models.PowerUp
		if p.AddPower(gain) && len(m.Powers) > 0 {
			kind := m.Powers[t.svc.rng.Intn(len(m.Powers))]
			triggered = &kind
			t.triggerPowerUp(playerID, kind)
		}
		t.emit(bus.NewWordCleared(playerID, hit.ID, p, triggered))
		return nil
	})
	if errors.Is(err, models.ErrNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	appmetrics.WordsClearedTotal.Inc()
	s.countEffects(t)
	_ = s.publish(ctx, code, t.events)
	return true, nil
}
