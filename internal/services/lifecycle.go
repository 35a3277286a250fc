package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"typing-duel/internal/bus"
	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/models"
	"typing-duel/internal/results"
	"typing-duel/internal/store"
)

const (
	codeLength      = 4
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxCodeAttempts = 64
)

var transitions = map[models.Status][]models.Status{
	models.StatusLobby:   {models.StatusPlaying, models.StatusFinished},
	models.StatusPlaying: {models.StatusFinished},
}

func canTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateMatch opens a lobby with the host as its only, ready, player.
func (s *MatchService) CreateMatch(ctx context.Context, hostName string, difficulty models.Difficulty, powers []string) (string, string, error) {
	if !difficulty.Valid() {
		return "", "", fmt.Errorf("unknown difficulty %q: %w", difficulty, models.ErrInvalidConfig)
	}
	enabled, err := models.ParsePowerUps(powers)
	if err != nil {
		return "", "", err
	}
	return s.create(ctx, hostName, difficulty, models.ModeVersus, enabled)
}

// CreatePracticeMatch opens a solo match whose only power-up is clear_screen.
func (s *MatchService) CreatePracticeMatch(ctx context.Context, hostName string, difficulty models.Difficulty) (string, string, error) {
	if difficulty == "" {
		difficulty = models.DifficultyEasy
	}
	if !difficulty.Valid() {
		return "", "", fmt.Errorf("unknown difficulty %q: %w", difficulty, models.ErrInvalidConfig)
	}
	return s.create(ctx, hostName, difficulty, models.ModePractice, []models.PowerUp{models.PowerClearScreen})
}

func (s *MatchService) create(ctx context.Context, hostName string, d models.Difficulty, mode models.Mode, powers []models.PowerUp) (string, string, error) {
	hostID := uuid.NewString()
	m := &models.Match{
		HostID:     hostID,
		Difficulty: d,
		Mode:       mode,
		Powers:     powers,
		Status:     models.StatusLobby,
		Players:    map[string]*models.PlayerState{hostID: models.NewPlayer(hostID, hostName)},
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		m.Code = s.newCode()
		err := s.store.Create(ctx, m)
		if errors.Is(err, models.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return "", "", err
		}
		appmetrics.MatchesCreatedTotal.WithLabelValues(string(mode)).Inc()
		log.Info().Str("code", m.Code).Str("mode", string(mode)).Str("difficulty", string(d)).Msg("match created")
		return m.Code, hostID, nil
	}
	return "", "", fmt.Errorf("no free match code after %d attempts: %w", maxCodeAttempts, models.ErrCodeTaken)
}

func (s *MatchService) newCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[s.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// JoinMatch adds a second player to a versus lobby.
func (s *MatchService) JoinMatch(ctx context.Context, code, playerName string) (string, error) {
	pid := uuid.NewString()
	t, err := s.apply(ctx, code, func(t *txn) error {
		m := t.st.Match
		if m.Status != models.StatusLobby {
			return models.ErrInvalidTransition
		}
		if m.Mode == models.ModePractice || len(m.Players) >= models.MaxPlayers {
			return models.ErrFull
		}
		p := models.NewPlayer(pid, playerName)
		m.Players[pid] = p
		t.emit(bus.NewPlayerJoined(*p))
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("code", code).Str("pid", pid).Msg("player joined")
	_ = s.publish(ctx, code, t.events)
	return pid, nil
}

// SetStatus moves the match along lobby -> playing -> finished. Entering
// playing stamps the start time that drives word lifetime scaling.
func (s *MatchService) SetStatus(ctx context.Context, code string, status models.Status) error {
	t, err := s.apply(ctx, code, func(t *txn) error {
		return t.setStatus(status)
	})
	if err != nil {
		return err
	}
	if status == models.StatusFinished {
		s.sched.Stop(code)
	}
	_ = s.publish(ctx, code, t.events)
	return nil
}

func (t *txn) setStatus(status models.Status) error {
	m := t.st.Match
	if !canTransition(m.Status, status) {
		return fmt.Errorf("%s -> %s: %w", m.Status, status, models.ErrInvalidTransition)
	}
	m.Status = status
	if status == models.StatusPlaying {
		m.StartTime = models.Unix(t.now)
	}
	t.emit(bus.NewStatusChange(status))
	return nil
}

// StartMatch handles the host's start_game command and launches the match's
// tick loop.
func (s *MatchService) StartMatch(ctx context.Context, code, playerID string) error {
	t, err := s.apply(ctx, code, func(t *txn) error {
		m := t.st.Match
		if m.HostID != playerID {
			return models.ErrUnauthorized
		}
		if m.Status != models.StatusLobby {
			return models.ErrInvalidTransition
		}
		need := models.MaxPlayers
		if m.Mode == models.ModePractice {
			need = 1
		}
		if len(m.Players) < need {
			return fmt.Errorf("waiting for players: %w", models.ErrInvalidTransition)
		}
		return t.setStatus(models.StatusPlaying)
	})
	if err != nil {
		return err
	}
	_ = s.publish(ctx, code, t.events)
	s.sched.Start(code)
	log.Info().Str("code", code).Msg("match started")
	return nil
}

// CloseMatch force-ends a match, e.g. when the host leaves for good.
func (s *MatchService) CloseMatch(ctx context.Context, code string) error {
	s.sched.Stop(code)
	t, err := s.apply(ctx, code, func(t *txn) error {
		if t.st.Match.Status == models.StatusFinished {
			return errNoChange
		}
		return t.setStatus(models.StatusFinished)
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	_ = s.publish(ctx, code, t.events)
	return nil
}

// GetSnapshot returns the full current view of a match.
func (s *MatchService) GetSnapshot(ctx context.Context, code string) (*models.MatchView, error) {
	m, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.View(), nil
}

// PendingWords returns one player's pending words, oldest first.
func (s *MatchService) PendingWords(ctx context.Context, code, playerID string) ([]*models.PendingWord, error) {
	set, err := s.store.Pending(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	return store.SortWords(set), nil
}

func outcomeOf(m *models.Match, now time.Time) results.Outcome {
	o := results.Outcome{
		Code:       m.Code,
		Difficulty: string(m.Difficulty),
		Mode:       string(m.Mode),
		WinnerID:   m.Winner,
		LoserID:    m.Loser,
		Duration:   m.Elapsed(now),
		FinishedAt: now,
	}
	if p, ok := m.Players[m.Winner]; ok {
		o.WinnerName, o.WinnerWords = p.Name, p.WordsCleared
	}
	if p, ok := m.Players[m.Loser]; ok {
		o.LoserName, o.LoserWords = p.Name, p.WordsCleared
	}
	return o
}
