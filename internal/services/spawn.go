package services

import (
	"time"

	"github.com/google/uuid"

	"typing-duel/internal/bus"
	"typing-duel/internal/models"
)

const (
	maxLifetime = 10.0
	minLifetime = 3.0
	// rampSeconds is how long it takes lifetimes to shrink from max to min.
	rampSeconds = 180.0

	bonusChance   = 0.10
	bonusLifetime = 5.0
	bonusEdgeX    = 7.0
	bonusMinSpeed = 1.5
	bonusMaxSpeed = 3.0

	fieldHalfWidth = 4.0
	runnerMinY     = 2.0
	runnerMaxY     = 8.0

	insaneSymbols = "!@#$%^&*?"
)

// Lifetime is how long a normal word stays on screen after elapsed play time.
func Lifetime(elapsed time.Duration) float64 {
	l := maxLifetime - elapsed.Seconds()*(maxLifetime-minLifetime)/rampSeconds
	if l < minLifetime {
		return minLifetime
	}
	return l
}

// nextWord draws a tick's word for one player: usually a falling word, with
// bonusChance a special runner crossing the screen.
func (s *MatchService) nextWord(m *models.Match, now time.Time) *models.PendingWord {
	if s.rng.Float64() < bonusChance {
		return s.bonusWord(m.Difficulty, now)
	}
	return &models.PendingWord{
		ID:        uuid.NewString(),
		Text:      s.decorate(m.Difficulty, s.rng.Pick(s.words.Pool(m.Difficulty))),
		SpawnTime: models.Unix(now),
		Duration:  Lifetime(m.Elapsed(now)),
		X:         s.rng.Uniform(-fieldHalfWidth, fieldHalfWidth),
	}
}

func (s *MatchService) bonusWord(d models.Difficulty, now time.Time) *models.PendingWord {
	x, vx := -bonusEdgeX, s.rng.Uniform(bonusMinSpeed, bonusMaxSpeed)
	if s.rng.Intn(2) == 1 {
		x, vx = bonusEdgeX, -vx
	}
	vy := 0.0
	return &models.PendingWord{
		ID:        uuid.NewString(),
		Text:      s.decorate(d, s.rng.Pick(s.words.BonusPool(d))),
		SpawnTime: models.Unix(now),
		Duration:  bonusLifetime,
		X:         x,
		Y:         s.rng.Uniform(runnerMinY, runnerMaxY),
		VX:        vx,
		VY:        &vy,
		IsSpecial: true,
	}
}

// barrageWord is a short-lived word dropped on an opponent by a barrage.
func (s *MatchService) barrageWord(d models.Difficulty, now time.Time) *models.PendingWord {
	return &models.PendingWord{
		ID:        uuid.NewString(),
		Text:      s.decorate(d, s.rng.Pick(s.words.Pool(d))),
		SpawnTime: models.Unix(now),
		Duration:  barrageLifetime,
		X:         s.rng.Uniform(-fieldHalfWidth, fieldHalfWidth),
	}
}

// decorate adds one symbol before or after the word at insane difficulty.
func (s *MatchService) decorate(d models.Difficulty, text string) string {
	if d != models.DifficultyInsane {
		return text
	}
	sym := string(insaneSymbols[s.rng.Intn(len(insaneSymbols))])
	if s.rng.Intn(2) == 0 {
		return sym + text
	}
	return text + sym
}

func (t *txn) spawn(pid string, w *models.PendingWord) {
	t.st.Words(pid)[w.ID] = w
	t.spawned++
	t.emit(bus.NewWordSpawn(pid, *w))
}
