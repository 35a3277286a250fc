package models

import (
	"fmt"
	"sort"
	"time"
)

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyHard   Difficulty = "hard"
	DifficultyInsane Difficulty = "insane"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyHard, DifficultyInsane:
		return true
	}
	return false
}

type Mode string

const (
	ModeVersus   Mode = "versus"
	ModePractice Mode = "practice"
)

// PowerUp is the closed set of effects a full power meter can fire.
type PowerUp string

const (
	PowerClearScreen PowerUp = "clear_screen"
	PowerShake       PowerUp = "shake"
	PowerBarrage     PowerUp = "barrage"
	PowerBlindness   PowerUp = "blindness"
)

func (p PowerUp) Valid() bool {
	switch p {
	case PowerClearScreen, PowerShake, PowerBarrage, PowerBlindness:
		return true
	}
	return false
}

// ParsePowerUps validates raw power-up names and drops duplicates,
// keeping first-seen order.
func ParsePowerUps(raw []string) ([]PowerUp, error) {
	out := make([]PowerUp, 0, len(raw))
	seen := make(map[PowerUp]bool, len(raw))
	for _, r := range raw {
		p := PowerUp(r)
		if !p.Valid() {
			return nil, fmt.Errorf("unknown power-up %q: %w", r, ErrInvalidConfig)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

const (
	MaxPlayers = 2
	MaxHealth  = 100
	MaxPower   = 100
)

type PlayerState struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Health       int    `json:"health"`
	Power        int    `json:"power"`
	WordsCleared int    `json:"words_cleared"`
	Combo        int    `json:"combo"`
	IsReady      bool   `json:"is_ready"`
}

func NewPlayer(id, name string) *PlayerState {
	return &PlayerState{ID: id, Name: name, Health: MaxHealth, IsReady: true}
}

// AddPower adds amount and reports whether the meter reached its threshold.
// A full meter is reset to 0.
func (p *PlayerState) AddPower(amount int) bool {
	p.Power += amount
	if p.Power >= MaxPower {
		p.Power = 0
		return true
	}
	if p.Power < 0 {
		p.Power = 0
	}
	return false
}

// TakeDamage breaks the combo and lowers health, floored at 0.
// Returns true when the player has no health left.
func (p *PlayerState) TakeDamage(amount int) bool {
	p.Combo = 0
	p.Health -= amount
	if p.Health <= 0 {
		p.Health = 0
		return true
	}
	if p.Health > MaxHealth {
		p.Health = MaxHealth
	}
	return false
}

type Match struct {
	Code       string                  `json:"code"`
	HostID     string                  `json:"host_id"`
	Difficulty Difficulty              `json:"difficulty"`
	Mode       Mode                    `json:"mode"`
	Powers     []PowerUp               `json:"powers"`
	Status     Status                  `json:"status"`
	StartTime  float64                 `json:"start_time,omitempty"`
	Players    map[string]*PlayerState `json:"players"`
	Winner     string                  `json:"winner,omitempty"`
	Loser      string                  `json:"loser,omitempty"`
	Fault      string                  `json:"fault,omitempty"`
	Version    int64                   `json:"version"`
}

// PlayerIDs returns player ids in a stable order.
func (m *Match) PlayerIDs() []string {
	ids := make([]string, 0, len(m.Players))
	for id := range m.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Opponent returns the other player's id, or "" in a solo match.
func (m *Match) Opponent(playerID string) string {
	for _, id := range m.PlayerIDs() {
		if id != playerID {
			return id
		}
	}
	return ""
}

// Elapsed is the play time since the match entered playing.
func (m *Match) Elapsed(now time.Time) time.Duration {
	if m.StartTime == 0 {
		return 0
	}
	d := now.Sub(FromUnix(m.StartTime))
	if d < 0 {
		return 0
	}
	return d
}

// View returns a deep copy suitable for handing out of the engine.
func (m *Match) View() *MatchView {
	v := &MatchView{
		Code:       m.Code,
		HostID:     m.HostID,
		Difficulty: m.Difficulty,
		Mode:       m.Mode,
		Powers:     append([]PowerUp{}, m.Powers...),
		Status:     m.Status,
		StartTime:  m.StartTime,
		Players:    make(map[string]PlayerState, len(m.Players)),
		Winner:     m.Winner,
		Loser:      m.Loser,
		Fault:      m.Fault,
	}
	for id, p := range m.Players {
		v.Players[id] = *p
	}
	return v
}

type MatchView struct {
	Code       string                 `json:"code"`
	HostID     string                 `json:"host_id"`
	Difficulty Difficulty             `json:"difficulty"`
	Mode       Mode                   `json:"mode"`
	Powers     []PowerUp              `json:"powers"`
	Status     Status                 `json:"status"`
	StartTime  float64                `json:"start_time,omitempty"`
	Players    map[string]PlayerState `json:"players"`
	Winner     string                 `json:"winner,omitempty"`
	Loser      string                 `json:"loser,omitempty"`
	Fault      string                 `json:"fault,omitempty"`
}

// PendingWord is a word on one player's screen waiting to be typed.
// Times are unix seconds to match what clients render from.
type PendingWord struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	SpawnTime float64  `json:"spawn_time"`
	Duration  float64  `json:"duration"`
	X         float64  `json:"x"`
	Y         float64  `json:"y,omitempty"`
	VX        float64  `json:"vx,omitempty"`
	VY        *float64 `json:"vy,omitempty"` // runner words only
	IsSpecial bool     `json:"is_special,omitempty"`
}

func (w *PendingWord) Expired(now time.Time) bool {
	return Unix(now) > w.SpawnTime+w.Duration
}

// Unix converts t to fractional unix seconds.
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func FromUnix(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Redis     string `json:"redis"`
	Results   string `json:"results"`
}
