package bus

import "typing-duel/internal/models"

const (
	TypeGameState         = "game_state"
	TypePlayerJoined      = "player_joined"
	TypeStatusChange      = "status_change"
	TypeWordSpawn         = "word_spawn"
	TypeWordCleared       = "word_cleared"
	TypeWordExpired       = "word_expired"
	TypeHealthUpdate      = "health_update"
	TypeEffectClearScreen = "effect_clear_screen"
	TypeEffectShake       = "effect_shake"
	TypeEffectBlind       = "effect_blind"
	TypeGameOver          = "game_over"
	TypeMatchStalled      = "match_stalled"
)

// Event is anything that can be broadcast on a match channel.
type Event interface {
	EventType() string
}

// Header carries the type discriminator every event starts with.
type Header struct {
	Type string `json:"type"`
}

func (h Header) EventType() string { return h.Type }

type GameState struct {
	Header
	Game *models.MatchView `json:"game"`
}

func NewGameState(v *models.MatchView) GameState {
	return GameState{Header{TypeGameState}, v}
}

type PlayerJoined struct {
	Header
	Player models.PlayerState `json:"player"`
}

func NewPlayerJoined(p models.PlayerState) PlayerJoined {
	return PlayerJoined{Header{TypePlayerJoined}, p}
}

type StatusChange struct {
	Header
	Status models.Status `json:"status"`
}

func NewStatusChange(s models.Status) StatusChange {
	return StatusChange{Header{TypeStatusChange}, s}
}

type WordSpawn struct {
	Header
	TargetPID string             `json:"target_pid"`
	Word      models.PendingWord `json:"word"`
}

func NewWordSpawn(pid string, w models.PendingWord) WordSpawn {
	return WordSpawn{Header{TypeWordSpawn}, pid, w}
}

type WordCleared struct {
	Header
	PlayerID       string          `json:"player_id"`
	WordID         string          `json:"word_id"`
	NewPower       int             `json:"new_power"`
	Combo          int             `json:"combo"`
	WordsCleared   int             `json:"words_cleared"`
	TriggeredPower *models.PowerUp `json:"triggered_power"`
}

func NewWordCleared(pid, wordID string, p *models.PlayerState, triggered *models.PowerUp) WordCleared {
	return WordCleared{
		Header:         Header{TypeWordCleared},
		PlayerID:       pid,
		WordID:         wordID,
		NewPower:       p.Power,
		Combo:          p.Combo,
		WordsCleared:   p.WordsCleared,
		TriggeredPower: triggered,
	}
}

type WordExpired struct {
	Header
	TargetPID string `json:"target_pid"`
	WordID    string `json:"word_id"`
}

func NewWordExpired(pid, wordID string) WordExpired {
	return WordExpired{Header{TypeWordExpired}, pid, wordID}
}

type HealthUpdate struct {
	Header
	PlayerID  string `json:"player_id"`
	NewHealth int    `json:"new_health"`
	Combo     int    `json:"combo"`
}

func NewHealthUpdate(pid string, p *models.PlayerState) HealthUpdate {
	return HealthUpdate{Header{TypeHealthUpdate}, pid, p.Health, p.Combo}
}

// Effect is a power-up signal aimed at one player. DurationMS is zero for
// instant effects.
type Effect struct {
	Header
	TargetPID  string `json:"target_pid"`
	DurationMS int    `json:"duration,omitempty"`
}

func NewEffect(typ, pid string, durationMS int) Effect {
	return Effect{Header{typ}, pid, durationMS}
}

type GameOver struct {
	Header
	Loser  string `json:"loser"`
	Winner string `json:"winner,omitempty"`
}

func NewGameOver(loser, winner string) GameOver {
	return GameOver{Header{TypeGameOver}, loser, winner}
}

type MatchStalled struct {
	Header
	Reason string `json:"reason"`
}

func NewMatchStalled(reason string) MatchStalled {
	return MatchStalled{Header{TypeMatchStalled}, reason}
}
