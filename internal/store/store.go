// Package store holds match records and per-player pending words.
//
// Every read-modify-write against a match goes through Update, which
// applies the closure atomically with respect to every other Update on the
// same match code. The Redis implementation does this with an optimistic
// WATCH/MULTI transaction; the in-memory one holds a per-match mutex.
package store

import (
	"context"
	"sort"
	"time"

	"typing-duel/internal/models"
)

const DefaultTTL = time.Hour

// State is the working copy of one match passed to an Update closure.
// Mutations are committed only if the closure returns nil.
type State struct {
	Match *models.Match
	// Pending maps player id to that player's pending words keyed by word id.
	Pending map[string]map[string]*models.PendingWord
}

// Words returns the player's pending set, creating it if needed.
func (s *State) Words(playerID string) map[string]*models.PendingWord {
	ws, ok := s.Pending[playerID]
	if !ok {
		ws = make(map[string]*models.PendingWord)
		s.Pending[playerID] = ws
	}
	return ws
}

// SortedWords returns a player's pending words oldest first, ties by id.
func (s *State) SortedWords(playerID string) []*models.PendingWord {
	return SortWords(s.Pending[playerID])
}

func SortWords(set map[string]*models.PendingWord) []*models.PendingWord {
	out := make([]*models.PendingWord, 0, len(set))
	for _, w := range set {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SpawnTime != out[j].SpawnTime {
			return out[i].SpawnTime < out[j].SpawnTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Store defines the persistence interface for live matches.
type Store interface {
	// Create stores a new match. Returns models.ErrCodeTaken if a live
	// match already uses the code.
	Create(ctx context.Context, m *models.Match) error

	// Get returns a copy of the match or models.ErrNotFound.
	Get(ctx context.Context, code string) (*models.Match, error)

	// Pending returns a copy of one player's pending words.
	Pending(ctx context.Context, code, playerID string) (map[string]*models.PendingWord, error)

	// Update runs fn against a fresh copy of the match and commits the
	// result atomically. An error from fn aborts without writing and is
	// returned unchanged.
	Update(ctx context.Context, code string, fn func(*State) error) error

	Delete(ctx context.Context, code string) error
	Ping(ctx context.Context) error
}

func cloneMatch(m *models.Match) *models.Match {
	cp := *m
	cp.Powers = append([]models.PowerUp(nil), m.Powers...)
	cp.Players = make(map[string]*models.PlayerState, len(m.Players))
	for id, p := range m.Players {
		pc := *p
		cp.Players[id] = &pc
	}
	return &cp
}

func cloneWords(set map[string]*models.PendingWord) map[string]*models.PendingWord {
	out := make(map[string]*models.PendingWord, len(set))
	for id, w := range set {
		wc := *w
		out[id] = &wc
	}
	return out
}
