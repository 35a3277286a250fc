// Package words supplies the word pools matches draw from.
//
// Two newline-delimited lists are loaded at startup (easy and hard tier).
// Lines are trimmed and upper-cased; blank lines are dropped. A missing file
// is not an error: that tier falls back to the built-in default list.
//
// Bonus pools are built once from the union of every loaded source,
// deduplicated and filtered by length:
//
//	easy        5–8 letters
//	hard/insane 8–10 letters
//
// A Provider never mutates its pools after construction, so it is safe for
// concurrent use. Callers must treat returned slices as read-only.
package words

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"typing-duel/internal/models"
)

var defaultWords = []string{
	"HELLO", "WORLD", "TYPING", "DUEL", "FAST", "CODE", "GOPHER", "REDIS",
	"BUFFER", "SIGNAL", "CHANNEL", "KEYBOARD", "GOROUTINE", "INTERFACE", "SCHEDULER",
}

type bounds struct{ min, max int }

var (
	lowBonus  = bounds{5, 8}
	highBonus = bounds{8, 10}
)

type Provider struct {
	easy      []string
	hard      []string
	bonusLow  []string
	bonusHigh []string
}

// New builds a Provider from in-memory lists. Empty lists fall back to the
// defaults.
func New(easy, hard []string) *Provider {
	easy = normalize(easy)
	hard = normalize(hard)

	all := dedupe(append(append([]string{}, easy...), hard...))
	if len(all) == 0 {
		all = defaultWords
	}

	p := &Provider{
		easy:      orDefault(easy),
		hard:      orDefault(hard),
		bonusLow:  byLength(all, lowBonus),
		bonusHigh: byLength(all, highBonus),
	}
	if len(p.bonusLow) == 0 {
		p.bonusLow = orDefault(byLength(defaultWords, lowBonus))
	}
	if len(p.bonusHigh) == 0 {
		p.bonusHigh = orDefault(byLength(defaultWords, highBonus))
	}
	return p
}

// Load reads the easy and hard lists from disk.
func Load(easyPath, hardPath string) (*Provider, error) {
	easy, err := readWordFile(easyPath)
	if err != nil {
		return nil, err
	}
	hard, err := readWordFile(hardPath)
	if err != nil {
		return nil, err
	}
	p := New(easy, hard)
	log.Info().
		Int("easy", len(p.easy)).
		Int("hard", len(p.hard)).
		Int("bonus_low", len(p.bonusLow)).
		Int("bonus_high", len(p.bonusHigh)).
		Msg("word pools loaded")
	return p, nil
}

// Pool returns the base pool for a difficulty tier.
func (p *Provider) Pool(d models.Difficulty) []string {
	if d == models.DifficultyHard || d == models.DifficultyInsane {
		return p.hard
	}
	return p.easy
}

// BonusPool returns the length-bounded pool bonus words are drawn from.
func (p *Provider) BonusPool(d models.Difficulty) []string {
	if d == models.DifficultyHard || d == models.DifficultyInsane {
		return p.bonusHigh
	}
	return p.bonusLow
}

func readWordFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("word list missing, using defaults")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open word list: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func byLength(in []string, b bounds) []string {
	var out []string
	for _, w := range in {
		if n := len([]rune(w)); n >= b.min && n <= b.max {
			out = append(out, w)
		}
	}
	return out
}

func orDefault(in []string) []string {
	if len(in) == 0 {
		return defaultWords
	}
	return in
}
