package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"typing-duel/internal/bus"
	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/models"
	"typing-duel/internal/results"
	"typing-duel/internal/store"
	"typing-duel/internal/words"
)

// errNoChange aborts an update without writing and without reporting an
// error to the caller.
var errNoChange = errors.New("no change")

type Options struct {
	TickInterval time.Duration
	// MaxTickFailures is how many consecutive failed ticks a match survives
	// before its loop gives up and reports the match as stalled.
	MaxTickFailures int
	Recorder        results.Recorder
	Now             func() time.Time
	Seed            int64
}

// MatchService owns every read-modify-write against match state: lifecycle
// transitions, submissions, power-ups, damage and ticks. Each of them runs
// as one store.Update so operations on a match are linearizable.
type MatchService struct {
	store store.Store
	bus   bus.Bus
	words *words.Provider
	rec   results.Recorder
	now   func() time.Time
	rng   *lockedRand
	sched *Scheduler
}

func NewMatchService(st store.Store, b bus.Bus, wp *words.Provider, opts Options) *MatchService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Recorder == nil {
		opts.Recorder = results.Nop{}
	}
	s := &MatchService{
		store: st,
		bus:   b,
		words: wp,
		rec:   opts.Recorder,
		now:   opts.Now,
		rng:   newLockedRand(opts.Seed),
	}
	s.sched = newScheduler(s, opts.TickInterval, opts.MaxTickFailures)
	return s
}

func (s *MatchService) Scheduler() *Scheduler { return s.sched }

// Shutdown stops every running tick loop and waits for them to exit.
func (s *MatchService) Shutdown(ctx context.Context) error {
	return s.sched.Shutdown(ctx)
}

// txn is the working context of one update closure. Every mutation helper
// hangs off it so damage, spawning and power-ups share one code path no
// matter which operation triggers them.
type txn struct {
	svc     *MatchService
	st      *store.State
	now     time.Time
	events  []bus.Event
	ended   bool
	spawned int
	expired int
	powers  []models.PowerUp
}

func (t *txn) emit(ev bus.Event) { t.events = append(t.events, ev) }

// apply runs fn inside a store update and returns the committed txn.
// The store may retry fn, so each attempt starts from a clean txn.
func (s *MatchService) apply(ctx context.Context, code string, fn func(*txn) error) (*txn, error) {
	var committed *txn
	err := s.store.Update(ctx, code, func(st *store.State) error {
		t := &txn{svc: s, st: st, now: s.now()}
		if err := fn(t); err != nil {
			return err
		}
		committed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// publish delivers committed events. State is already written, so a bus
// failure is logged and returned but never rolls anything back.
func (s *MatchService) publish(ctx context.Context, code string, evs []bus.Event) error {
	if err := bus.PublishAll(ctx, s.bus, code, evs); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("publish events")
		return err
	}
	return nil
}

// afterCommit handles the side effects of a committed txn that are not
// events: ending the tick loop and archiving the result.
func (s *MatchService) afterCommit(code string, t *txn) {
	if !t.ended {
		return
	}
	s.sched.Stop(code)
	m := t.st.Match
	log.Info().Str("code", code).Str("loser", m.Loser).Str("winner", m.Winner).Msg("match over")
	out := outcomeOf(m, t.now)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.rec.Record(ctx, out); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("record match result")
		}
	}()
}

// countEffects records the word and power-up counters of a committed txn.
func (s *MatchService) countEffects(t *txn) {
	appmetrics.WordsSpawnedTotal.Add(float64(t.spawned))
	appmetrics.WordsExpiredTotal.Add(float64(t.expired))
	for _, p := range t.powers {
		appmetrics.PowerUpsTriggeredTotal.WithLabelValues(string(p)).Inc()
	}
}

// lockedRand is a math/rand source safe for concurrent use, seedable so
// tests are reproducible.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Uniform(lo, hi float64) float64 {
	return lo + l.Float64()*(hi-lo)
}

func (l *lockedRand) Pick(pool []string) string {
	return pool[l.Intn(len(pool))]
}
