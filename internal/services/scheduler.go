package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/models"
)

const (
	DefaultTickInterval    = 2 * time.Second
	DefaultMaxTickFailures = 5
	maxBackoffFactor       = 8
)

// Scheduler runs one tick loop per playing match.
type Scheduler struct {
	svc         *MatchService
	interval    time.Duration
	maxFailures int

	mu     sync.Mutex
	loops  map[string]*loop
	closed bool
	wg     sync.WaitGroup
}

type loop struct {
	cancel context.CancelFunc
}

func newScheduler(svc *MatchService, interval time.Duration, maxFailures int) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxTickFailures
	}
	return &Scheduler{
		svc:         svc,
		interval:    interval,
		maxFailures: maxFailures,
		loops:       make(map[string]*loop),
	}
}

// Start launches the tick loop for code. It is a no-op if one is already
// running or the scheduler has been shut down.
func (sc *Scheduler) Start(code string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return false
	}
	if _, ok := sc.loops[code]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel}
	sc.loops[code] = l
	sc.wg.Add(1)
	appmetrics.ActiveSchedulers.Inc()
	go sc.run(ctx, code, l)
	return true
}

// Stop cancels the loop for code without waiting for it, so a loop may
// stop itself.
func (sc *Scheduler) Stop(code string) {
	sc.mu.Lock()
	l, ok := sc.loops[code]
	if ok {
		delete(sc.loops, code)
	}
	sc.mu.Unlock()
	if ok {
		l.cancel()
	}
}

func (sc *Scheduler) Running(code string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.loops[code]
	return ok
}

// Shutdown cancels every loop, refuses new ones and waits for all loops to
// return or ctx to expire.
func (sc *Scheduler) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	sc.closed = true
	for code, l := range sc.loops {
		l.cancel()
		delete(sc.loops, code)
	}
	sc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		sc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop tick loops: %w", ctx.Err())
	}
}

func (sc *Scheduler) run(ctx context.Context, code string, l *loop) {
	defer func() {
		sc.mu.Lock()
		if sc.loops[code] == l {
			delete(sc.loops, code)
		}
		sc.mu.Unlock()
		l.cancel()
		appmetrics.ActiveSchedulers.Dec()
		sc.wg.Done()
	}()

	logger := log.With().Str("code", code).Logger()
	logger.Debug().Dur("interval", sc.interval).Msg("tick loop started")

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("tick loop cancelled")
			return
		case <-timer.C:
		}

		start := time.Now()
		running, err := sc.svc.tick(ctx, code)
		appmetrics.TickDurationSeconds.Observe(time.Since(start).Seconds())

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			logger.Info().Msg("match gone, tick loop exiting")
			return
		}
		if !running {
			logger.Debug().Msg("match no longer playing, tick loop exiting")
			return
		}
		if err == nil {
			failures = 0
			timer.Reset(sc.interval)
			continue
		}

		failures++
		appmetrics.TickFailuresTotal.Inc()
		logger.Warn().Err(err).Int("failures", failures).Msg("tick failed")
		if failures >= sc.maxFailures {
			appmetrics.MatchesStalledTotal.Inc()
			logger.Error().Err(err).Msg("tick loop stalled")
			sc.svc.markStalled(ctx, code, fmt.Sprintf("tick failed %d times: %v", failures, err))
			return
		}
		timer.Reset(sc.backoff(failures))
	}
}

// backoff doubles the interval per consecutive failure up to
// maxBackoffFactor times the interval.
func (sc *Scheduler) backoff(failures int) time.Duration {
	factor := 1
	for i := 0; i < failures && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	return sc.interval * time.Duration(factor)
}
