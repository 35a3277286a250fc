// Package session connects one client connection to one player of a match:
// it sends the current snapshot, forwards match events and turns inbound
// frames into engine calls.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"typing-duel/internal/bus"
	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/middleware/ratelimit"
	"typing-duel/internal/models"
)

const (
	FrameStartGame  = "start_game"
	FrameSubmitWord = "submit_word"
)

// Conn is a message-oriented client connection. ReadMessage returns io.EOF
// once either side has closed cleanly. Close may be called more than once.
type Conn interface {
	ReadMessage() ([]byte, error)
	Send(b []byte) error
	Close() error
}

// Engine is the part of the match service a session drives.
type Engine interface {
	GetSnapshot(ctx context.Context, code string) (*models.MatchView, error)
	StartMatch(ctx context.Context, code, playerID string) error
	SubmitWord(ctx context.Context, code, playerID, text string) (bool, error)
}

type Frame struct {
	Type string `json:"type"`
	Word string `json:"word,omitempty"`
}

type Session struct {
	engine  Engine
	bus     bus.Bus
	limiter *ratelimit.RateLimiter
	code    string
	pid     string
	log     zerolog.Logger
}

func New(engine Engine, b bus.Bus, limiter *ratelimit.RateLimiter, code, playerID string) *Session {
	return &Session{
		engine:  engine,
		bus:     b,
		limiter: limiter,
		code:    code,
		pid:     playerID,
		log:     log.With().Str("code", code).Str("pid", playerID).Logger(),
	}
}

// Run serves conn until the client leaves, the connection fails or ctx is
// done. It always closes conn.
func (s *Session) Run(ctx context.Context, conn Conn) error {
	defer conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before reading the snapshot so nothing falls in between.
	sub, err := s.bus.Subscribe(ctx, s.code)
	if err != nil {
		return err
	}
	defer sub.Close()

	view, err := s.engine.GetSnapshot(ctx, s.code)
	if err != nil {
		return err
	}
	if _, ok := view.Players[s.pid]; !ok {
		return fmt.Errorf("player %s not in match %s: %w", s.pid, s.code, models.ErrUnauthorized)
	}
	msg, err := bus.Marshal(bus.NewGameState(view))
	if err != nil {
		return err
	}
	if err := conn.Send(msg); err != nil {
		return err
	}
	s.log.Debug().Msg("session started")

	fwd := make(chan error, 1)
	go func() { fwd <- s.forward(ctx, conn, sub) }()

	readErr := s.readLoop(ctx, conn)
	cancel()
	if err := <-fwd; err != nil {
		return err
	}
	s.log.Debug().Msg("session ended")
	if errors.Is(readErr, io.EOF) {
		return nil
	}
	return readErr
}

// forward relays events until ctx ends or delivery fails. Closing conn on
// the way out unblocks the read loop.
func (s *Session) forward(ctx context.Context, conn Conn, sub bus.Subscription) error {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := conn.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context, conn Conn) error {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if s.limiter != nil && !s.limiter.IsAllowed(s.code+":"+s.pid) {
			appmetrics.RateLimitDroppedTotal.Inc()
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.log.Debug().Err(err).Msg("bad frame")
			continue
		}
		s.handle(ctx, f)
	}
}

// handle applies one inbound frame. Rejected commands are logged and
// otherwise ignored; clients learn the outcome from events.
func (s *Session) handle(ctx context.Context, f Frame) {
	switch f.Type {
	case FrameStartGame:
		if err := s.engine.StartMatch(ctx, s.code, s.pid); err != nil {
			s.log.Info().Err(err).Msg("start_game rejected")
		}
	case FrameSubmitWord:
		if _, err := s.engine.SubmitWord(ctx, s.code, s.pid, f.Word); err != nil {
			s.log.Warn().Err(err).Msg("submit_word failed")
		}
	default:
		s.log.Debug().Str("type", f.Type).Msg("unknown frame")
	}
}
