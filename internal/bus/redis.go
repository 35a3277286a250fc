package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	appmetrics "typing-duel/internal/metrics"
)

// RedisBus publishes events on the Redis channel game:{code}:events so every
// process serving a match sees the same stream.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, code string, ev Event) error {
	msg, err := Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, Channel(code), msg).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.EventType(), err)
	}
	return nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan []byte
	once sync.Once
	err  error
}

func (s *redisSub) C() <-chan []byte { return s.ch }

func (s *redisSub) Close() error {
	s.once.Do(func() { s.err = s.ps.Close() })
	return s.err
}

func (b *RedisBus) Subscribe(ctx context.Context, code string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, Channel(code))
	// Wait for the subscribe confirmation before handing the subscription out.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", code, err)
	}

	s := &redisSub{ps: ps, ch: make(chan []byte, subscriberBuffer)}
	in := ps.Channel()
	go func() {
		defer close(s.ch)
		for {
			select {
			case <-ctx.Done():
				_ = s.Close()
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case s.ch <- []byte(m.Payload):
				default:
					appmetrics.BusDroppedTotal.Inc()
				}
			}
		}
	}()
	return s, nil
}
