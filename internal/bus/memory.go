package bus

import (
	"context"
	"sync"

	appmetrics "typing-duel/internal/metrics"
)

const subscriberBuffer = 256

// MemoryBus is an in-process Bus for single-node deployments and tests.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySub]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySub]struct{})}
}

type memorySub struct {
	bus  *MemoryBus
	code string
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (s *memorySub) C() <-chan []byte { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if set, ok := s.bus.subs[s.code]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.code)
			}
		}
		close(s.ch)
		close(s.done)
		s.bus.mu.Unlock()
	})
	return nil
}

func (b *MemoryBus) Publish(ctx context.Context, code string, ev Event) error {
	msg, err := Marshal(ev)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[code] {
		select {
		case s.ch <- msg:
		default:
			appmetrics.BusDroppedTotal.Inc()
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, code string) (Subscription, error) {
	s := &memorySub{bus: b, code: code, ch: make(chan []byte, subscriberBuffer), done: make(chan struct{})}
	b.mu.Lock()
	set, ok := b.subs[code]
	if !ok {
		set = make(map[*memorySub]struct{})
		b.subs[code] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}
