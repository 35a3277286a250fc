// Package bus fans match events out to every current subscriber of a match.
// Delivery is best effort: events are not stored, and a subscriber that
// falls behind loses messages rather than slowing the publisher.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

type Bus interface {
	Publish(ctx context.Context, code string, ev Event) error
	// Subscribe returns once the subscription is live, so any event
	// published after it returns is delivered.
	Subscribe(ctx context.Context, code string) (Subscription, error)
}

type Subscription interface {
	// C yields serialized events in publish order.
	C() <-chan []byte
	Close() error
}

func Channel(code string) string { return "game:" + code + ":events" }

func Marshal(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.EventType(), err)
	}
	return b, nil
}

// PublishAll publishes events in order and stops at the first failure.
func PublishAll(ctx context.Context, b Bus, code string, evs []Event) error {
	for _, ev := range evs {
		if err := b.Publish(ctx, code, ev); err != nil {
			return err
		}
	}
	return nil
}
