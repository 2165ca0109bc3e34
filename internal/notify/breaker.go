package notify

import (
	"context"

	"ticktr/utils"
)

// BreakerPublisher stops publishing while the wrapped publisher keeps
// failing, so an unreachable PubNub does not slow down every mint.
type BreakerPublisher struct {
	next    Publisher
	breaker *utils.CircuitBreaker
}

func NewBreakerPublisher(next Publisher, breaker *utils.CircuitBreaker) *BreakerPublisher {
	return &BreakerPublisher{next: next, breaker: breaker}
}

func (p *BreakerPublisher) Publish(ctx context.Context, channel string, message map[string]any) error {
	return p.breaker.Do(func() error {
		return p.next.Publish(ctx, channel, message)
	})
}
