package notify

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go"
)

// Message types published on an event channel.
const (
	TypeEventCreated  = "event_created"
	TypeTicketMinted  = "ticket_minted"
	TypeTicketScanned = "ticket_scanned"
)

// Publisher delivers lifecycle notifications. Delivery is best effort;
// callers log a failed publish and carry on.
type Publisher interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

// EventChannel is the channel that carries the notifications of one event.
func EventChannel(eventID string) string {
	return fmt.Sprintf("event-%s", eventID)
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(publishKey, subscribeKey, secretKey string) *PubNubPublisher {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = publishKey
	pnConfig.SubscribeKey = subscribeKey
	pnConfig.SecretKey = secretKey

	return &PubNubPublisher{pn: pubnub.NewPubNub(pnConfig)}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish %s: %w", channel, err)
	}
	return nil
}

// Nop drops every message. Used when no PubNub keys are configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, channel string, message map[string]any) error {
	return nil
}
