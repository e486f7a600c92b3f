package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/splatsvc/coralgate/ports"
)

// Topics for account lifecycle events.
const (
	LoginTopic   = "coralgate.login"
	RefreshTopic = "coralgate.refresh"
	LogoutTopic  = "coralgate.logout"
)

// AccountEvent is the payload published on login and logout.
type AccountEvent struct {
	ExternalID string `json:"external_id"`
}

// RefreshEvent is the payload published after a refresh attempt.
type RefreshEvent struct {
	ExternalID string `json:"external_id"`
	Outcome    string `json:"outcome"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, externalID string) error {
	return p.publish(LoginTopic, AccountEvent{ExternalID: externalID})
}

// PublishRefresh publishes a refresh outcome event.
func (p *WatermillPublisher) PublishRefresh(ctx context.Context, externalID string, outcome string) error {
	return p.publish(RefreshTopic, RefreshEvent{ExternalID: externalID, Outcome: outcome})
}

// PublishLogout publishes a logout event.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, externalID string) error {
	return p.publish(LogoutTopic, AccountEvent{ExternalID: externalID})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

// PublishLogin implements ports.EventPublisher.
func (NopPublisher) PublishLogin(ctx context.Context, externalID string) error { return nil }

// PublishRefresh implements ports.EventPublisher.
func (NopPublisher) PublishRefresh(ctx context.Context, externalID string, outcome string) error {
	return nil
}

// PublishLogout implements ports.EventPublisher.
func (NopPublisher) PublishLogout(ctx context.Context, externalID string) error { return nil }
