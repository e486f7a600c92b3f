package ports

import "context"

// EventPublisher notifies other components about account lifecycle changes.
type EventPublisher interface {
	PublishLogin(ctx context.Context, externalID string) error
	PublishRefresh(ctx context.Context, externalID string, outcome string) error
	PublishLogout(ctx context.Context, externalID string) error
}
