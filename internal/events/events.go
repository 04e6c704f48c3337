package events

import "context"

// StreamWithdraw carries redemption outcomes for live consumers.
const StreamWithdraw = "events:withdraw"

// Event types
const (
	EventWithdrawRedeemed = "withdraw_redeemed"
	EventWithdrawFailed   = "withdraw_failed"
	EventLinkCreated      = "link_created"
	EventLinkDeleted      = "link_deleted"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
