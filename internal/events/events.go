package events

import (
	"context"

	"github.com/google/uuid"
)

// Channels
const (
	StreamProspect = "events:prospect"
	StreamCampaign = "events:campaign"
	StreamBilling  = "events:billing"
)

// Event types
const (
	EventProspectStatusChanged = "prospect_status_changed"
	EventProspectMessageReady  = "prospect_message_ready"
	EventProspectFollowUpDue   = "prospect_follow_up_due"
	EventCampaignCreated       = "campaign_created"
	EventCampaignStatusChanged = "campaign_status_changed"
	EventCampaignDeleted       = "campaign_deleted"

	// Billing provider events, published by the webhook bridge.
	EventPlanChanged       = "plan_changed"
	EventSubscriptionEnded = "subscription_ended"
	EventInvoicePaid       = "invoice_paid"
	EventPlanDowngraded    = "plan_downgraded"
)

type Event struct {
	Type    string         `json:"type"`
	UserID  *uuid.UUID     `json:"user_id,omitempty"`
	Payload map[string]any `json:"payload"`
}

// ForUser builds an event routed to one user's live connections.
func ForUser(eventType string, userID uuid.UUID, payload map[string]any) Event {
	return Event{Type: eventType, UserID: &userID, Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops events. Used when redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
