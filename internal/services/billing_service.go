package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
)

// BillingService applies plan changes published by the billing webhook bridge.
type BillingService struct {
	users UserStore
	rec   recorder
	now   func() time.Time
	log   *zap.Logger
}

func NewBillingService(users UserStore, audit AuditLogger, publisher events.Publisher, log *zap.Logger) *BillingService {
	return &BillingService{
		users: users,
		rec:   recorder{audit: audit, publisher: publisher, log: log},
		now:   time.Now,
		log:   log,
	}
}

// Run subscribes to events:billing. Events are handled until ctx is done.
func (s *BillingService) Run(ctx context.Context, sub events.Subscriber) error {
	return sub.Subscribe(ctx, events.StreamBilling, func(ev events.Event) {
		if err := s.Handle(ctx, ev); err != nil {
			s.log.Error("billing event failed", zap.String("type", ev.Type), zap.Error(err))
		}
	})
}

// Handle applies one billing event. Payload keys: plan, period_end (RFC3339),
// canceled (bool, subscription_ended only).
func (s *BillingService) Handle(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.EventPlanChanged, events.EventSubscriptionEnded, events.EventInvoicePaid:
	default:
		return nil
	}
	if ev.UserID == nil {
		return apperr.Validation("user_id", "billing event without user")
	}

	u, err := s.users.GetByID(ctx, *ev.UserID)
	if err != nil {
		return err
	}
	periodEnd, err := payloadTime(ev.Payload, "period_end")
	if err != nil {
		return err
	}

	switch ev.Type {
	case events.EventPlanChanged:
		plan, _ := ev.Payload["plan"].(string)
		if !models.IsValidPlan(plan) {
			return apperr.Validation("plan", fmt.Sprintf("unknown plan %q", plan))
		}
		now := s.now().UTC()
		u.Plan = plan
		u.PlanStartDate = &now
		u.PlanEndDate = periodEnd
		u.PendingDowngrade = false

	case events.EventSubscriptionEnded:
		canceled, _ := ev.Payload["canceled"].(bool)
		if canceled || periodEnd == nil || !s.now().Before(*periodEnd) {
			return downgradeToFree(ctx, s.users, s.rec, u, "billing")
		}
		u.PendingDowngrade = true
		u.PlanEndDate = periodEnd

	case events.EventInvoicePaid:
		if periodEnd == nil {
			return apperr.Validation("period_end", "required")
		}
		u.PlanEndDate = periodEnd
		u.PendingDowngrade = false
	}

	if err := s.users.UpdatePlan(ctx, u); err != nil {
		return err
	}
	s.rec.record(ctx, models.AuditLog{
		ActorType:  "billing",
		Action:     ev.Type,
		EntityType: models.AuditEntityUser,
		EntityID:   &u.ID,
		Meta:       map[string]any{"plan": u.Plan, "pending_downgrade": u.PendingDowngrade},
	})
	return nil
}

func payloadTime(payload map[string]any, key string) (*time.Time, error) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return nil, nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil, apperr.Validation(key, "must be an RFC3339 timestamp")
	}
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return nil, apperr.Validation(key, "must be an RFC3339 timestamp")
	}
	return &t, nil
}
