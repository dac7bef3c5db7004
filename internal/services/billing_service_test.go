package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
)

func TestBilling_PlanChanged(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	end := e.clock.Now().Add(30 * 24 * time.Hour)

	err := e.billingSvc.Handle(context.Background(), events.ForUser(events.EventPlanChanged, u.ID, map[string]any{
		"plan":       models.PlanPro,
		"period_end": end.Format(time.RFC3339),
	}))
	require.NoError(t, err)

	got := e.db.user(u.ID)
	assert.Equal(t, models.PlanPro, got.Plan)
	require.NotNil(t, got.PlanEndDate)
	assert.True(t, end.Equal(*got.PlanEndDate))
	assert.False(t, got.PendingDowngrade)
	require.NotNil(t, got.PlanStartDate)
}

func TestBilling_SubscriptionEndedSchedulesDowngrade(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPlus)
	end := e.clock.Now().Add(10 * 24 * time.Hour)

	err := e.billingSvc.Handle(context.Background(), events.ForUser(events.EventSubscriptionEnded, u.ID, map[string]any{
		"period_end": end.Format(time.RFC3339),
	}))
	require.NoError(t, err)

	got := e.db.user(u.ID)
	assert.Equal(t, models.PlanPlus, got.Plan, "plan is kept until the paid period ends")
	assert.True(t, got.PendingDowngrade)

	// Payment resumes before the end date.
	next := end.Add(30 * 24 * time.Hour)
	err = e.billingSvc.Handle(context.Background(), events.ForUser(events.EventInvoicePaid, u.ID, map[string]any{
		"period_end": next.Format(time.RFC3339),
	}))
	require.NoError(t, err)
	got = e.db.user(u.ID)
	assert.False(t, got.PendingDowngrade)
	assert.True(t, next.Equal(*got.PlanEndDate))
}

func TestBilling_CanceledDowngradesImmediately(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)

	err := e.billingSvc.Handle(context.Background(), events.ForUser(events.EventSubscriptionEnded, u.ID, map[string]any{
		"canceled": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, e.db.user(u.ID).Plan)
	assert.Contains(t, e.pub.types(), events.EventPlanDowngraded)
}

func TestBilling_BadEvents(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	ctx := context.Background()
	var ve *apperr.ValidationError

	err := e.billingSvc.Handle(ctx, events.ForUser(events.EventPlanChanged, u.ID, map[string]any{"plan": "GOLD"}))
	require.ErrorAs(t, err, &ve)

	err = e.billingSvc.Handle(ctx, events.ForUser(events.EventInvoicePaid, u.ID, map[string]any{"period_end": "tomorrow"}))
	require.ErrorAs(t, err, &ve)

	err = e.billingSvc.Handle(ctx, events.Event{Type: events.EventPlanChanged, Payload: map[string]any{"plan": models.PlanPro}})
	require.ErrorAs(t, err, &ve)

	// Unrelated event types are ignored.
	require.NoError(t, e.billingSvc.Handle(ctx, events.Event{Type: events.EventCampaignCreated}))
	assert.Equal(t, models.PlanFree, e.db.user(u.ID).Plan)
}
