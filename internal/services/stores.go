package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/repositories"
)

// Stores are satisfied by the pgx repositories.

type UserStore interface {
	UpsertByEmail(ctx context.Context, email string, name *string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, u *models.User) error
	UpdateProfileSnapshot(ctx context.Context, id uuid.UUID, profile json.RawMessage, fetchedAt time.Time) error
	UpdatePlan(ctx context.Context, u *models.User) error
	ListDowngradesDue(ctx context.Context, now time.Time, limit int) ([]models.User, error)
}

type CampaignStore interface {
	CreateWithProspects(ctx context.Context, c *models.Campaign, prospects []models.Prospect, check func(existing int) error) error
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	DeleteCascade(ctx context.Context, id, userID uuid.UUID) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
}

type ProspectStore interface {
	CreateInCampaign(ctx context.Context, p *models.Prospect, check func(existing int) error) error
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Prospect, *models.Campaign, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Prospect, error)
	UpdateState(ctx context.Context, p *models.Prospect, fromStatus string) error
	CountOpen(ctx context.Context, campaignID uuid.UUID) (int, error)
	DueForFollowUp(ctx context.Context, now time.Time, limit int) ([]models.FollowUp, error)
	ClearNextAction(ctx context.Context, id uuid.UUID) error
	UserStats(ctx context.Context, userID uuid.UUID) (models.DashboardStats, error)
}

type LeadStore interface {
	Create(ctx context.Context, l *models.Lead, year, month int, plan string, check func(models.LeadUsage) error) error
	Usage(ctx context.Context, userID uuid.UUID, year, month int) (models.LeadUsage, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Lead, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) (*models.Lead, error)
	SoftDelete(ctx context.Context, id, userID uuid.UUID) error
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// recorder writes the audit trail and publishes events. Both are best effort.
type recorder struct {
	audit     AuditLogger
	publisher events.Publisher
	log       *zap.Logger
}

func (r recorder) record(ctx context.Context, entry models.AuditLog) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Log(ctx, entry); err != nil {
		r.log.Warn("audit log failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (r recorder) publish(ctx context.Context, stream string, ev events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, stream, ev); err != nil {
		r.log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func actorUser(id uuid.UUID) *uuid.UUID {
	return &id
}
