package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/quota"
)

type LeadService struct {
	leads LeadStore
	users UserStore
	rec   recorder
	now   func() time.Time
	log   *zap.Logger
}

func NewLeadService(leads LeadStore, users UserStore, audit AuditLogger, log *zap.Logger) *LeadService {
	return &LeadService{
		leads: leads,
		users: users,
		rec:   recorder{audit: audit, log: log},
		now:   time.Now,
		log:   log,
	}
}

type CreateLeadInput struct {
	Name        string
	Position    string
	Company     string
	LinkedinURL string
	Message     *models.ProspectMessage
}

// LeadUsageReport is the current month's lead consumption.
type LeadUsageReport struct {
	Year      int              `json:"year"`
	Month     int              `json:"month"`
	Usage     models.LeadUsage `json:"usage"`
	Limit     int              `json:"limit"`
	Remaining int              `json:"remaining"`
}

// Create stores a lead in the current calendar month's bucket. Active and
// deleted leads of the month both count against the plan's monthly cap.
func (s *LeadService) Create(ctx context.Context, userID uuid.UUID, in CreateLeadInput) (*models.Lead, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.LinkedinURL = strings.TrimSpace(in.LinkedinURL)
	if in.Name == "" || len(in.Name) > maxNameLength {
		return nil, apperr.Validation("name", fmt.Sprintf("must be 1-%d characters", maxNameLength))
	}
	if _, ok := prospectsearch.UsernameFromURL(in.LinkedinURL); !ok {
		return nil, apperr.Validation("linkedin_url", "must be a linkedin.com/in/ profile URL")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lead := &models.Lead{
		UserID:      userID,
		Name:        in.Name,
		Position:    strings.TrimSpace(in.Position),
		Company:     strings.TrimSpace(in.Company),
		LinkedinURL: in.LinkedinURL,
		Status:      models.LeadStatusPending,
		Message:     in.Message,
	}
	err = s.leads.Create(ctx, lead, now.Year(), int(now.Month()), user.Plan, func(usage models.LeadUsage) error {
		return quota.CheckMonthlyLeadQuota(user.Plan, usage)
	})
	if err != nil {
		return nil, err
	}

	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "lead_created",
		EntityType:  models.AuditEntityLead,
		EntityID:    &lead.ID,
	})
	return lead, nil
}

func (s *LeadService) Usage(ctx context.Context, userID uuid.UUID) (*LeadUsageReport, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits, err := quota.LimitsFor(user.Plan)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	usage, err := s.leads.Usage(ctx, userID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, err
	}
	return &LeadUsageReport{
		Year:      now.Year(),
		Month:     int(now.Month()),
		Usage:     usage,
		Limit:     limits.MaxLeadsPerMonth,
		Remaining: quota.Remaining(limits.MaxLeadsPerMonth, usage.Total()),
	}, nil
}

func (s *LeadService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Lead, error) {
	return s.leads.ListByUser(ctx, userID, limit, offset)
}

func (s *LeadService) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string) (*models.Lead, error) {
	if !models.IsValidLeadStatus(status) {
		return nil, apperr.Validation("status", "must be Pending, Messaged or Responded")
	}
	return s.leads.UpdateStatus(ctx, id, userID, status)
}

// Delete removes the lead but keeps its slot in the month's quota.
func (s *LeadService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.leads.SoftDelete(ctx, id, userID); err != nil {
		return err
	}
	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "lead_deleted",
		EntityType:  models.AuditEntityLead,
		EntityID:    &id,
	})
	return nil
}
