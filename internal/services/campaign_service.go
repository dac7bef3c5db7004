package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/quota"
	"github.com/linkedreach/backend/internal/ratelimit"
	"github.com/linkedreach/backend/internal/repositories"
	"github.com/linkedreach/backend/internal/scoring"
)

// Campaign actions exposed to the route layer.
const (
	CampaignActionPause  = "pause"
	CampaignActionResume = "resume"
)

const (
	maxNameLength  = 100
	maxDailyLimit  = 100
	maxTemplateLen = 2000
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

type CampaignService struct {
	users     UserStore
	campaigns CampaignStore
	prospects ProspectStore
	limiter   *ratelimit.Limiter
	searcher  prospectsearch.Searcher
	enricher  *prospectsearch.Enricher
	profiles  prospectsearch.ProfileFetcher
	engine    *scoring.Engine
	threshold float64
	rec       recorder
	log       *zap.Logger
}

func NewCampaignService(
	users UserStore,
	campaigns CampaignStore,
	prospects ProspectStore,
	audit AuditLogger,
	limiter *ratelimit.Limiter,
	searcher prospectsearch.Searcher,
	enricher *prospectsearch.Enricher,
	profiles prospectsearch.ProfileFetcher,
	engine *scoring.Engine,
	publisher events.Publisher,
	autoApproveThreshold float64,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		users:     users,
		campaigns: campaigns,
		prospects: prospects,
		limiter:   limiter,
		searcher:  searcher,
		enricher:  enricher,
		profiles:  profiles,
		engine:    engine,
		threshold: autoApproveThreshold,
		rec:       recorder{audit: audit, publisher: publisher, log: log},
		log:       log,
	}
}

type CreateCampaignInput struct {
	Name            string
	TargetCompany   string
	AutoApprove     bool
	AutoMessage     bool
	MessageTemplate *string
	DailyLimit      int
}

func (in *CreateCampaignInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.TargetCompany = strings.TrimSpace(in.TargetCompany)
	if in.Name == "" || len(in.Name) > maxNameLength {
		return apperr.Validation("name", fmt.Sprintf("must be 1-%d characters", maxNameLength))
	}
	if in.TargetCompany == "" || len(in.TargetCompany) > maxNameLength {
		return apperr.Validation("target_company", fmt.Sprintf("must be 1-%d characters", maxNameLength))
	}
	if in.DailyLimit == 0 {
		in.DailyLimit = models.DefaultDailyLimit
	}
	if in.DailyLimit < 1 || in.DailyLimit > maxDailyLimit {
		return apperr.Validation("daily_limit", fmt.Sprintf("must be between 1 and %d", maxDailyLimit))
	}
	if in.MessageTemplate != nil && len(*in.MessageTemplate) > maxTemplateLen {
		return apperr.Validation("message_template", "too long")
	}
	return nil
}

// CreateCampaign searches for prospects at the target company, scores them and
// stores the campaign with every prospect in its initial state, all or nothing.
// Search failures degrade to a campaign without prospects.
func (s *CampaignService) CreateCampaign(ctx context.Context, userID uuid.UUID, in CreateCampaignInput) (*models.CampaignWithProspects, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.TargetRoles) == 0 {
		return nil, apperr.Validation("target_roles", "set target roles in your preferences before creating a campaign")
	}

	// Cheap pre-check so a user at the cap neither spends a rate-limit attempt
	// nor triggers a search. The authoritative check runs again inside the
	// insert transaction.
	count, err := s.campaigns.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := quota.CheckCampaignQuota(user.Plan, count); err != nil {
		return nil, err
	}

	if err := s.limiter.Check(ctx, userID, ratelimit.ActionCreateCampaign); err != nil {
		return nil, err
	}

	cands := s.discover(ctx, in.TargetCompany, user.TargetRoles, user.Plan)

	prefs := user.Preferences()
	prospects := make([]models.Prospect, 0, len(cands))
	for _, c := range cands {
		vd := s.engine.Score(scoring.Candidate{
			Name:        c.Name,
			Position:    c.Position,
			Company:     c.Company,
			LinkedinURL: c.LinkedinURL,
			Location:    c.Location,
			Summary:     c.Summary,
			Experience:  c.Experience,
		}, in.TargetCompany, prefs)

		prospects = append(prospects, models.Prospect{
			PublicID:       c.PublicID,
			Name:           c.Name,
			Position:       c.Position,
			Company:        c.Company,
			LinkedinURL:    c.LinkedinURL,
			Status:         models.InitialProspectStatus(in.AutoApprove, vd.Score, s.threshold),
			ValidationData: &vd,
		})
	}

	campaign := &models.Campaign{
		UserID:          userID,
		Name:            in.Name,
		TargetCompany:   in.TargetCompany,
		Status:          models.CampaignStatusActive,
		MessageTemplate: in.MessageTemplate,
		AutoApprove:     in.AutoApprove,
		AutoMessage:     in.AutoMessage,
		DailyLimit:      in.DailyLimit,
	}

	err = s.campaigns.CreateWithProspects(ctx, campaign, prospects, func(existing int) error {
		return quota.CheckCampaignQuota(user.Plan, existing)
	})
	if err != nil {
		return nil, err
	}

	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "campaign_created",
		EntityType:  models.AuditEntityCampaign,
		EntityID:    &campaign.ID,
		Meta:        map[string]any{"target_company": in.TargetCompany, "prospects": len(prospects)},
	})
	s.rec.publish(ctx, events.StreamCampaign, events.ForUser(events.EventCampaignCreated, userID, map[string]any{
		"campaign_id": campaign.ID.String(),
		"prospects":   len(prospects),
	}))

	s.log.Info("campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("prospects", len(prospects)),
	)

	return &models.CampaignWithProspects{
		Campaign:  *campaign,
		Prospects: prospects,
		Stats:     models.ComputeStats(prospects),
	}, nil
}

// discover searches, caps the result to the plan and enriches what is kept.
func (s *CampaignService) discover(ctx context.Context, company string, roles []string, plan string) []prospectsearch.Candidate {
	cands, err := s.searcher.Search(ctx, company, roles)
	if err != nil {
		s.log.Warn("prospect search failed, creating campaign without prospects",
			zap.String("company", company), zap.Error(err))
		return nil
	}
	cands = quota.CapProspects(plan, cands)
	if s.enricher != nil && len(cands) > 0 {
		cands = s.enricher.Enrich(ctx, cands)
	}
	return cands
}

func (s *CampaignService) Get(ctx context.Context, userID, id uuid.UUID) (*models.CampaignWithProspects, error) {
	c, err := s.campaigns.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	prospects, err := s.prospects.ListByCampaign(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &models.CampaignWithProspects{Campaign: *c, Prospects: prospects, Stats: models.ComputeStats(prospects)}, nil
}

func (s *CampaignService) List(ctx context.Context, userID uuid.UUID, status *string, limit, offset int) ([]models.Campaign, error) {
	if status != nil {
		if _, ok := models.ValidCampaignTransitions[*status]; !ok {
			return nil, apperr.Validation("status", "unknown campaign status")
		}
	}
	return s.campaigns.List(ctx, repositories.CampaignFilter{
		UserID: &userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
}

type UpdateCampaignInput struct {
	Name            *string
	MessageTemplate *string
	AutoApprove     *bool
	AutoMessage     *bool
	DailyLimit      *int
}

func (s *CampaignService) Update(ctx context.Context, userID, id uuid.UUID, in UpdateCampaignInput) (*models.Campaign, error) {
	c, err := s.campaigns.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, apperr.Validation("name", fmt.Sprintf("must be 1-%d characters", maxNameLength))
		}
		c.Name = name
	}
	if in.MessageTemplate != nil {
		if len(*in.MessageTemplate) > maxTemplateLen {
			return nil, apperr.Validation("message_template", "too long")
		}
		c.MessageTemplate = in.MessageTemplate
	}
	if in.AutoApprove != nil {
		c.AutoApprove = *in.AutoApprove
	}
	if in.AutoMessage != nil {
		c.AutoMessage = *in.AutoMessage
	}
	if in.DailyLimit != nil {
		if *in.DailyLimit < 1 || *in.DailyLimit > maxDailyLimit {
			return nil, apperr.Validation("daily_limit", fmt.Sprintf("must be between 1 and %d", maxDailyLimit))
		}
		c.DailyLimit = *in.DailyLimit
	}

	if err := s.campaigns.Update(ctx, c); err != nil {
		return nil, err
	}

	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "campaign_updated",
		EntityType:  models.AuditEntityCampaign,
		EntityID:    &c.ID,
	})
	return c, nil
}

// SetStatus pauses or resumes a campaign. Terminal campaigns cannot be reopened.
func (s *CampaignService) SetStatus(ctx context.Context, userID, id uuid.UUID, action string) (*models.CampaignWithProspects, error) {
	var to string
	switch action {
	case CampaignActionPause:
		to = models.CampaignStatusPaused
	case CampaignActionResume:
		to = models.CampaignStatusActive
	default:
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidAction, action)
	}

	c, err := s.campaigns.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, c, to, actorUser(userID), "user"); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// transition validates and performs a campaign status change with audit logging.
func (s *CampaignService) transition(ctx context.Context, c *models.Campaign, to string, actorID *uuid.UUID, actorType string) error {
	if !models.IsValidCampaignTransition(c.Status, to) {
		return fmt.Errorf("%w: campaign %s -> %s", apperr.ErrInvalidAction, c.Status, to)
	}
	return transitionCampaign(ctx, s.campaigns, s.rec, c, to, actorID, actorType)
}

func (s *CampaignService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.campaigns.DeleteCascade(ctx, id, userID); err != nil {
		return err
	}
	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "campaign_deleted",
		EntityType:  models.AuditEntityCampaign,
		EntityID:    &id,
	})
	s.rec.publish(ctx, events.StreamCampaign, events.ForUser(events.EventCampaignDeleted, userID, map[string]any{
		"campaign_id": id.String(),
	}))
	return nil
}

// AddProspect adds one prospect by LinkedIn username or profile URL. The profile
// service supplies name and current position; the prospect starts unvalidated.
func (s *CampaignService) AddProspect(ctx context.Context, userID, campaignID uuid.UUID, username string) (*models.Prospect, error) {
	username = strings.TrimSpace(username)
	if u, ok := prospectsearch.UsernameFromURL(username); ok {
		username = u
	}
	if !usernamePattern.MatchString(username) || len(username) > maxNameLength {
		return nil, apperr.Validation("username", "must be a LinkedIn username or profile URL")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.campaigns.GetOwned(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CampaignStatusCompleted || c.Status == models.CampaignStatusFailed {
		return nil, apperr.Validation("campaign", "campaign is "+strings.ToLower(c.Status))
	}

	profile, err := s.profiles.FetchProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	cand := scoring.Candidate{
		Name:        profile.BasicInfo.Name,
		LinkedinURL: prospectsearch.ProfileURL(username),
		Location:    profile.BasicInfo.Location,
		Summary:     profile.BasicInfo.Headline,
		Experience:  profile.ExperienceSummary(),
	}
	if cand.Name == "" {
		cand.Name = prospectsearch.NameFromUsername(username)
	}
	if cur, ok := profile.Current(); ok {
		cand.Position = cur.Title
		cand.Company = cur.Company
	}
	if cand.Position == "" || cand.Company == "" {
		return nil, apperr.Validation("username", "profile has no current position")
	}

	vd := s.engine.Score(cand, c.TargetCompany, user.Preferences())
	p := &models.Prospect{
		CampaignID:     c.ID,
		PublicID:       username,
		Name:           cand.Name,
		Position:       cand.Position,
		Company:        cand.Company,
		LinkedinURL:    cand.LinkedinURL,
		Status:         models.ProspectStatusPendingValidation,
		ValidationData: &vd,
	}

	err = s.prospects.CreateInCampaign(ctx, p, func(existing int) error {
		return quota.CheckManualProspectAdd(user.Plan, existing)
	})
	if errors.Is(err, apperr.ErrDuplicate) {
		return nil, apperr.Validation("username", "already in this campaign")
	}
	if err != nil {
		return nil, err
	}

	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "prospect_added",
		EntityType:  models.AuditEntityProspect,
		EntityID:    &p.ID,
		Meta:        map[string]any{"campaign_id": c.ID.String(), "public_id": username},
	})
	return p, nil
}

// transitionCampaign writes a checked campaign status change, audits and publishes it.
func transitionCampaign(ctx context.Context, campaigns CampaignStore, rec recorder, c *models.Campaign, to string, actorID *uuid.UUID, actorType string) error {
	from := c.Status
	if err := campaigns.UpdateStatus(ctx, c.ID, from, to); err != nil {
		return err
	}
	c.Status = to
	c.UpdatedAt = time.Now()

	rec.record(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      fmt.Sprintf("campaign_status_%s_to_%s", from, to),
		EntityType:  models.AuditEntityCampaign,
		EntityID:    &c.ID,
		Meta:        map[string]any{"old_status": from, "new_status": to},
	})
	rec.publish(ctx, events.StreamCampaign, events.ForUser(events.EventCampaignStatusChanged, c.UserID, map[string]any{
		"campaign_id": c.ID.String(),
		"old_status":  from,
		"new_status":  to,
	}))
	return nil
}

// completeIfDone closes an open campaign once none of its prospects is left
// in a non-terminal status. Called after prospect transitions.
func completeIfDone(ctx context.Context, campaigns CampaignStore, prospects ProspectStore, rec recorder, c *models.Campaign) error {
	if c.Status != models.CampaignStatusActive && c.Status != models.CampaignStatusPaused {
		return nil
	}
	open, err := prospects.CountOpen(ctx, c.ID)
	if err != nil || open > 0 {
		return err
	}
	err = transitionCampaign(ctx, campaigns, rec, c, models.CampaignStatusCompleted, nil, "system")
	if errors.Is(err, apperr.ErrStaleState) {
		return nil
	}
	return err
}
