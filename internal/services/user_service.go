package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/auth"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/quota"
	"github.com/linkedreach/backend/internal/ratelimit"
)

const (
	profileMaxAge  = 7 * 24 * time.Hour
	maxTargetRoles = 20
	maxRoleLength  = 50
)

type UserService struct {
	users     UserStore
	prospects ProspectStore
	leads     *LeadService
	limiter   *ratelimit.Limiter
	profiles  prospectsearch.ProfileFetcher
	rec       recorder
	now       func() time.Time
	log       *zap.Logger
}

func NewUserService(
	users UserStore,
	prospects ProspectStore,
	leads *LeadService,
	limiter *ratelimit.Limiter,
	profiles prospectsearch.ProfileFetcher,
	audit AuditLogger,
	publisher events.Publisher,
	log *zap.Logger,
) *UserService {
	return &UserService{
		users:     users,
		prospects: prospects,
		leads:     leads,
		limiter:   limiter,
		profiles:  profiles,
		rec:       recorder{audit: audit, publisher: publisher, log: log},
		now:       time.Now,
		log:       log,
	}
}

// SignIn creates the user on first sign-in.
func (s *UserService) SignIn(ctx context.Context, id *auth.Identity) (*models.User, error) {
	var name *string
	if id.Name != "" {
		name = &id.Name
	}
	return s.users.UpsertByEmail(ctx, id.Email, name)
}

func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// PreferencesInput: nil fields are left unchanged.
type PreferencesInput struct {
	CareerGoal       *string
	Industry         *string
	TargetRoles      []string
	LinkedinUsername *string
}

// UpdatePreferences stores the scoring preferences and refreshes the LinkedIn
// profile snapshot when the username changed or the snapshot is stale. A failed
// refresh does not fail the update.
func (s *UserService) UpdatePreferences(ctx context.Context, userID uuid.UUID, in PreferencesInput) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.CareerGoal != nil {
		if !models.IsValidCareerGoal(*in.CareerGoal) {
			return nil, apperr.Validation("career_goal", "must be job or internship")
		}
		u.CareerGoal = in.CareerGoal
	}
	if in.Industry != nil {
		industry := strings.ToLower(strings.TrimSpace(*in.Industry))
		if len(industry) > maxNameLength {
			return nil, apperr.Validation("industry", "too long")
		}
		u.Industry = &industry
	}
	if in.TargetRoles != nil {
		roles, err := normalizeRoles(in.TargetRoles)
		if err != nil {
			return nil, err
		}
		u.TargetRoles = roles
	}

	usernameChanged := false
	if in.LinkedinUsername != nil {
		username := strings.TrimSpace(*in.LinkedinUsername)
		if username != "" && (!usernamePattern.MatchString(username) || len(username) > maxNameLength) {
			return nil, apperr.Validation("linkedin_username", "may contain only letters, digits and hyphens")
		}
		usernameChanged = u.LinkedinUsername == nil || *u.LinkedinUsername != username
		if username == "" {
			u.LinkedinUsername = nil
		} else {
			u.LinkedinUsername = &username
		}
	}

	if err := s.users.UpdatePreferences(ctx, u); err != nil {
		return nil, err
	}

	if u.LinkedinUsername != nil && (usernameChanged || s.profileStale(u)) {
		s.refreshProfile(ctx, u)
	}

	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "preferences_updated",
		EntityType:  models.AuditEntityUser,
		EntityID:    &u.ID,
	})
	return u, nil
}

func (s *UserService) profileStale(u *models.User) bool {
	return u.ProfileFetchedAt == nil || s.now().Sub(*u.ProfileFetchedAt) > profileMaxAge
}

func (s *UserService) refreshProfile(ctx context.Context, u *models.User) {
	p, err := s.profiles.FetchProfile(ctx, *u.LinkedinUsername)
	if err != nil {
		s.log.Warn("linkedin profile refresh failed",
			zap.String("user_id", u.ID.String()), zap.Error(err))
		return
	}
	fetchedAt := s.now().UTC()
	if err := s.users.UpdateProfileSnapshot(ctx, u.ID, p.Raw, fetchedAt); err != nil {
		s.log.Warn("store linkedin profile failed",
			zap.String("user_id", u.ID.String()), zap.Error(err))
		return
	}
	u.LinkedinProfile = p.Raw
	u.ProfileFetchedAt = &fetchedAt
}

func normalizeRoles(in []string) ([]string, error) {
	if len(in) > maxTargetRoles {
		return nil, apperr.Validation("target_roles", fmt.Sprintf("at most %d roles", maxTargetRoles))
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || len(r) > maxRoleLength {
			return nil, apperr.Validation("target_roles", fmt.Sprintf("roles must be 1-%d characters", maxRoleLength))
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// CheckPlan applies a pending downgrade whose end date has passed.
func (s *UserService) CheckPlan(ctx context.Context, userID uuid.UUID) (bool, *models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	updated, err := s.applyDowngrade(ctx, u)
	return updated, u, err
}

// ExpireDowngrades runs CheckPlan for every user with a due downgrade.
func (s *UserService) ExpireDowngrades(ctx context.Context, limit int) (int, error) {
	users, err := s.users.ListDowngradesDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range users {
		ok, err := s.applyDowngrade(ctx, &users[i])
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *UserService) applyDowngrade(ctx context.Context, u *models.User) (bool, error) {
	if !u.PendingDowngrade || u.PlanEndDate == nil || s.now().Before(*u.PlanEndDate) {
		return false, nil
	}
	return true, downgradeToFree(ctx, s.users, s.rec, u, "system")
}

func downgradeToFree(ctx context.Context, users UserStore, rec recorder, u *models.User, actorType string) error {
	old := u.Plan
	u.Plan = models.PlanFree
	u.PendingDowngrade = false
	u.PlanEndDate = nil
	if err := users.UpdatePlan(ctx, u); err != nil {
		return err
	}

	rec.record(ctx, models.AuditLog{
		ActorType:  actorType,
		Action:     "plan_downgraded",
		EntityType: models.AuditEntityUser,
		EntityID:   &u.ID,
		Meta:       map[string]any{"old_plan": old},
	})
	rec.publish(ctx, events.StreamBilling, events.ForUser(events.EventPlanDowngraded, u.ID, map[string]any{
		"old_plan": old,
		"plan":     u.Plan,
	}))
	return nil
}

// Dashboard is the stats page payload.
type Dashboard struct {
	models.DashboardStats
	Plan   string           `json:"plan"`
	Limits quota.Limits     `json:"limits"`
	Leads  *LeadUsageReport `json:"leads"`
}

func (s *UserService) Stats(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits, err := quota.LimitsFor(u.Plan)
	if err != nil {
		return nil, err
	}
	stats, err := s.prospects.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	leads, err := s.leads.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{DashboardStats: stats, Plan: u.Plan, Limits: limits, Leads: leads}, nil
}

// RateLimits peeks at every limited action without consuming attempts.
func (s *UserService) RateLimits(ctx context.Context, userID uuid.UUID) map[string]ratelimit.Result {
	out := make(map[string]ratelimit.Result)
	for _, action := range s.limiter.Actions() {
		out[action] = s.limiter.Info(ctx, userID, action)
	}
	return out
}
