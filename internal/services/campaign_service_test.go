package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/quota"
	"github.com/linkedreach/backend/internal/ratelimit"
)

func TestCreateCampaign_InitialStatusesFollowScore(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	e.search.cands = []prospectsearch.Candidate{
		candidate("jane-doe", "Jane Doe", "Software Engineer", "Google"), // 0.91
		candidate("sam-lee", "Sam Lee", "Account Manager", "Google"),     // 0.61
	}

	got, err := e.campaignSvc.CreateCampaign(context.Background(), u.ID, CreateCampaignInput{
		Name: "Google outreach", TargetCompany: "Google", AutoApprove: true,
	})
	require.NoError(t, err)
	require.Len(t, got.Prospects, 2)

	assert.Equal(t, models.ProspectStatusConnectionPending, got.Prospects[0].Status)
	assert.InDelta(t, 0.91, got.Prospects[0].ValidationData.Score, 1e-9)
	assert.Equal(t, models.ProspectStatusPendingValidation, got.Prospects[1].Status)
	assert.InDelta(t, 0.61, got.Prospects[1].ValidationData.Score, 1e-9)

	assert.Equal(t, models.CampaignStatusActive, got.Status)
	assert.Equal(t, models.DefaultDailyLimit, got.DailyLimit)
	assert.Equal(t, 2, got.Stats.Total)
	assert.Equal(t, 1, got.Stats.Pending)

	stored, err := e.prospects.ListByCampaign(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Contains(t, e.pub.types(), events.EventCampaignCreated)
	assert.Contains(t, e.audit.actions(), "campaign_created")
}

func TestCreateCampaign_NoAutoApproveKeepsEveryoneForReview(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	e.search.cands = []prospectsearch.Candidate{candidate("jane-doe", "Jane Doe", "Software Engineer", "Google")}

	got, err := e.campaignSvc.CreateCampaign(context.Background(), u.ID, CreateCampaignInput{
		Name: "Google", TargetCompany: "Google",
	})
	require.NoError(t, err)
	require.Len(t, got.Prospects, 1)
	assert.Equal(t, models.ProspectStatusPendingValidation, got.Prospects[0].Status)
}

func TestCreateCampaign_FreePlanCampaignQuota(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	ctx := context.Background()

	e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "one"})
	_, err := e.campaignSvc.CreateCampaign(ctx, u.ID, CreateCampaignInput{Name: "two", TargetCompany: "Google"})
	require.NoError(t, err, "second campaign fits the FREE cap")

	_, err = e.campaignSvc.CreateCampaign(ctx, u.ID, CreateCampaignInput{Name: "three", TargetCompany: "Google"})
	var qe *apperr.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, quota.ResourceCampaigns, qe.Resource)
	assert.Equal(t, 2, qe.Limit)
	assert.Equal(t, 2, qe.Current)
	assert.Equal(t, 1, e.search.calls, "search is skipped once the cap is reached")
}

func TestCreateCampaign_QuotaCheckedBeforeRateLimit(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	ctx := context.Background()
	e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "one"})
	e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "two"})

	for range 3 {
		_, err := e.campaignSvc.CreateCampaign(ctx, u.ID, CreateCampaignInput{Name: "more", TargetCompany: "Google"})
		var qe *apperr.QuotaExceededError
		require.ErrorAs(t, err, &qe)
	}
	info := e.limiter.Info(ctx, u.ID, ratelimit.ActionCreateCampaign)
	assert.Equal(t, info.Limit, info.Remaining, "rejected creates spend no attempts")
}

func TestCreateCampaign_QuotaRecheckedInsideTransaction(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	ctx := context.Background()

	// A concurrent request lands between the pre-check and the insert.
	e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "one"})
	search := &racingSearcher{db: e.db, userID: u.ID}
	e.campaignSvc.searcher = search

	_, err := e.campaignSvc.CreateCampaign(ctx, u.ID, CreateCampaignInput{Name: "two", TargetCompany: "Google"})
	var qe *apperr.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 2, e.db.countCampaigns(u.ID))
}

type racingSearcher struct {
	db     *memDB
	userID uuid.UUID
}

func (s *racingSearcher) Search(context.Context, string, []string) ([]prospectsearch.Candidate, error) {
	s.db.addCampaign(models.Campaign{UserID: s.userID, Name: "concurrent"})
	return nil, nil
}

func TestCreateCampaign_FreePlanTruncatesProspects(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	for i := range 20 {
		id := fmt.Sprintf("person-%02d", i)
		e.search.cands = append(e.search.cands, candidate(id, "Person", "Software Engineer", "Google"))
	}

	got, err := e.campaignSvc.CreateCampaign(context.Background(), u.ID, CreateCampaignInput{Name: "Google", TargetCompany: "Google"})
	require.NoError(t, err)
	require.Len(t, got.Prospects, 15)
	for i, p := range got.Prospects {
		assert.Equal(t, fmt.Sprintf("person-%02d", i), p.PublicID)
	}
}

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) FetchProfile(_ context.Context, username string) (*models.LinkedinProfile, error) {
	f.calls.Add(1)
	p := profileOf(username, "Software Engineer", "Google")
	p.BasicInfo.Location = "Zurich"
	return p, nil
}

func TestCreateCampaign_EnrichesOnlyKeptProspects(t *testing.T) {
	e := newEnv(t)
	fetcher := &countingFetcher{}
	e.campaignSvc.enricher = prospectsearch.NewEnricher(fetcher, 4, zap.NewNop())
	u := e.newUser(models.PlanFree)
	for i := range 20 {
		e.search.cands = append(e.search.cands, candidate(fmt.Sprintf("person-%02d", i), "Person", "Software Engineer", "Google"))
	}

	got, err := e.campaignSvc.CreateCampaign(context.Background(), u.ID, CreateCampaignInput{Name: "Google", TargetCompany: "Google"})
	require.NoError(t, err)
	require.Len(t, got.Prospects, 15)
	assert.Equal(t, int32(15), fetcher.calls.Load())
}

func TestCreateCampaign_SearchFailureDegradesToEmptyCampaign(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPlus)
	e.search.err = errors.New("scraper down")

	got, err := e.campaignSvc.CreateCampaign(context.Background(), u.ID, CreateCampaignInput{Name: "Google", TargetCompany: "Google"})
	require.NoError(t, err)
	assert.Empty(t, got.Prospects)
	assert.Equal(t, models.CampaignStatusActive, got.Status)
}

func TestCreateCampaign_Validation(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	noRoles := e.db.addUser(models.User{Email: "noroles@example.com", Plan: models.PlanPro})

	tests := []struct {
		name   string
		userID uuid.UUID
		in     CreateCampaignInput
		field  string
	}{
		{"missing name", u.ID, CreateCampaignInput{TargetCompany: "Google"}, "name"},
		{"missing company", u.ID, CreateCampaignInput{Name: "x", TargetCompany: "  "}, "target_company"},
		{"daily limit too high", u.ID, CreateCampaignInput{Name: "x", TargetCompany: "Google", DailyLimit: 500}, "daily_limit"},
		{"no target roles", noRoles.ID, CreateCampaignInput{Name: "x", TargetCompany: "Google"}, "target_roles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.campaignSvc.CreateCampaign(context.Background(), tt.userID, tt.in)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Zero(t, e.search.calls)
}

func TestCreateCampaign_RateLimited(t *testing.T) {
	e := newEnv(t, ratelimit.WithConfig(ratelimit.ActionCreateCampaign, ratelimit.Config{Limit: 1, Interval: time.Hour}))
	u := e.newUser(models.PlanPro)
	ctx := context.Background()

	_, err := e.campaignSvc.CreateCampaign(ctx, u.ID, CreateCampaignInput{Name: "a", TargetCompany: "Google"})
	require.NoError(t, err)

	_, err = e.campaignSvc.CreateCampaign(ctx, u.ID, CreateCampaignInput{Name: "b", TargetCompany: "Google"})
	var rl *apperr.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, ratelimit.ActionCreateCampaign, rl.Action)
	assert.Equal(t, 1, e.db.countCampaigns(u.ID))
}

func TestCreateCampaign_StoreFailureLeavesNothing(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	e.search.cands = []prospectsearch.Candidate{candidate("jane-doe", "Jane Doe", "Software Engineer", "Google")}
	e.campaigns.createErr = errors.New("connection reset")

	_, err := e.campaignSvc.CreateCampaign(context.Background(), u.ID, CreateCampaignInput{Name: "a", TargetCompany: "Google"})
	require.Error(t, err)
	assert.Zero(t, e.db.countCampaigns(u.ID))
	assert.Empty(t, e.db.prospects)
}

func TestCampaignPauseResume(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c"})
	ctx := context.Background()

	got, err := e.campaignSvc.SetStatus(ctx, u.ID, c.ID, CampaignActionPause)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)

	_, err = e.campaignSvc.SetStatus(ctx, u.ID, c.ID, CampaignActionPause)
	assert.ErrorIs(t, err, apperr.ErrInvalidAction)

	got, err = e.campaignSvc.SetStatus(ctx, u.ID, c.ID, CampaignActionResume)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, got.Status)

	_, err = e.campaignSvc.SetStatus(ctx, u.ID, c.ID, "archive")
	assert.ErrorIs(t, err, apperr.ErrInvalidAction)
}

func TestCampaignResumeCompletedRejected(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c", Status: models.CampaignStatusCompleted})

	_, err := e.campaignSvc.SetStatus(context.Background(), u.ID, c.ID, CampaignActionResume)
	assert.ErrorIs(t, err, apperr.ErrInvalidAction)
	assert.Equal(t, models.CampaignStatusCompleted, e.db.campaign(c.ID).Status)
}

func TestCampaignOwnership(t *testing.T) {
	e := newEnv(t)
	owner := e.newUser(models.PlanPro)
	other := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: owner.ID, Name: "c"})
	ctx := context.Background()

	_, err := e.campaignSvc.Get(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.campaignSvc.SetStatus(ctx, other.ID, c.ID, CampaignActionPause)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.campaignSvc.Delete(ctx, other.ID, c.ID), apperr.ErrNotFound)
}

func TestCampaignDeleteCascades(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c"})
	e.db.addProspect(models.Prospect{CampaignID: c.ID, PublicID: "a", Status: models.ProspectStatusPendingValidation})
	e.db.addProspect(models.Prospect{CampaignID: c.ID, PublicID: "b", Status: models.ProspectStatusConnectionSent})

	require.NoError(t, e.campaignSvc.Delete(context.Background(), u.ID, c.ID))
	assert.Empty(t, e.db.prospects)
	assert.Contains(t, e.pub.types(), events.EventCampaignDeleted)
}

func TestCampaignUpdate(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c", DailyLimit: 20})
	ctx := context.Background()

	name := "  renamed "
	approve := true
	limit := 40
	got, err := e.campaignSvc.Update(ctx, u.ID, c.ID, UpdateCampaignInput{Name: &name, AutoApprove: &approve, DailyLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.True(t, e.db.campaign(c.ID).AutoApprove)
	assert.Equal(t, 40, e.db.campaign(c.ID).DailyLimit)

	bad := 0
	_, err = e.campaignSvc.Update(ctx, u.ID, c.ID, UpdateCampaignInput{DailyLimit: &bad})
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAddProspectManually(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c", TargetCompany: "Google", AutoApprove: true})
	e.profiles.profiles["jane-doe"] = profileOf("Jane Doe", "Software Engineer", "Google")

	p, err := e.campaignSvc.AddProspect(context.Background(), u.ID, c.ID, "https://www.linkedin.com/in/jane-doe/")
	require.NoError(t, err)
	assert.Equal(t, "jane-doe", p.PublicID)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", p.LinkedinURL)
	assert.Equal(t, models.ProspectStatusPendingValidation, p.Status, "manual adds always wait for review")
	require.NotNil(t, p.ValidationData)
	assert.Greater(t, p.ValidationData.Score, 0.7)
}

func TestAddProspectManually_FreeCapRejects(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanFree)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c", TargetCompany: "Google"})
	for i := range 15 {
		e.db.addProspect(models.Prospect{CampaignID: c.ID, PublicID: fmt.Sprintf("p%d", i), Status: models.ProspectStatusPendingValidation})
	}
	e.profiles.profiles["jane-doe"] = profileOf("Jane Doe", "Software Engineer", "Google")

	_, err := e.campaignSvc.AddProspect(context.Background(), u.ID, c.ID, "jane-doe")
	var qe *apperr.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, quota.ResourceProspects, qe.Resource)
}

func TestAddProspectManually_AlreadyInCampaign(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c", TargetCompany: "Google"})
	e.profiles.profiles["jane-doe"] = profileOf("Jane Doe", "Software Engineer", "Google")
	ctx := context.Background()

	_, err := e.campaignSvc.AddProspect(ctx, u.ID, c.ID, "jane-doe")
	require.NoError(t, err)

	_, err = e.campaignSvc.AddProspect(ctx, u.ID, c.ID, "https://www.linkedin.com/in/jane-doe")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "username", ve.Field)
	assert.Equal(t, "already in this campaign", ve.Message)
}

func TestAddProspectManually_Errors(t *testing.T) {
	e := newEnv(t)
	u := e.newUser(models.PlanPro)
	c := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "c", TargetCompany: "Google"})
	done := e.db.addCampaign(models.Campaign{UserID: u.ID, Name: "d", Status: models.CampaignStatusCompleted})
	ctx := context.Background()

	_, err := e.campaignSvc.AddProspect(ctx, u.ID, c.ID, "bad name!")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = e.campaignSvc.AddProspect(ctx, u.ID, done.ID, "jane-doe")
	require.ErrorAs(t, err, &ve)

	_, err = e.campaignSvc.AddProspect(ctx, u.ID, c.ID, "ghost")
	var ext *apperr.ExternalServiceError
	require.ErrorAs(t, err, &ext)
}
