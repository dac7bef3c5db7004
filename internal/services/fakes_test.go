package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/ratelimit"
	"github.com/linkedreach/backend/internal/repositories"
	"github.com/linkedreach/backend/internal/scoring"
)

// memDB backs the in-memory stores with the same ownership and
// transaction semantics as the pgx repositories.
type memDB struct {
	mu        sync.Mutex
	users     map[uuid.UUID]models.User
	campaigns map[uuid.UUID]models.Campaign
	prospects map[uuid.UUID]models.Prospect
	seq       map[uuid.UUID]int
	next      int
	leads     map[uuid.UUID]models.Lead
	buckets   map[string]uuid.UUID
	deleted   map[uuid.UUID]int
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[uuid.UUID]models.User{},
		campaigns: map[uuid.UUID]models.Campaign{},
		prospects: map[uuid.UUID]models.Prospect{},
		seq:       map[uuid.UUID]int{},
		leads:     map[uuid.UUID]models.Lead{},
		buckets:   map[string]uuid.UUID{},
		deleted:   map[uuid.UUID]int{},
	}
}

func (db *memDB) addUser(u models.User) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Plan == "" {
		u.Plan = models.PlanFree
	}
	db.users[u.ID] = u
	return &u
}

func (db *memDB) addCampaign(c models.Campaign) *models.Campaign {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusActive
	}
	db.campaigns[c.ID] = c
	return &c
}

func (db *memDB) addProspect(p models.Prospect) *models.Prospect {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.insertProspect(&p)
	return &p
}

func (db *memDB) insertProspect(p *models.Prospect) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	db.next++
	db.seq[p.ID] = db.next
	db.prospects[p.ID] = *p
}

func (db *memDB) prospect(id uuid.UUID) models.Prospect {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.prospects[id]
}

func (db *memDB) campaign(id uuid.UUID) models.Campaign {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.campaigns[id]
}

func (db *memDB) user(id uuid.UUID) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id]
}

func (db *memDB) countCampaigns(userID uuid.UUID) int {
	n := 0
	for _, c := range db.campaigns {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

type memUsers struct{ db *memDB }

func (s memUsers) UpsertByEmail(_ context.Context, email string, name *string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, u := range s.db.users {
		if u.Email == email {
			if name != nil {
				u.Name = name
				s.db.users[id] = u
			}
			return &u, nil
		}
	}
	u := models.User{ID: uuid.New(), Email: email, Name: name, Plan: models.PlanFree, TargetRoles: []string{}}
	s.db.users[u.ID] = u
	return &u, nil
}

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

func (s memUsers) UpdatePreferences(_ context.Context, u *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.users[u.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	cur.CareerGoal, cur.Industry, cur.TargetRoles, cur.LinkedinUsername = u.CareerGoal, u.Industry, u.TargetRoles, u.LinkedinUsername
	s.db.users[u.ID] = cur
	return nil
}

func (s memUsers) UpdateProfileSnapshot(_ context.Context, id uuid.UUID, profile json.RawMessage, fetchedAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur := s.db.users[id]
	cur.LinkedinProfile = profile
	cur.ProfileFetchedAt = &fetchedAt
	s.db.users[id] = cur
	return nil
}

func (s memUsers) UpdatePlan(_ context.Context, u *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.users[u.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	cur.Plan, cur.PlanStartDate, cur.PlanEndDate, cur.PendingDowngrade = u.Plan, u.PlanStartDate, u.PlanEndDate, u.PendingDowngrade
	s.db.users[u.ID] = cur
	return nil
}

func (s memUsers) ListDowngradesDue(_ context.Context, now time.Time, _ int) ([]models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.User
	for _, u := range s.db.users {
		if u.PendingDowngrade && u.PlanEndDate != nil && !u.PlanEndDate.After(now) {
			out = append(out, u)
		}
	}
	return out, nil
}

type memCampaigns struct {
	db        *memDB
	createErr error
}

func (s *memCampaigns) CreateWithProspects(_ context.Context, c *models.Campaign, prospects []models.Prospect, check func(int) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if check != nil {
		if err := check(s.db.countCampaigns(c.UserID)); err != nil {
			return err
		}
	}
	if s.createErr != nil {
		return s.createErr
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	s.db.campaigns[c.ID] = *c
	for i := range prospects {
		prospects[i].CampaignID = c.ID
		s.db.insertProspect(&prospects[i])
	}
	return nil
}

func (s *memCampaigns) GetOwned(_ context.Context, id, userID uuid.UUID) (*models.Campaign, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.campaigns[id]
	if !ok || c.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return &c, nil
}

func (s *memCampaigns) Update(_ context.Context, c *models.Campaign) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.campaigns[c.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	cur.Name, cur.MessageTemplate, cur.AutoApprove, cur.AutoMessage, cur.DailyLimit = c.Name, c.MessageTemplate, c.AutoApprove, c.AutoMessage, c.DailyLimit
	s.db.campaigns[c.ID] = cur
	return nil
}

func (s *memCampaigns) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.campaigns[id]
	if !ok || c.Status != from {
		return apperr.ErrStaleState
	}
	c.Status = to
	s.db.campaigns[id] = c
	return nil
}

func (s *memCampaigns) DeleteCascade(_ context.Context, id, userID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.campaigns[id]
	if !ok || c.UserID != userID {
		return apperr.ErrNotFound
	}
	for pid, p := range s.db.prospects {
		if p.CampaignID == id {
			delete(s.db.prospects, pid)
		}
	}
	delete(s.db.campaigns, id)
	return nil
}

func (s *memCampaigns) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.countCampaigns(userID), nil
}

func (s *memCampaigns) List(_ context.Context, f repositories.CampaignFilter) ([]models.Campaign, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Campaign{}
	for _, c := range s.db.campaigns {
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type memProspects struct {
	db        *memDB
	updateErr error
}

func (s *memProspects) CreateInCampaign(_ context.Context, p *models.Prospect, check func(int) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.campaigns[p.CampaignID]; !ok {
		return apperr.ErrNotFound
	}
	if check != nil {
		n := 0
		for _, x := range s.db.prospects {
			if x.CampaignID == p.CampaignID {
				n++
			}
		}
		if err := check(n); err != nil {
			return err
		}
	}
	for _, x := range s.db.prospects {
		if x.CampaignID == p.CampaignID && x.PublicID == p.PublicID {
			return apperr.ErrDuplicate
		}
	}
	s.db.insertProspect(p)
	return nil
}

func (s *memProspects) GetOwned(_ context.Context, id, userID uuid.UUID) (*models.Prospect, *models.Campaign, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.prospects[id]
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	c, ok := s.db.campaigns[p.CampaignID]
	if !ok || c.UserID != userID {
		return nil, nil, apperr.ErrNotFound
	}
	return &p, &c, nil
}

func (s *memProspects) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]models.Prospect, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Prospect{}
	for _, p := range s.db.prospects {
		if p.CampaignID == campaignID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.db.seq[out[i].ID] < s.db.seq[out[j].ID] })
	return out, nil
}

func (s *memProspects) UpdateState(_ context.Context, p *models.Prospect, fromStatus string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	cur, ok := s.db.prospects[p.ID]
	if !ok || cur.Status != fromStatus {
		return apperr.ErrStaleState
	}
	s.db.prospects[p.ID] = *p
	return nil
}

func (s *memProspects) CountOpen(_ context.Context, campaignID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, p := range s.db.prospects {
		if p.CampaignID == campaignID && !models.IsTerminalProspectStatus(p.Status) {
			n++
		}
	}
	return n, nil
}

func (s *memProspects) DueForFollowUp(_ context.Context, now time.Time, _ int) ([]models.FollowUp, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.FollowUp
	for _, p := range s.db.prospects {
		c := s.db.campaigns[p.CampaignID]
		if p.NextActionAt == nil || p.NextActionAt.After(now) || c.Status != models.CampaignStatusActive {
			continue
		}
		out = append(out, models.FollowUp{
			ProspectID: p.ID, CampaignID: p.CampaignID, UserID: c.UserID,
			Name: p.Name, Status: p.Status, DueAt: *p.NextActionAt,
		})
	}
	return out, nil
}

func (s *memProspects) ClearNextAction(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.prospects[id]
	if !ok {
		return apperr.ErrNotFound
	}
	p.NextActionAt = nil
	s.db.prospects[id] = p
	return nil
}

func (s *memProspects) UserStats(_ context.Context, userID uuid.UUID) (models.DashboardStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	st := models.DashboardStats{TotalCampaigns: s.db.countCampaigns(userID)}
	for _, p := range s.db.prospects {
		if s.db.campaigns[p.CampaignID].UserID != userID {
			continue
		}
		st.TotalProspects++
		if p.Status == models.ProspectStatusMessageSent || p.Status == models.ProspectStatusCompleted {
			st.MessagesSent++
		}
	}
	return st, nil
}

type memLeads struct{ db *memDB }

func bucketKey(userID uuid.UUID, year, month int) string {
	return userID.String() + "/" + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (s memLeads) usage(usageID uuid.UUID) models.LeadUsage {
	u := models.LeadUsage{Deleted: s.db.deleted[usageID]}
	for _, l := range s.db.leads {
		if l.UsageID == usageID {
			u.Active++
		}
	}
	return u
}

func (s memLeads) Create(_ context.Context, l *models.Lead, year, month int, _ string, check func(models.LeadUsage) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := bucketKey(l.UserID, year, month)
	usageID, ok := s.db.buckets[key]
	if !ok {
		usageID = uuid.New()
		s.db.buckets[key] = usageID
	}
	if check != nil {
		if err := check(s.usage(usageID)); err != nil {
			return err
		}
	}
	l.ID = uuid.New()
	l.UsageID = usageID
	s.db.leads[l.ID] = *l
	return nil
}

func (s memLeads) Usage(_ context.Context, userID uuid.UUID, year, month int) (models.LeadUsage, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	usageID, ok := s.db.buckets[bucketKey(userID, year, month)]
	if !ok {
		return models.LeadUsage{}, nil
	}
	return s.usage(usageID), nil
}

func (s memLeads) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Lead, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Lead{}
	for _, l := range s.db.leads {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s memLeads) UpdateStatus(_ context.Context, id, userID uuid.UUID, status string) (*models.Lead, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.leads[id]
	if !ok || l.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	l.Status = status
	s.db.leads[id] = l
	return &l, nil
}

func (s memLeads) SoftDelete(_ context.Context, id, userID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.leads[id]
	if !ok || l.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(s.db.leads, id)
	s.db.deleted[l.UsageID]++
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *memAudit) Log(_ context.Context, e models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type published struct {
	stream string
	event  events.Event
}

type memPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *memPublisher) Publish(_ context.Context, stream string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{stream: stream, event: ev})
	return nil
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.sent {
		out = append(out, s.event.Type)
	}
	return out
}

type stubSearcher struct {
	cands []prospectsearch.Candidate
	err   error
	calls int
}

func (s *stubSearcher) Search(context.Context, string, []string) ([]prospectsearch.Candidate, error) {
	s.calls++
	return s.cands, s.err
}

type stubGenerator struct {
	mu    sync.Mutex
	errs  []error // consumed one per call; nil slice means success
	calls int
	last  MessageRequest
}

func (g *stubGenerator) Generate(_ context.Context, req MessageRequest) (*models.ProspectMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.ProspectMessage{Text: "Hi " + req.TargetUsername + ", would you be open to a chat?"}, nil
}

type stubProfiles struct {
	profiles map[string]*models.LinkedinProfile
	calls    int
}

func (s *stubProfiles) FetchProfile(_ context.Context, username string) (*models.LinkedinProfile, error) {
	s.calls++
	p, ok := s.profiles[username]
	if !ok {
		return nil, &apperr.ExternalServiceError{Service: "profile service", Retryable: false, Err: errors.New("HTTP 404")}
	}
	return p, nil
}

func profileOf(name, title, company string) *models.LinkedinProfile {
	p := &models.LinkedinProfile{Experience: []models.ProfileExperience{{Title: title, Company: company}}}
	p.BasicInfo.Name = name
	p.Raw = json.RawMessage(`{"basic_info":{"name":"` + name + `"}}`)
	return p
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// env wires every service over the in-memory stores.
type env struct {
	db        *memDB
	clock     *fakeClock
	campaigns *memCampaigns
	prospects *memProspects
	audit     *memAudit
	pub       *memPublisher
	search    *stubSearcher
	gen       *stubGenerator
	profiles  *stubProfiles
	limiter   *ratelimit.Limiter

	campaignSvc *CampaignService
	prospectSvc *ProspectService
	leadSvc     *LeadService
	userSvc     *UserService
	billingSvc  *BillingService
}

func newEnv(t *testing.T, opts ...ratelimit.Option) *env {
	t.Helper()
	log := zap.NewNop()
	db := newMemDB()
	clock := &fakeClock{t: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}

	e := &env{
		db:        db,
		clock:     clock,
		campaigns: &memCampaigns{db: db},
		prospects: &memProspects{db: db},
		audit:     &memAudit{},
		pub:       &memPublisher{},
		search:    &stubSearcher{},
		gen:       &stubGenerator{},
		profiles:  &stubProfiles{profiles: map[string]*models.LinkedinProfile{}},
	}
	opts = append([]ratelimit.Option{ratelimit.WithGCChance(0), ratelimit.WithClock(clock.Now)}, opts...)
	e.limiter = ratelimit.New(ratelimit.NewMemoryStore(), log, opts...)

	users := memUsers{db: db}
	engine := scoring.NewEngine(nil)
	e.campaignSvc = NewCampaignService(users, e.campaigns, e.prospects, e.audit, e.limiter,
		e.search, nil, e.profiles, engine, e.pub, 0.7, log)
	e.prospectSvc = NewProspectService(e.prospects, e.campaigns, users, e.audit, e.limiter,
		e.gen, engine, e.pub, log)
	e.prospectSvc.now = clock.Now
	e.leadSvc = NewLeadService(memLeads{db: db}, users, e.audit, log)
	e.leadSvc.now = clock.Now
	e.userSvc = NewUserService(users, e.prospects, e.leadSvc, e.limiter, e.profiles, e.audit, e.pub, log)
	e.userSvc.now = clock.Now
	e.billingSvc = NewBillingService(users, e.audit, e.pub, log)
	e.billingSvc.now = clock.Now
	return e
}

func (e *env) newUser(plan string) *models.User {
	goal := models.CareerGoalJob
	industry := "tech"
	return e.db.addUser(models.User{
		Email:       uuid.NewString() + "@example.com",
		Plan:        plan,
		CareerGoal:  &goal,
		Industry:    &industry,
		TargetRoles: []string{"swe"},
	})
}

func candidate(id, name, position, company string) prospectsearch.Candidate {
	return prospectsearch.Candidate{
		Name:        name,
		Position:    position,
		Company:     company,
		PublicID:    id,
		LinkedinURL: prospectsearch.ProfileURL(id),
	}
}
