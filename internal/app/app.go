// Package app wires repositories, collaborators and services from configuration.
// The api, worker and outreachctl binaries share it.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/config"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/ratelimit"
	"github.com/linkedreach/backend/internal/repositories"
	"github.com/linkedreach/backend/internal/scoring"
	"github.com/linkedreach/backend/internal/services"
)

type Services struct {
	Limiter   *ratelimit.Limiter
	Publisher events.Publisher

	Users     *services.UserService
	Campaigns *services.CampaignService
	Prospects *services.ProspectService
	Leads     *services.LeadService
	Billing   *services.BillingService
}

// NewLimiter builds the action limiter over the configured backend. The redis
// backend needs rdb and falls back to postgres without it.
func NewLimiter(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) *ratelimit.Limiter {
	var store ratelimit.Store
	switch {
	case cfg.RateLimitBackend == config.RateLimitBackendRedis && rdb != nil:
		store = ratelimit.NewRedisStore(rdb, cfg.LongestInterval())
	case cfg.RateLimitBackend == config.RateLimitBackendMemory:
		store = ratelimit.NewMemoryStore()
	default:
		store = ratelimit.NewPostgresStore(pool)
	}

	opts := []ratelimit.Option{ratelimit.WithGCChance(cfg.RateLimitGCChance)}
	for action, lc := range cfg.ActionLimits {
		opts = append(opts, ratelimit.WithConfig(action, lc))
	}
	return ratelimit.New(store, log, opts...)
}

// NewSearcher picks the prospect discovery backend.
func NewSearcher(cfg *config.Config, log *zap.Logger) prospectsearch.Searcher {
	if cfg.SearchBackend == config.SearchBackendWeb {
		return prospectsearch.NewWebSearcher(cfg.SearchWebURL, cfg.External.Timeout, cfg.SearchQueryDelay, log)
	}
	return prospectsearch.NewServiceClient(cfg.SearchServiceURL, cfg.External, log)
}

// NewServices builds every service over postgres. rdb may be nil, in which
// case events are dropped.
func NewServices(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) *Services {
	userRepo := repositories.NewUserRepo(pool)
	campaignRepo := repositories.NewCampaignRepo(pool)
	prospectRepo := repositories.NewProspectRepo(pool)
	leadRepo := repositories.NewLeadRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	var publisher events.Publisher = events.NopPublisher{}
	if rdb != nil {
		publisher = events.NewRedisPublisher(rdb, log)
	}

	limiter := NewLimiter(cfg, pool, rdb, log)
	engine := scoring.NewEngine(nil)
	profiles := services.NewProfileClient(cfg.ProfileServiceURL, cfg.External, log)
	generator := services.NewMessageClient(cfg.MessageServiceURL, cfg.External, log)

	var enricher *prospectsearch.Enricher
	if cfg.EnrichConcurrency > 0 {
		enricher = prospectsearch.NewEnricher(profiles, cfg.EnrichConcurrency, log)
	}

	leads := services.NewLeadService(leadRepo, userRepo, auditRepo, log)
	return &Services{
		Limiter:   limiter,
		Publisher: publisher,
		Users:     services.NewUserService(userRepo, prospectRepo, leads, limiter, profiles, auditRepo, publisher, log),
		Campaigns: services.NewCampaignService(userRepo, campaignRepo, prospectRepo, auditRepo, limiter,
			NewSearcher(cfg, log), enricher, profiles, engine, publisher, cfg.AutoApproveThreshold, log),
		Prospects: services.NewProspectService(prospectRepo, campaignRepo, userRepo, auditRepo, limiter,
			generator, engine, publisher, log),
		Leads:   leads,
		Billing: services.NewBillingService(userRepo, auditRepo, publisher, log),
	}
}
