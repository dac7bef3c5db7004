// Package ratelimit implements fixed-window per-user action limits.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
)

// Limited actions
const (
	ActionCreateCampaign    = "create_campaign"
	ActionConnectionRequest = "connection_request"
	ActionMessageSend       = "message_send"
)

type Config struct {
	Limit    int
	Interval time.Duration
}

// FallbackConfig applies to actions without a configured limit.
var FallbackConfig = Config{Limit: 100, Interval: time.Hour}

func DefaultConfigs() map[string]Config {
	return map[string]Config{
		ActionCreateCampaign:    {Limit: 10, Interval: time.Hour},
		ActionConnectionRequest: {Limit: 100, Interval: 24 * time.Hour},
		ActionMessageSend:       {Limit: 50, Interval: time.Hour},
	}
}

type Key struct {
	Action string
	UserID uuid.UUID
}

// Store persists one window per key. Hit must decide and record one attempt
// atomically with respect to other Hits of the same key.
type Store interface {
	Hit(ctx context.Context, key Key, now time.Time, cfg Config) (Result, error)
	Get(ctx context.Context, key Key) (*models.RateLimitRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// updateFunc is a read-modify-write of one key. fn gets nil when no record
// exists and returns nil when nothing should be written.
type updateFunc func(ctx context.Context, key Key, fn func(cur *models.RateLimitRecord) *models.RateLimitRecord) error

// hitUpdate runs decide inside an atomic update.
func hitUpdate(ctx context.Context, update updateFunc, key Key, now time.Time, cfg Config) (Result, error) {
	var res Result
	err := update(ctx, key, func(cur *models.RateLimitRecord) *models.RateLimitRecord {
		next, r := decide(cur, now, cfg)
		res = r
		if next != nil {
			next.Key = key.Action
			next.UserID = key.UserID
		}
		return next
	})
	return res, err
}

type Result struct {
	Success   bool      `json:"success"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Limit     int       `json:"limit"`
}

type Limiter struct {
	store     Store
	log       *zap.Logger
	configs   map[string]Config
	now       func() time.Time
	rand      func() float64
	gcChance  float64
	gcTimeout time.Duration

	gcRunning atomic.Bool
	wg        sync.WaitGroup
}

type Option func(*Limiter)

func WithConfig(action string, cfg Config) Option {
	return func(l *Limiter) { l.configs[action] = cfg }
}

// WithGCChance sets the probability (0..1) that a call schedules window cleanup.
func WithGCChance(p float64) Option {
	return func(l *Limiter) { l.gcChance = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithRand(r func() float64) Option {
	return func(l *Limiter) { l.rand = r }
}

func New(store Store, log *zap.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:     store,
		log:       log,
		configs:   DefaultConfigs(),
		now:       time.Now,
		rand:      rand.Float64,
		gcChance:  0.1,
		gcTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) ConfigFor(action string) Config {
	if cfg, ok := l.configs[action]; ok {
		return cfg
	}
	return FallbackConfig
}

// Allow counts one attempt of action for the user against the action's configured limit.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID, action string) Result {
	return l.AllowWith(ctx, userID, action, l.ConfigFor(action))
}

// AllowWith is Allow with an explicit limit. Storage errors fail open.
func (l *Limiter) AllowWith(ctx context.Context, userID uuid.UUID, action string, cfg Config) Result {
	l.maybeCollect()

	now := l.now()
	res, err := l.store.Hit(ctx, Key{Action: action, UserID: userID}, now, cfg)
	if err != nil {
		l.log.Warn("rate limit store unavailable, allowing",
			zap.String("action", action),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return Result{Success: true, Remaining: 1, ResetAt: now.Add(time.Hour), Limit: cfg.Limit}
	}
	return res
}

// Check is Allow returning *apperr.RateLimitedError when the attempt is over the limit.
func (l *Limiter) Check(ctx context.Context, userID uuid.UUID, action string) error {
	res := l.Allow(ctx, userID, action)
	if res.Success {
		return nil
	}
	return &apperr.RateLimitedError{Action: action, Remaining: res.Remaining, ResetAt: res.ResetAt}
}

// Info reports the current window without counting an attempt.
func (l *Limiter) Info(ctx context.Context, userID uuid.UUID, action string) Result {
	cfg := l.ConfigFor(action)
	now := l.now()
	fresh := Result{Success: true, Remaining: cfg.Limit, ResetAt: now.Add(cfg.Interval), Limit: cfg.Limit}

	rec, err := l.store.Get(ctx, Key{Action: action, UserID: userID})
	if err != nil {
		l.log.Warn("rate limit info unavailable", zap.String("action", action), zap.Error(err))
		return fresh
	}
	if rec == nil || expired(rec, now, cfg) {
		return fresh
	}
	remaining := max(0, cfg.Limit-rec.Count)
	return Result{
		Success:   remaining > 0,
		Remaining: remaining,
		ResetAt:   rec.WindowStart.Add(cfg.Interval),
		Limit:     cfg.Limit,
	}
}

// Actions lists the actions with an explicit configuration.
func (l *Limiter) Actions() []string {
	return []string{ActionCreateCampaign, ActionConnectionRequest, ActionMessageSend}
}

// CollectGarbage removes windows older than the longest configured interval.
func (l *Limiter) CollectGarbage(ctx context.Context) (int64, error) {
	longest := FallbackConfig.Interval
	for _, cfg := range l.configs {
		longest = max(longest, cfg.Interval)
	}
	return l.store.DeleteBefore(ctx, l.now().Add(-longest))
}

// Wait blocks until background cleanup started by Allow has finished.
func (l *Limiter) Wait() {
	l.wg.Wait()
}

func (l *Limiter) maybeCollect() {
	if l.gcChance <= 0 || l.rand() >= l.gcChance {
		return
	}
	if !l.gcRunning.CompareAndSwap(false, true) {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.gcRunning.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), l.gcTimeout)
		defer cancel()

		n, err := l.CollectGarbage(ctx)
		if err != nil {
			l.log.Warn("rate limit gc failed", zap.Error(err))
			return
		}
		if n > 0 {
			l.log.Debug("rate limit gc", zap.Int64("deleted", n))
		}
	}()
}

// decide applies one attempt to the current window. It returns the record to
// write (nil when the window is full) and the caller-facing result.
func decide(cur *models.RateLimitRecord, now time.Time, cfg Config) (*models.RateLimitRecord, Result) {
	if cur == nil || expired(cur, now, cfg) {
		return &models.RateLimitRecord{Count: 1, WindowStart: now}, Result{
			Success:   true,
			Remaining: max(0, cfg.Limit-1),
			ResetAt:   now.Add(cfg.Interval),
			Limit:     cfg.Limit,
		}
	}

	resetAt := cur.WindowStart.Add(cfg.Interval)
	if cur.Count >= cfg.Limit {
		return nil, Result{Success: false, Remaining: 0, ResetAt: resetAt, Limit: cfg.Limit}
	}

	next := *cur
	next.Count++
	return &next, Result{
		Success:   true,
		Remaining: max(0, cfg.Limit-next.Count),
		ResetAt:   resetAt,
		Limit:     cfg.Limit,
	}
}

func expired(rec *models.RateLimitRecord, now time.Time, cfg Config) bool {
	return rec.WindowStart.Before(now.Add(-cfg.Interval))
}
