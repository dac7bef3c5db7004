package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkedreach/backend/internal/models"
)

// PostgresStore serializes updates of one key with a row lock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Hit(ctx context.Context, key Key, now time.Time, cfg Config) (Result, error) {
	return hitUpdate(ctx, s.Update, key, now, cfg)
}

func (s *PostgresStore) Update(ctx context.Context, key Key, fn func(cur *models.RateLimitRecord) *models.RateLimitRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Placeholder row with count 0 so there is always a row to lock.
	_, err = tx.Exec(ctx,
		`INSERT INTO rate_limits (key, user_id, count, window_start)
		 VALUES ($1, $2, 0, to_timestamp(0))
		 ON CONFLICT (key, user_id) DO NOTHING`,
		key.Action, key.UserID,
	)
	if err != nil {
		return fmt.Errorf("ensure rate limit row: %w", err)
	}

	rec := models.RateLimitRecord{Key: key.Action, UserID: key.UserID}
	err = tx.QueryRow(ctx,
		`SELECT count, window_start FROM rate_limits WHERE key = $1 AND user_id = $2 FOR UPDATE`,
		key.Action, key.UserID,
	).Scan(&rec.Count, &rec.WindowStart)
	if err != nil {
		return fmt.Errorf("lock rate limit row: %w", err)
	}

	var cur *models.RateLimitRecord
	if rec.Count > 0 {
		cur = &rec
	}

	next := fn(cur)
	if next != nil {
		_, err = tx.Exec(ctx,
			`UPDATE rate_limits SET count = $3, window_start = $4 WHERE key = $1 AND user_id = $2`,
			key.Action, key.UserID, next.Count, next.WindowStart,
		)
		if err != nil {
			return fmt.Errorf("update rate limit row: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (*models.RateLimitRecord, error) {
	rec := models.RateLimitRecord{Key: key.Action, UserID: key.UserID}
	err := s.pool.QueryRow(ctx,
		`SELECT count, window_start FROM rate_limits WHERE key = $1 AND user_id = $2`,
		key.Action, key.UserID,
	).Scan(&rec.Count, &rec.WindowStart)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Count == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limits WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
