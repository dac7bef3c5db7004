package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
)

type LeadRepo struct {
	pool *pgxpool.Pool
}

func NewLeadRepo(pool *pgxpool.Pool) *LeadRepo {
	return &LeadRepo{pool: pool}
}

const leadColumns = `id, user_id, usage_id, name, position, company, linkedin_url, status, message, created_at, updated_at`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.UserID, &l.UsageID, &l.Name, &l.Position, &l.Company, &l.LinkedinURL,
		&l.Status, &l.Message, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// ensureUsage creates the month bucket if needed and locks it for the rest of tx.
func ensureUsage(ctx context.Context, tx pgx.Tx, userID uuid.UUID, year, month int, plan string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO monthly_usage (user_id, year, month, plan)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, year, month) DO UPDATE SET plan = EXCLUDED.plan
		RETURNING id
	`, userID, year, month, plan).Scan(&id)
	return id, err
}

func countUsage(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, usageID uuid.UUID) (models.LeadUsage, error) {
	var u models.LeadUsage
	err := q.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM leads WHERE usage_id = $1),
			(SELECT count(*) FROM deleted_leads WHERE usage_id = $1)
	`, usageID).Scan(&u.Active, &u.Deleted)
	return u, err
}

// Create inserts a lead into the (user, year, month) bucket. check sees the
// bucket's usage with the bucket row locked.
func (r *LeadRepo) Create(ctx context.Context, l *models.Lead, year, month int, plan string, check func(models.LeadUsage) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	usageID, err := ensureUsage(ctx, tx, l.UserID, year, month, plan)
	if err != nil {
		return fmt.Errorf("monthly usage: %w", err)
	}

	if check != nil {
		usage, err := countUsage(ctx, tx, usageID)
		if err != nil {
			return err
		}
		if err := check(usage); err != nil {
			return err
		}
	}

	l.UsageID = usageID
	err = tx.QueryRow(ctx, `
		INSERT INTO leads (user_id, usage_id, name, position, company, linkedin_url, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, l.UserID, l.UsageID, l.Name, l.Position, l.Company, l.LinkedinURL, l.Status, l.Message,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Usage returns the month's counts; a missing bucket counts as zero.
func (r *LeadRepo) Usage(ctx context.Context, userID uuid.UUID, year, month int) (models.LeadUsage, error) {
	var usageID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM monthly_usage WHERE user_id = $1 AND year = $2 AND month = $3
	`, userID, year, month).Scan(&usageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LeadUsage{}, nil
	}
	if err != nil {
		return models.LeadUsage{}, err
	}
	return countUsage(ctx, r.pool, usageID)
}

func (r *LeadRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Lead, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func (r *LeadRepo) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) (*models.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3
		RETURNING `+leadColumns,
		status, id, userID))
}

// SoftDelete removes the lead and records a deletion marker in the same bucket,
// so the month's quota still counts it.
func (r *LeadRepo) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var usageID uuid.UUID
	err = tx.QueryRow(ctx, `
		DELETE FROM leads WHERE id = $1 AND user_id = $2 RETURNING usage_id
	`, id, userID).Scan(&usageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO deleted_leads (user_id, usage_id, lead_id) VALUES ($1, $2, $3)
	`, userID, usageID, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
