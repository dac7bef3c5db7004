package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignColumns = `id, user_id, name, target_company, status, message_template, auto_approve,
	auto_message, daily_limit, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.TargetCompany, &c.Status, &c.MessageTemplate,
		&c.AutoApprove, &c.AutoMessage, &c.DailyLimit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateWithProspects inserts the campaign and all its prospects in one transaction.
// check runs with the owner's row locked and sees the current campaign count;
// an error from it aborts the insert.
func (r *CampaignRepo) CreateWithProspects(ctx context.Context, c *models.Campaign, prospects []models.Prospect, check func(existing int) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, c.UserID).Scan(&locked); err != nil {
		return notFound(err)
	}

	if check != nil {
		var existing int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM campaigns WHERE user_id = $1`, c.UserID).Scan(&existing); err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO campaigns (user_id, name, target_company, status, message_template, auto_approve, auto_message, daily_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, c.UserID, c.Name, c.TargetCompany, c.Status, c.MessageTemplate, c.AutoApprove, c.AutoMessage, c.DailyLimit,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	for i := range prospects {
		p := &prospects[i]
		p.CampaignID = c.ID
		if err := insertProspect(ctx, tx, p); err != nil {
			return fmt.Errorf("insert prospect %s: %w", p.PublicID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetOwned returns the campaign only when it belongs to userID.
func (r *CampaignRepo) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Campaign, error) {
	return scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET name = $1, message_template = $2, auto_approve = $3, auto_message = $4,
		       daily_limit = $5, updated_at = now()
		WHERE id = $6
	`, c.Name, c.MessageTemplate, c.AutoApprove, c.AutoMessage, c.DailyLimit, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UpdateStatus moves the campaign only if it is still in from.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrStaleState
	}
	return nil
}

// DeleteCascade removes the campaign and its prospects in one transaction.
func (r *CampaignRepo) DeleteCascade(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM prospects WHERE campaign_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *CampaignRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM campaigns WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

type CampaignFilter struct {
	UserID *uuid.UUID
	Status *string
	Limit  int
	Offset int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}
