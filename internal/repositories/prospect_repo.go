package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
)

type ProspectRepo struct {
	pool *pgxpool.Pool
}

func NewProspectRepo(pool *pgxpool.Pool) *ProspectRepo {
	return &ProspectRepo{pool: pool}
}

const prospectColumns = `p.id, p.campaign_id, p.public_id, p.name, p.position, p.company, p.linkedin_url,
	p.status, p.validation_data, p.message, p.next_action_at, p.connection_id, p.created_at, p.updated_at`

func scanProspect(row pgx.Row) (*models.Prospect, error) {
	var p models.Prospect
	err := row.Scan(&p.ID, &p.CampaignID, &p.PublicID, &p.Name, &p.Position, &p.Company, &p.LinkedinURL,
		&p.Status, &p.ValidationData, &p.Message, &p.NextActionAt, &p.ConnectionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func insertProspect(ctx context.Context, tx pgx.Tx, p *models.Prospect) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO prospects (campaign_id, public_id, name, position, company, linkedin_url, status, validation_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.CampaignID, p.PublicID, p.Name, p.Position, p.Company, p.LinkedinURL, p.Status, p.ValidationData,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return duplicate(err)
}

// CreateInCampaign adds one prospect. check sees the campaign's prospect count
// with the campaign row locked.
func (r *ProspectRepo) CreateInCampaign(ctx context.Context, p *models.Prospect, check func(existing int) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM campaigns WHERE id = $1 FOR UPDATE`, p.CampaignID).Scan(&locked); err != nil {
		return notFound(err)
	}
	if check != nil {
		var existing int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM prospects WHERE campaign_id = $1`, p.CampaignID).Scan(&existing); err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}
	}
	if err := insertProspect(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetOwned loads a prospect whose campaign belongs to userID, together with the campaign.
func (r *ProspectRepo) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Prospect, *models.Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prospectColumns+`,
		       c.id, c.user_id, c.name, c.target_company, c.status, c.message_template, c.auto_approve,
		       c.auto_message, c.daily_limit, c.created_at, c.updated_at
		FROM prospects p JOIN campaigns c ON c.id = p.campaign_id
		WHERE p.id = $1 AND c.user_id = $2
	`, id, userID)

	var p models.Prospect
	var c models.Campaign
	err := row.Scan(&p.ID, &p.CampaignID, &p.PublicID, &p.Name, &p.Position, &p.Company, &p.LinkedinURL,
		&p.Status, &p.ValidationData, &p.Message, &p.NextActionAt, &p.ConnectionID, &p.CreatedAt, &p.UpdatedAt,
		&c.ID, &c.UserID, &c.Name, &c.TargetCompany, &c.Status, &c.MessageTemplate, &c.AutoApprove,
		&c.AutoMessage, &c.DailyLimit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, nil, notFound(err)
	}
	return &p, &c, nil
}

func (r *ProspectRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Prospect, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prospectColumns+` FROM prospects p WHERE p.campaign_id = $1 ORDER BY p.created_at, p.id
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prospects := []models.Prospect{}
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, *p)
	}
	return prospects, rows.Err()
}

// UpdateState writes status, message, next action and connection id if the
// prospect is still in fromStatus. Returns apperr.ErrStaleState otherwise.
func (r *ProspectRepo) UpdateState(ctx context.Context, p *models.Prospect, fromStatus string) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE prospects SET status = $1, message = $2, next_action_at = $3, connection_id = $4, updated_at = now()
		WHERE id = $5 AND status = $6
		RETURNING updated_at
	`, p.Status, p.Message, p.NextActionAt, p.ConnectionID, p.ID, fromStatus).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrStaleState
	}
	return err
}

// CountOpen returns how many prospects of the campaign are not in a terminal status.
func (r *ProspectRepo) CountOpen(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM prospects
		WHERE campaign_id = $1 AND status NOT IN ('COMPLETED', 'FAILED', 'VALIDATION_FAILED')
	`, campaignID).Scan(&n)
	return n, err
}

// DueForFollowUp lists prospects whose next action time has passed, oldest first.
func (r *ProspectRepo) DueForFollowUp(ctx context.Context, now time.Time, limit int) ([]models.FollowUp, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.campaign_id, c.user_id, p.name, p.status, p.next_action_at
		FROM prospects p JOIN campaigns c ON c.id = p.campaign_id
		WHERE p.next_action_at IS NOT NULL AND p.next_action_at <= $1
		  AND c.status = 'ACTIVE'
		ORDER BY p.next_action_at LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FollowUp
	for rows.Next() {
		var f models.FollowUp
		if err := rows.Scan(&f.ProspectID, &f.CampaignID, &f.UserID, &f.Name, &f.Status, &f.DueAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ClearNextAction drops the follow-up marker once it has been announced.
func (r *ProspectRepo) ClearNextAction(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE prospects SET next_action_at = NULL WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UserStats aggregates the dashboard counters for one user.
func (r *ProspectRepo) UserStats(ctx context.Context, userID uuid.UUID) (models.DashboardStats, error) {
	var s models.DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM campaigns WHERE user_id = $1),
			count(p.id),
			count(p.id) FILTER (WHERE p.status IN ('MESSAGE_SENT', 'COMPLETED'))
		FROM prospects p JOIN campaigns c ON c.id = p.campaign_id
		WHERE c.user_id = $1
	`, userID).Scan(&s.TotalCampaigns, &s.TotalProspects, &s.MessagesSent)
	return s, err
}
