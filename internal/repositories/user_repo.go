package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkedreach/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, name, plan, plan_start_date, plan_end_date, pending_downgrade,
	linkedin_username, career_goal, industry, target_roles, linkedin_profile, profile_fetched_at,
	created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var profile []byte
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Plan, &u.PlanStartDate, &u.PlanEndDate, &u.PendingDowngrade,
		&u.LinkedinUsername, &u.CareerGoal, &u.Industry, &u.TargetRoles, &profile, &u.ProfileFetchedAt,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if len(profile) > 0 {
		u.LinkedinProfile = json.RawMessage(profile)
	}
	if u.TargetRoles == nil {
		u.TargetRoles = []string{}
	}
	return &u, nil
}

// UpsertByEmail creates the user on first sign-in and refreshes the name afterwards.
func (r *UserRepo) UpsertByEmail(ctx context.Context, email string, name *string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, users.name),
			updated_at = now()
		RETURNING `+userColumns,
		email, name))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) UpdatePreferences(ctx context.Context, u *models.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET career_goal = $2, industry = $3, target_roles = $4, linkedin_username = $5,
		       updated_at = now()
		WHERE id = $1
	`, u.ID, u.CareerGoal, u.Industry, u.TargetRoles, u.LinkedinUsername)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows)
	}
	return nil
}

func (r *UserRepo) UpdateProfileSnapshot(ctx context.Context, id uuid.UUID, profile json.RawMessage, fetchedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET linkedin_profile = $2, profile_fetched_at = $3, updated_at = now()
		WHERE id = $1
	`, id, []byte(profile), fetchedAt)
	return err
}

// UpdatePlan writes the subscription fields set by billing events.
func (r *UserRepo) UpdatePlan(ctx context.Context, u *models.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET plan = $2, plan_start_date = $3, plan_end_date = $4, pending_downgrade = $5,
		       updated_at = now()
		WHERE id = $1
	`, u.ID, u.Plan, u.PlanStartDate, u.PlanEndDate, u.PendingDowngrade)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows)
	}
	return nil
}

// ListDowngradesDue returns users whose pending downgrade has reached its end date.
func (r *UserRepo) ListDowngradesDue(ctx context.Context, now time.Time, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE pending_downgrade AND plan_end_date IS NOT NULL AND plan_end_date <= $1
		ORDER BY plan_end_date LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
