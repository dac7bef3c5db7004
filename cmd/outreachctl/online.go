package main

import (
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/app"
	"github.com/linkedreach/backend/internal/auth"
	"github.com/linkedreach/backend/internal/db"
	"github.com/linkedreach/backend/migrations"
)

func (o *rootOptions) pool(cmd *cobra.Command) (*pgxpool.Pool, error) {
	pool, err := db.NewPostgresPool(cmd.Context(), o.cfg.PostgresDSN, o.cfg.Postgres, o.log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

func newMigrateCmd(o *rootOptions) *cobra.Command {
	var dir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var fsys fs.FS = migrations.FS
			if dir == "" {
				dir = o.cfg.MigrationsDir
			}
			if dir != "" {
				fsys = os.DirFS(dir)
			}

			if dryRun {
				names, err := db.PendingCandidates(fsys)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}

			pool, err := o.pool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.RunMigrations(cmd.Context(), pool, fsys, o.log)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default: embedded)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the migration files without applying them")
	return cmd
}

func newGCCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete expired rate-limit windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := o.pool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := app.NewLimiter(o.cfg, pool, nil, o.log).CollectGarbage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired windows\n", n)
			return nil
		},
	}
}

func newSweepCmd(o *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply due plan downgrades and clear due follow-ups once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := o.pool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := app.NewServices(o.cfg, pool, nil, o.log)
			downgraded, err := svc.Users.ExpireDowngrades(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("downgrades: %w", err)
			}
			followUps, err := svc.Prospects.FollowUps(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("follow-ups: %w", err)
			}
			o.log.Info("sweep done", zap.Int("downgraded", downgraded), zap.Int("follow_ups", followUps))
			fmt.Fprintf(cmd.OutOrStdout(), "downgraded=%d follow_ups=%d\n", downgraded, followUps)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "max rows per sweep")
	return cmd
}

func newTokenCmd(o *rootOptions) *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user (support and local testing)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user-id: %w", err)
			}
			token, err := auth.GenerateJWT(o.cfg.JWTSecret, id, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
