// Command outreachctl is the operator CLI: offline scoring, plan limits,
// migrations, rate-limit garbage collection, plan sweeps and API tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/config"
)

type rootOptions struct {
	debug bool
	log   *zap.Logger
	cfg   *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "outreachctl",
		Short:         "Operate the outreach backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.debug {
				opts.log, err = zap.NewDevelopment()
			} else {
				opts.log, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}
			opts.cfg = config.Load()
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "verbose development logging")

	root.AddCommand(
		newScoreCmd(),
		newLimitsCmd(),
		newMigrateCmd(opts),
		newGCCmd(opts),
		newSweepCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
