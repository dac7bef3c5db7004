package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/quota"
	"github.com/linkedreach/backend/internal/scoring"
)

func newScoreCmd() *cobra.Command {
	var (
		c            scoring.Candidate
		target       string
		prefs        models.Preferences
		roles        string
		taxonomyFile string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one candidate against a target company and preferences",
		Example: `  outreachctl score --name "Jane Doe" --position "Software Engineer" --company Google \
    --target Google --goal job --industry tech --roles swe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(target) == "" {
				return fmt.Errorf("--target is required")
			}

			var tax *scoring.Taxonomy
			if taxonomyFile != "" {
				data, err := os.ReadFile(taxonomyFile)
				if err != nil {
					return err
				}
				if tax, err = scoring.ParseTaxonomy(data); err != nil {
					return fmt.Errorf("taxonomy %s: %w", taxonomyFile, err)
				}
			}

			for _, r := range strings.Split(roles, ",") {
				if r = strings.TrimSpace(r); r != "" {
					prefs.TargetRoles = append(prefs.TargetRoles, r)
				}
			}

			result := scoring.NewEngine(tax).Score(c, target, prefs)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.Name, "name", "", "candidate name")
	f.StringVar(&c.Position, "position", "", "candidate position")
	f.StringVar(&c.Company, "company", "", "candidate company")
	f.StringVar(&c.LinkedinURL, "url", "", "candidate profile URL")
	f.StringVar(&c.Location, "location", "", "candidate location")
	f.StringVar(&c.Summary, "summary", "", "candidate summary")
	f.StringVar(&c.Experience, "experience", "", "candidate experience summary")
	f.StringVar(&target, "target", "", "target company")
	f.StringVar(&prefs.CareerGoal, "goal", models.CareerGoalJob, "career goal (job|internship)")
	f.StringVar(&prefs.Industry, "industry", "", "industry id from the taxonomy")
	f.StringVar(&roles, "roles", "", "comma separated target role ids")
	f.StringVar(&taxonomyFile, "taxonomy", "", "YAML taxonomy replacing the built-in one")
	return cmd
}

func newLimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Print the quota of every plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLAN\tCAMPAIGNS\tPROSPECTS/CAMPAIGN\tLEADS/MONTH")
			for _, plan := range []string{models.PlanFree, models.PlanPlus, models.PlanPro} {
				l, err := quota.LimitsFor(plan)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", plan,
					limitString(l.MaxCampaigns), limitString(l.MaxProspectsPerCampaign), limitString(l.MaxLeadsPerMonth))
			}
			return w.Flush()
		},
	}
}

func limitString(n int) string {
	if n == quota.Unlimited {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
