// Package quota holds the plan tier limit table and the checks built on it.
package quota

import (
	"fmt"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
)

// Unlimited marks a limit with no ceiling.
const Unlimited = -1

// Quota resources
const (
	ResourceCampaigns = "campaigns"
	ResourceProspects = "prospects"
	ResourceLeads     = "leads"
)

type Limits struct {
	MaxCampaigns            int `json:"max_campaigns"`
	MaxProspectsPerCampaign int `json:"max_prospects_per_campaign"`
	MaxLeadsPerMonth        int `json:"max_leads_per_month"`
}

var planLimits = map[string]Limits{
	models.PlanFree: {MaxCampaigns: 2, MaxProspectsPerCampaign: 15, MaxLeadsPerMonth: 10},
	models.PlanPlus: {MaxCampaigns: 20, MaxProspectsPerCampaign: Unlimited, MaxLeadsPerMonth: 100},
	models.PlanPro:  {MaxCampaigns: Unlimited, MaxProspectsPerCampaign: Unlimited, MaxLeadsPerMonth: Unlimited},
}

func LimitsFor(plan string) (Limits, error) {
	l, ok := planLimits[plan]
	if !ok {
		return Limits{}, apperr.Validation("plan", fmt.Sprintf("unknown plan %q", plan))
	}
	return l, nil
}

// CheckCampaignQuota rejects a new campaign once the plan's campaign count is reached.
func CheckCampaignQuota(plan string, current int) error {
	l, err := LimitsFor(plan)
	if err != nil {
		return err
	}
	return check(ResourceCampaigns, plan, l.MaxCampaigns, current)
}

// CapProspects keeps the first N candidates in search order. Plans without a
// per-campaign cap, and unknown plans, get the list back untouched.
func CapProspects[T any](plan string, items []T) []T {
	l, err := LimitsFor(plan)
	if err != nil || l.MaxProspectsPerCampaign == Unlimited || len(items) <= l.MaxProspectsPerCampaign {
		return items
	}
	return items[:l.MaxProspectsPerCampaign]
}

// CheckManualProspectAdd applies the per-campaign cap to prospects added one at a time.
// Unlike bulk creation this rejects rather than truncates.
func CheckManualProspectAdd(plan string, current int) error {
	l, err := LimitsFor(plan)
	if err != nil {
		return err
	}
	return check(ResourceProspects, plan, l.MaxProspectsPerCampaign, current)
}

// CheckMonthlyLeadQuota counts active and soft-deleted leads of the current month.
func CheckMonthlyLeadQuota(plan string, usage models.LeadUsage) error {
	l, err := LimitsFor(plan)
	if err != nil {
		return err
	}
	return check(ResourceLeads, plan, l.MaxLeadsPerMonth, usage.Total())
}

// Remaining returns how many more units fit under limit, or Unlimited.
func Remaining(limit, current int) int {
	if limit == Unlimited {
		return Unlimited
	}
	if current >= limit {
		return 0
	}
	return limit - current
}

func check(resource, plan string, limit, current int) error {
	if limit == Unlimited || current < limit {
		return nil
	}
	return &apperr.QuotaExceededError{
		Resource: resource,
		Plan:     plan,
		Limit:    limit,
		Current:  current,
	}
}
