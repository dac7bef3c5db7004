package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Plan tiers
const (
	PlanFree = "FREE"
	PlanPlus = "PLUS"
	PlanPro  = "PRO"
)

// Career goals
const (
	CareerGoalJob        = "job"
	CareerGoalInternship = "internship"
)

func IsValidPlan(plan string) bool {
	return plan == PlanFree || plan == PlanPlus || plan == PlanPro
}

func IsValidCareerGoal(goal string) bool {
	return goal == CareerGoalJob || goal == CareerGoalInternship
}

type User struct {
	ID                uuid.UUID       `json:"id"`
	Email             string          `json:"email"`
	Name              *string         `json:"name,omitempty"`
	Plan              string          `json:"plan"`
	PlanStartDate     *time.Time      `json:"plan_start_date,omitempty"`
	PlanEndDate       *time.Time      `json:"plan_end_date,omitempty"`
	PendingDowngrade  bool            `json:"pending_downgrade"`
	LinkedinUsername  *string         `json:"linkedin_username,omitempty"`
	CareerGoal        *string         `json:"career_goal,omitempty"`
	Industry          *string         `json:"industry,omitempty"`
	TargetRoles       []string        `json:"target_roles"`
	LinkedinProfile   json.RawMessage `json:"linkedin_profile,omitempty"` // opaque snapshot
	ProfileFetchedAt  *time.Time      `json:"profile_fetched_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Preferences returns the scoring preferences stated by the user.
func (u *User) Preferences() Preferences {
	p := Preferences{
		CareerGoal:  CareerGoalJob,
		TargetRoles: u.TargetRoles,
	}
	if u.CareerGoal != nil && *u.CareerGoal != "" {
		p.CareerGoal = *u.CareerGoal
	}
	if u.Industry != nil {
		p.Industry = *u.Industry
	}
	return p
}

// Preferences drive role relevance and seniority scoring.
type Preferences struct {
	CareerGoal  string   `json:"career_goal"`
	Industry    string   `json:"industry"`
	TargetRoles []string `json:"target_roles"`
}

type DashboardStats struct {
	TotalCampaigns int `json:"total_campaigns"`
	TotalProspects int `json:"total_prospects"`
	MessagesSent   int `json:"messages_sent"`
}
