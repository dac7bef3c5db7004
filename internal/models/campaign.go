package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses
const (
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusPaused    = "PAUSED"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusFailed    = "FAILED"
)

const DefaultDailyLimit = 20

// ValidCampaignTransitions: from -> []to. COMPLETED and FAILED are terminal.
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusFailed},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusCompleted, CampaignStatusFailed},
	CampaignStatusCompleted: {},
	CampaignStatusFailed:    {},
}

func IsValidCampaignTransition(from, to string) bool {
	for _, s := range ValidCampaignTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Campaign struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	TargetCompany   string    `json:"target_company"`
	Status          string    `json:"status"`
	MessageTemplate *string   `json:"message_template,omitempty"`
	AutoApprove     bool      `json:"auto_approve"`
	AutoMessage     bool      `json:"auto_message"`
	DailyLimit      int       `json:"daily_limit"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CampaignStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Connected int `json:"connected"`
	Messaged  int `json:"messaged"`
}

// CampaignWithProspects is the detail view returned by GET /campaigns/:id.
type CampaignWithProspects struct {
	Campaign
	Prospects []Prospect    `json:"prospects"`
	Stats     CampaignStats `json:"stats"`
}

// ComputeStats counts prospects per pipeline column.
func ComputeStats(prospects []Prospect) CampaignStats {
	stats := CampaignStats{Total: len(prospects)}
	for _, p := range prospects {
		switch p.Status {
		case ProspectStatusPendingValidation:
			stats.Pending++
		case ProspectStatusConnectionAccepted:
			stats.Connected++
		case ProspectStatusMessageSent:
			stats.Messaged++
		}
	}
	return stats
}
