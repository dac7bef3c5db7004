package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead statuses
const (
	LeadStatusPending   = "Pending"
	LeadStatusMessaged  = "Messaged"
	LeadStatusResponded = "Responded"
)

func IsValidLeadStatus(s string) bool {
	return s == LeadStatusPending || s == LeadStatusMessaged || s == LeadStatusResponded
}

type Lead struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	UsageID     uuid.UUID        `json:"usage_id"`
	Name        string           `json:"name"`
	Position    string           `json:"position"`
	Company     string           `json:"company"`
	LinkedinURL string           `json:"linkedin_url"`
	Status      string           `json:"status"`
	Message     *ProspectMessage `json:"message,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// MonthlyUsage is the (user, year, month) bucket leads are counted against.
type MonthlyUsage struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Year   int       `json:"year"`
	Month  int       `json:"month"`
	Plan   string    `json:"plan"`
}

// LeadUsage is the count used by the monthly lead quota.
type LeadUsage struct {
	Active  int `json:"active"`
	Deleted int `json:"deleted"`
}

func (u LeadUsage) Total() int {
	return u.Active + u.Deleted
}
