package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Prospect statuses
const (
	ProspectStatusPendingValidation  = "PENDING_VALIDATION"
	ProspectStatusValidationFailed   = "VALIDATION_FAILED"
	ProspectStatusConnectionPending  = "CONNECTION_PENDING"
	ProspectStatusConnectionSent     = "CONNECTION_SENT"
	ProspectStatusConnectionAccepted = "CONNECTION_ACCEPTED"
	ProspectStatusMessageQueued      = "MESSAGE_QUEUED"
	ProspectStatusMessageSent        = "MESSAGE_SENT"
	ProspectStatusCompleted          = "COMPLETED"
	ProspectStatusFailed             = "FAILED"
)

var AllProspectStatuses = []string{
	ProspectStatusPendingValidation,
	ProspectStatusValidationFailed,
	ProspectStatusConnectionPending,
	ProspectStatusConnectionSent,
	ProspectStatusConnectionAccepted,
	ProspectStatusMessageQueued,
	ProspectStatusMessageSent,
	ProspectStatusCompleted,
	ProspectStatusFailed,
}

// Prospect actions
const (
	ActionApprove              = "approve"
	ActionReject               = "reject"
	ActionMarkConnected        = "markConnected"
	ActionGenerateMessage      = "generateMessage"
	ActionSendMessage          = "sendMessage"
	ActionManualStatusOverride = "manualStatusOverride"
)

// ActionRule is one row of the prospect transition table.
// An empty To keeps the current status; AnySource accepts every status.
type ActionRule struct {
	From      []string
	To        string
	AnySource bool
}

func (r ActionRule) Allows(from string) bool {
	if r.AnySource {
		return IsValidProspectStatus(from)
	}
	for _, s := range r.From {
		if s == from {
			return true
		}
	}
	return false
}

// ProspectActions: action -> legal sources and destination.
var ProspectActions = map[string]ActionRule{
	ActionApprove: {
		From: []string{ProspectStatusPendingValidation, ProspectStatusConnectionPending},
		To:   ProspectStatusConnectionSent,
	},
	ActionReject: {
		From: []string{ProspectStatusPendingValidation, ProspectStatusConnectionPending},
		To:   ProspectStatusValidationFailed,
	},
	ActionMarkConnected: {
		From: []string{ProspectStatusConnectionSent},
		To:   ProspectStatusConnectionAccepted,
	},
	ActionGenerateMessage: {
		From: []string{ProspectStatusConnectionAccepted},
	},
	ActionSendMessage: {
		From: []string{ProspectStatusConnectionAccepted},
		To:   ProspectStatusMessageSent,
	},
	ActionManualStatusOverride: {
		AnySource: true,
	},
}

func LookupAction(action string) (ActionRule, bool) {
	r, ok := ProspectActions[action]
	return r, ok
}

func IsValidProspectStatus(status string) bool {
	for _, s := range AllProspectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalProspectStatus reports statuses that end a prospect's pipeline.
func IsTerminalProspectStatus(status string) bool {
	return status == ProspectStatusCompleted ||
		status == ProspectStatusFailed ||
		status == ProspectStatusValidationFailed
}

// CanHoldMessage is false for statuses that precede validation.
func CanHoldMessage(status string) bool {
	return status != ProspectStatusPendingValidation && status != ProspectStatusValidationFailed
}

// InitialProspectStatus picks the entry state for a freshly discovered prospect.
func InitialProspectStatus(autoApprove bool, score, threshold float64) string {
	if autoApprove && score >= threshold {
		return ProspectStatusConnectionPending
	}
	return ProspectStatusPendingValidation
}

type Prospect struct {
	ID             uuid.UUID        `json:"id"`
	CampaignID     uuid.UUID        `json:"campaign_id"`
	PublicID       string           `json:"public_id"`
	Name           string           `json:"name"`
	Position       string           `json:"position"`
	Company        string           `json:"company"`
	LinkedinURL    string           `json:"linkedin_url"`
	Status         string           `json:"status"`
	ValidationData *ValidationData  `json:"validation_data,omitempty"`
	Message        *ProspectMessage `json:"message,omitempty"`
	NextActionAt   *time.Time       `json:"next_action_at,omitempty"`
	ConnectionID   *string          `json:"connection_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type ScoreFactor struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

type ValidationData struct {
	Score   float64       `json:"score"`
	Factors []ScoreFactor `json:"factors,omitempty"`
	Reasons []string      `json:"reasons"`
}

type Commonalities struct {
	Description string   `json:"description,omitempty"`
	KeyPoints   []string `json:"key_points,omitempty"`
}

// Message tones accepted by the generator.
const (
	ToneProfessional = "professional"
	ToneCasual       = "casual"
	ToneFormal       = "formal"
)

func IsValidTone(tone string) bool {
	return tone == ToneProfessional || tone == ToneCasual || tone == ToneFormal
}

// ProspectMessage is the outreach payload produced by the message generator.
type ProspectMessage struct {
	Text                 string          `json:"text"`
	Reasoning            string          `json:"reasoning,omitempty"`
	Commonalities        Commonalities   `json:"commonalities"`
	ConversationStarters []string        `json:"conversation_starters,omitempty"`
	ProfileInfo          json.RawMessage `json:"profile_info,omitempty"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// ManualAction tells the UI which page the user must open to finish a step by hand.
type ManualAction struct {
	Type         string `json:"type"` // connect / message
	URL          string `json:"url"`
	Instructions string `json:"instructions"`
}

// FollowUp is a prospect whose scheduled check-back time has passed.
type FollowUp struct {
	ProspectID uuid.UUID `json:"prospect_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	DueAt      time.Time `json:"due_at"`
}
