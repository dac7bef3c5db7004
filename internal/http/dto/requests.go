package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
)

// Request is a body that can check its own shape before reaching a service.
type Request interface {
	Validate() error
}

// Decode reads a single JSON object into req, rejecting unknown fields and
// trailing data, then runs req.Validate.
func Decode(body []byte, req Request) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Validation("body", "request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return apperr.Validation("body", decodeMessage(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("body", "unexpected data after JSON object")
	}
	return req.Validate()
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	}
	if strings.HasPrefix(err.Error(), "json: unknown field ") {
		return strings.TrimPrefix(err.Error(), "json: ")
	}
	return "invalid JSON"
}

type SessionRequest struct {
	Assertion string `json:"assertion"`
}

func (r *SessionRequest) Validate() error {
	if strings.TrimSpace(r.Assertion) == "" {
		return apperr.Validation("assertion", "is required")
	}
	return nil
}

// Campaigns

type CreateCampaignRequest struct {
	Name            string  `json:"name"`
	TargetCompany   string  `json:"target_company"`
	AutoApprove     bool    `json:"auto_approve"`
	AutoMessage     bool    `json:"auto_message"`
	MessageTemplate *string `json:"message_template,omitempty"`
	DailyLimit      int     `json:"daily_limit,omitempty"`
}

func (r *CreateCampaignRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperr.Validation("name", "is required")
	}
	if strings.TrimSpace(r.TargetCompany) == "" {
		return apperr.Validation("target_company", "is required")
	}
	return nil
}

type UpdateCampaignRequest struct {
	Name            *string `json:"name,omitempty"`
	MessageTemplate *string `json:"message_template,omitempty"`
	AutoApprove     *bool   `json:"auto_approve,omitempty"`
	AutoMessage     *bool   `json:"auto_message,omitempty"`
	DailyLimit      *int    `json:"daily_limit,omitempty"`
}

func (r *UpdateCampaignRequest) Validate() error {
	if r.Name == nil && r.MessageTemplate == nil && r.AutoApprove == nil && r.AutoMessage == nil && r.DailyLimit == nil {
		return apperr.Validation("body", "nothing to update")
	}
	return nil
}

type AddProspectRequest struct {
	Username string `json:"username"`
}

func (r *AddProspectRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return apperr.Validation("username", "is required")
	}
	return nil
}

// Prospects

type ProspectActionData struct {
	ConnectionID *string `json:"connection_id,omitempty"`
	Tone         string  `json:"tone,omitempty"`
	Text         *string `json:"text,omitempty"`
	Status       string  `json:"status,omitempty"`
}

type ProspectActionRequest struct {
	Action string             `json:"action"`
	Data   ProspectActionData `json:"data"`
}

func (r *ProspectActionRequest) Validate() error {
	if _, ok := models.LookupAction(r.Action); !ok {
		return fmt.Errorf("%w: %q", apperr.ErrInvalidAction, r.Action)
	}
	if r.Data.Tone != "" && !models.IsValidTone(r.Data.Tone) {
		return apperr.Validation("tone", "must be professional, casual or formal")
	}
	return nil
}

type ProspectStatusRequest struct {
	Status string `json:"status"`
}

func (r *ProspectStatusRequest) Validate() error {
	if !models.IsValidProspectStatus(r.Status) {
		return apperr.Validation("status", fmt.Sprintf("unknown status %q", r.Status))
	}
	return nil
}

type ScoreRequest struct {
	Name          string              `json:"name"`
	Position      string              `json:"position"`
	Company       string              `json:"company"`
	LinkedinURL   string              `json:"linkedin_url,omitempty"`
	Location      string              `json:"location,omitempty"`
	Summary       string              `json:"summary,omitempty"`
	Experience    string              `json:"experience,omitempty"`
	TargetCompany string              `json:"target_company"`
	Preferences   *models.Preferences `json:"preferences,omitempty"` // default: the caller's own
}

func (r *ScoreRequest) Validate() error {
	if strings.TrimSpace(r.TargetCompany) == "" {
		return apperr.Validation("target_company", "is required")
	}
	return nil
}

// Leads

type CreateLeadRequest struct {
	Name        string                  `json:"name"`
	Position    string                  `json:"position"`
	Company     string                  `json:"company"`
	LinkedinURL string                  `json:"linkedin_url"`
	Message     *models.ProspectMessage `json:"message,omitempty"`
}

func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperr.Validation("name", "is required")
	}
	if strings.TrimSpace(r.LinkedinURL) == "" {
		return apperr.Validation("linkedin_url", "is required")
	}
	return nil
}

type LeadStatusRequest struct {
	Status string `json:"status"`
}

func (r *LeadStatusRequest) Validate() error {
	if !models.IsValidLeadStatus(r.Status) {
		return apperr.Validation("status", "must be Pending, Messaged or Responded")
	}
	return nil
}

// User

type PreferencesRequest struct {
	CareerGoal       *string  `json:"career_goal,omitempty"`
	Industry         *string  `json:"industry,omitempty"`
	TargetRoles      []string `json:"target_roles,omitempty"`
	LinkedinUsername *string  `json:"linkedin_username,omitempty"`
}

func (r *PreferencesRequest) Validate() error {
	if r.CareerGoal != nil && !models.IsValidCareerGoal(*r.CareerGoal) {
		return apperr.Validation("career_goal", "must be job or internship")
	}
	return nil
}
