package dto

import "time"

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// QuotaErrorResponse is returned with 403 when a plan limit is reached.
type QuotaErrorResponse struct {
	ErrorResponse
	Resource string `json:"resource"`
	Plan     string `json:"plan"`
	Limit    int    `json:"limit"`
	Current  int    `json:"current"`
}

type RateLimitErrorResponse struct {
	ErrorResponse
	Action    string    `json:"action"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type ExternalErrorResponse struct {
	ErrorResponse
	Service   string `json:"service"`
	Retryable bool   `json:"retryable"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type CheckPlanResponse struct {
	Updated bool `json:"updated"`
	User    any  `json:"user"`
}
