package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/retry"
)

type MessageRequest struct {
	Sender         json.RawMessage
	TargetUsername string
	Tone           string
}

type MessageGenerator interface {
	Generate(ctx context.Context, req MessageRequest) (*models.ProspectMessage, error)
}

// externalError classifies a collaborator failure. Only non-transient HTTP
// statuses are final; timeouts and exhausted retries may be retried by the caller.
func externalError(service string, err error) error {
	retryable := true
	var se *retry.StatusError
	if errors.As(err, &se) && !se.Transient() {
		retryable = false
	}
	return &apperr.ExternalServiceError{Service: service, Retryable: retryable, Err: err}
}

// MessageClient calls the message generation service.
type MessageClient struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	now        func() time.Time
	log        *zap.Logger
}

func NewMessageClient(baseURL string, policy retry.Policy, log *zap.Logger) *MessageClient {
	return &MessageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		policy:     policy,
		now:        time.Now,
		log:        log,
	}
}

type generateRequest struct {
	Sender         json.RawMessage `json:"sender"`
	TargetUsername string          `json:"targetUsername"`
	Tone           string          `json:"tone"`
}

type generateResponse struct {
	ID      string `json:"id"`
	Error   string `json:"error"`
	Message struct {
		Message struct {
			Text string `json:"text"`
		} `json:"message"`
		Reasoning     string `json:"reasoning"`
		Commonalities struct {
			Description string   `json:"description"`
			KeyPoints   []string `json:"key_points"`
		} `json:"commonalities"`
		ConversationStarters []string `json:"conversation_starters"`
		Error                string   `json:"error"`
	} `json:"message"`
	ProfileInfo json.RawMessage `json:"profileInfo"`
}

func (c *MessageClient) Generate(ctx context.Context, req MessageRequest) (*models.ProspectMessage, error) {
	var resp generateResponse
	url := fmt.Sprintf("%s/api/generate-message", c.baseURL)
	body := generateRequest{Sender: req.Sender, TargetUsername: req.TargetUsername, Tone: req.Tone}
	if err := retry.PostJSON(ctx, c.httpClient, c.policy, url, body, &resp); err != nil {
		c.log.Warn("message generation failed", zap.String("target", req.TargetUsername), zap.Error(err))
		return nil, externalError("message generator", err)
	}

	if msg := firstNonEmpty(resp.Error, resp.Message.Error); msg != "" {
		return nil, externalError("message generator", errors.New(msg))
	}
	text := strings.TrimSpace(resp.Message.Message.Text)
	if text == "" {
		return nil, externalError("message generator", errors.New("empty message text"))
	}

	return &models.ProspectMessage{
		Text:      text,
		Reasoning: resp.Message.Reasoning,
		Commonalities: models.Commonalities{
			Description: resp.Message.Commonalities.Description,
			KeyPoints:   resp.Message.Commonalities.KeyPoints,
		},
		ConversationStarters: resp.Message.ConversationStarters,
		ProfileInfo:          resp.ProfileInfo,
		GeneratedAt:          c.now().UTC(),
	}, nil
}

// ProfileClient fetches full LinkedIn profiles from the scraping service.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	log        *zap.Logger
}

func NewProfileClient(baseURL string, policy retry.Policy, log *zap.Logger) *ProfileClient {
	return &ProfileClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		policy:     policy,
		log:        log,
	}
}

func (c *ProfileClient) FetchProfile(ctx context.Context, username string) (*models.LinkedinProfile, error) {
	var raw json.RawMessage
	url := fmt.Sprintf("%s/api/fetch-profile", c.baseURL)
	if err := retry.PostJSON(ctx, c.httpClient, c.policy, url, map[string]string{"username": username}, &raw); err != nil {
		return nil, externalError("profile service", err)
	}

	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Error != "" {
		return nil, externalError("profile service", errors.New(probe.Error))
	}

	var p models.LinkedinProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, externalError("profile service", fmt.Errorf("decode profile: %w", err))
	}
	p.Raw = raw
	return &p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
