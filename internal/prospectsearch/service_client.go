package prospectsearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/retry"
)

// ServiceClient asks the scraping service for prospects.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	log        *zap.Logger
}

func NewServiceClient(baseURL string, policy retry.Policy, log *zap.Logger) *ServiceClient {
	return &ServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		policy:     policy,
		log:        log,
	}
}

type searchRequest struct {
	CompanyName string   `json:"companyName"`
	TargetRoles []string `json:"targetRoles"`
}

type searchResponse struct {
	Prospects []Candidate `json:"prospects"`
}

func (c *ServiceClient) Search(ctx context.Context, company string, roles []string) ([]Candidate, error) {
	var resp searchResponse
	url := fmt.Sprintf("%s/api/prospects/search", c.baseURL)
	if err := retry.PostJSON(ctx, c.httpClient, c.policy, url, searchRequest{CompanyName: company, TargetRoles: roles}, &resp); err != nil {
		return nil, fmt.Errorf("search service: %w", err)
	}

	out := Normalize(resp.Prospects)
	c.log.Debug("search service results",
		zap.String("company", company),
		zap.Int("raw", len(resp.Prospects)),
		zap.Int("kept", len(out)),
	)
	return out, nil
}
