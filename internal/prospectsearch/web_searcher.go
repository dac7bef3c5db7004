package prospectsearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// WebSearcher scrapes a web search results page for public profile links.
type WebSearcher struct {
	searchURL  string // query is appended as ?q=
	httpClient *http.Client
	delay      time.Duration
	log        *zap.Logger
}

func NewWebSearcher(searchURL string, timeout, delay time.Duration, log *zap.Logger) *WebSearcher {
	return &WebSearcher{
		searchURL:  searchURL,
		httpClient: &http.Client{Timeout: timeout},
		delay:      delay,
		log:        log,
	}
}

// Queries builds the search phrases used for one role.
func Queries(company, role string) []string {
	return []string{
		fmt.Sprintf("current %s %s site:linkedin.com/in", role, company),
		fmt.Sprintf("%s at %s site:linkedin.com/in", role, company),
		fmt.Sprintf("%s %s current site:linkedin.com/in", company, role),
	}
}

func (w *WebSearcher) Search(ctx context.Context, company string, roles []string) ([]Candidate, error) {
	var (
		all      []Candidate
		failures int
		total    int
	)

	for _, role := range roles {
		for _, q := range Queries(company, role) {
			total++
			found, err := w.fetch(ctx, q, company, role)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				failures++
				w.log.Warn("search query failed", zap.String("query", q), zap.Error(err))
			} else {
				all = append(all, found...)
			}

			if w.delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(w.delay):
				}
			}
		}
	}

	if total > 0 && failures == total {
		return nil, fmt.Errorf("all %d search queries failed", total)
	}
	return Normalize(all), nil
}

func (w *WebSearcher) fetch(ctx context.Context, query, company, role string) ([]Candidate, error) {
	u := w.searchURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, u)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return ParseResults(doc, company, role), nil
}

// ParseResults pulls profile links out of a results page. Position falls back
// to the searched role when the result snippet has none.
func ParseResults(doc *goquery.Document, company, role string) []Candidate {
	var out []Candidate
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "linkedin.com/in/") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		username, ok := UsernameFromURL(href)
		if !ok {
			return
		}

		name := linkName(s.Text())
		if len(name) < 2 {
			name = NameFromUsername(username)
		}

		position := strings.TrimSpace(s.NextAllFiltered("div.BNeawe").First().Text())
		if position == "" {
			position = strings.TrimSpace(s.Parent().NextAllFiltered("div.BNeawe").First().Text())
		}
		if position == "" {
			position = role
		}

		out = append(out, Candidate{
			Name:        name,
			Position:    position,
			Company:     company,
			PublicID:    username,
			LinkedinURL: ProfileURL(username),
		})
	})
	return out
}

// linkName keeps the part of a result title before " - " or " | ".
func linkName(text string) string {
	text = strings.TrimSpace(text)
	for _, sep := range []string{" - ", " | ", " – "} {
		if i := strings.Index(text, sep); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}
