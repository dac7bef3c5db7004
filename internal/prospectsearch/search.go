// Package prospectsearch discovers candidate prospects working at a company.
package prospectsearch

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Candidate is one search hit before scoring.
type Candidate struct {
	Name        string `json:"name"`
	Position    string `json:"position"`
	Company     string `json:"company"`
	PublicID    string `json:"publicId"`
	LinkedinURL string `json:"linkedinUrl"`
	Location    string `json:"location,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Experience  string `json:"experience,omitempty"`
}

// Complete reports whether the required fields for scoring are present.
func (c Candidate) Complete() bool {
	return c.Name != "" && c.Position != "" && c.Company != "" && c.LinkedinURL != ""
}

type Searcher interface {
	Search(ctx context.Context, company string, roles []string) ([]Candidate, error)
}

// ProfileURL is the canonical public profile URL for a username.
func ProfileURL(publicID string) string {
	return fmt.Sprintf("https://www.linkedin.com/in/%s", publicID)
}

// Normalize drops former employees and incomplete hits and removes duplicate
// public ids, keeping the first occurrence.
func Normalize(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		c.Position = strings.TrimSpace(c.Position)
		c.Company = strings.TrimSpace(c.Company)
		c.PublicID = strings.Trim(strings.TrimSpace(c.PublicID), "/")

		if c.PublicID == "" || isFormer(c.Position) {
			continue
		}
		if c.LinkedinURL == "" {
			c.LinkedinURL = ProfileURL(c.PublicID)
		}
		if c.Name == "" {
			c.Name = NameFromUsername(c.PublicID)
		}
		if !c.Complete() {
			continue
		}
		if _, dup := seen[c.PublicID]; dup {
			continue
		}
		seen[c.PublicID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func isFormer(position string) bool {
	p := strings.ToLower(position)
	return strings.Contains(p, "former") || strings.Contains(p, "ex-")
}

// NameFromUsername turns "jane-doe" into "Jane Doe".
func NameFromUsername(username string) string {
	parts := strings.FieldsFunc(username, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

// UsernameFromURL extracts the public id from any URL containing linkedin.com/in/.
func UsernameFromURL(u string) (string, bool) {
	const marker = "linkedin.com/in/"
	idx := strings.Index(u, marker)
	if idx < 0 {
		return "", false
	}
	rest := u[idx+len(marker):]
	if i := strings.IndexAny(rest, "&?"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.Trim(rest, "/")
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || strings.Contains(rest, "#") {
		return "", false
	}
	return rest, true
}
