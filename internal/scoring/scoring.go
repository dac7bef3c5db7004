// Package scoring computes how well a discovered prospect fits a campaign and
// the user's stated preferences.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/linkedreach/backend/internal/models"
)

// Factor names and weights. Weights sum to 1.0.
const (
	FactorCompany      = "company_match"
	FactorRole         = "role_relevance"
	FactorSeniority    = "seniority_match"
	FactorCompleteness = "profile_completeness"

	WeightCompany      = 0.4
	WeightRole         = 0.3
	WeightSeniority    = 0.2
	WeightCompleteness = 0.1
)

// seniorityTable: career goal -> bucket -> score.
var seniorityTable = map[string]map[string]float64{
	models.CareerGoalInternship: {
		SeniorityInternship:   1.0,
		SeniorityEntry:        0.5,
		SenioritySenior:       0.0,
		SeniorityUnclassified: 0.3,
	},
	models.CareerGoalJob: {
		SeniorityInternship:   0.2,
		SeniorityEntry:        1.0,
		SenioritySenior:       0.3,
		SeniorityUnclassified: 0.7,
	},
}

// Candidate is a prospect as seen by the scorer. Optional fields may be empty.
type Candidate struct {
	Name        string
	Position    string
	Company     string
	LinkedinURL string
	Location    string
	Summary     string
	Experience  string
}

// CandidateFromProspect adapts a stored prospect; stored prospects carry no optional fields.
func CandidateFromProspect(p *models.Prospect) Candidate {
	return Candidate{
		Name:        p.Name,
		Position:    p.Position,
		Company:     p.Company,
		LinkedinURL: p.LinkedinURL,
	}
}

type Engine struct {
	tax *Taxonomy
}

func NewEngine(tax *Taxonomy) *Engine {
	if tax == nil {
		tax = DefaultTaxonomy()
	}
	return &Engine{tax: tax}
}

func (e *Engine) Taxonomy() *Taxonomy {
	return e.tax
}

// Score returns the weighted score, the per-factor breakdown and the reasons list.
func (e *Engine) Score(c Candidate, targetCompany string, prefs models.Preferences) models.ValidationData {
	factors := []models.ScoreFactor{
		{Name: FactorCompany, Score: CompanyScore(c.Company, targetCompany), Weight: WeightCompany},
		{Name: FactorRole, Score: RoleRelevanceScore(c.Position, e.tax.Keywords(prefs.Industry, prefs.TargetRoles)), Weight: WeightRole},
		{Name: FactorSeniority, Score: e.SeniorityScore(c.Position, prefs.CareerGoal), Weight: WeightSeniority},
		{Name: FactorCompleteness, Score: CompletenessScore(c), Weight: WeightCompleteness},
	}

	var total float64
	for _, f := range factors {
		total += f.Score * f.Weight
	}

	return models.ValidationData{
		Score:   clamp(round4(total)),
		Factors: factors,
		Reasons: e.reasons(c, targetCompany),
	}
}

// CompanyScore: exact case-insensitive match 1.0, containment in either direction 0.8.
func CompanyScore(company, target string) float64 {
	c := strings.ToLower(strings.TrimSpace(company))
	t := strings.ToLower(strings.TrimSpace(target))
	if c == "" || t == "" {
		return 0
	}
	if c == t {
		return 1.0
	}
	if strings.Contains(c, t) || strings.Contains(t, c) {
		return 0.8
	}
	return 0
}

// RoleRelevanceScore counts keywords found in the title: none 0, one 0.7, two or more 1.0.
func RoleRelevanceScore(position string, keywords []string) float64 {
	p := strings.ToLower(position)
	matches := 0
	for _, k := range keywords {
		if k != "" && strings.Contains(p, strings.ToLower(k)) {
			matches++
		}
	}
	switch {
	case matches == 0:
		return 0
	case matches == 1:
		return 0.7
	default:
		return 1.0
	}
}

// SeniorityScore looks up the title's bucket in the table for the career goal.
// Unknown goals score as job seekers.
func (e *Engine) SeniorityScore(position, careerGoal string) float64 {
	table, ok := seniorityTable[careerGoal]
	if !ok {
		table = seniorityTable[models.CareerGoalJob]
	}
	return table[e.tax.ClassifySeniority(position)]
}

func CompletenessScore(c Candidate) float64 {
	required := []string{c.Name, c.Position, c.Company, c.LinkedinURL}
	optional := []string{c.Location, c.Summary, c.Experience}
	return 0.7*presentFraction(required) + 0.3*presentFraction(optional)
}

func (e *Engine) reasons(c Candidate, targetCompany string) []string {
	reasons := []string{}
	if CompanyScore(c.Company, targetCompany) == 1.0 {
		reasons = append(reasons, fmt.Sprintf("Currently works at %s", strings.TrimSpace(c.Company)))
	}
	if e.tax.matchesReasonKeyword(c.Position) {
		reasons = append(reasons, "Position matches a relevant role")
	}
	if presentFraction([]string{c.Name, c.Position, c.Company, c.LinkedinURL}) == 1 {
		reasons = append(reasons, "Profile information is complete")
	}
	return reasons
}

func presentFraction(fields []string) float64 {
	if len(fields) == 0 {
		return 0
	}
	n := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
