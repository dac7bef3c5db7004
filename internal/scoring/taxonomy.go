package scoring

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

// Seniority buckets
const (
	SeniorityInternship   = "internship"
	SeniorityEntry        = "entry"
	SenioritySenior       = "senior"
	SeniorityUnclassified = ""
)

// Classification order: an "intern" title wins over any senior word in it,
// and senior words win over entry words ("Senior Analyst").
var seniorityOrder = []string{SeniorityInternship, SenioritySenior, SeniorityEntry}

type taxonomyFile struct {
	Industries     map[string][]string `yaml:"industries"`
	Roles          map[string][]string `yaml:"roles"`
	Seniority      map[string][]string `yaml:"seniority"`
	ReasonKeywords []string            `yaml:"reason_keywords"`
}

// Taxonomy is the immutable keyword lookup data used by the engine.
type Taxonomy struct {
	industries     map[string][]string
	roles          map[string][]string
	seniority      map[string]*regexp.Regexp
	reasonKeywords []string
}

var defaultTaxonomy = sync.OnceValue(func() *Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomyYAML)
	if err != nil {
		panic(fmt.Sprintf("scoring: embedded taxonomy: %v", err))
	}
	return t
})

// DefaultTaxonomy returns the taxonomy baked into the binary.
func DefaultTaxonomy() *Taxonomy {
	return defaultTaxonomy()
}

// ParseTaxonomy builds a Taxonomy from YAML. All three seniority buckets are required.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	t := &Taxonomy{
		industries:     normalizeTable(f.Industries),
		roles:          normalizeTable(f.Roles),
		seniority:      make(map[string]*regexp.Regexp, len(seniorityOrder)),
		reasonKeywords: normalizeList(f.ReasonKeywords),
	}

	for _, bucket := range seniorityOrder {
		words := normalizeList(f.Seniority[bucket])
		if len(words) == 0 {
			return nil, fmt.Errorf("seniority bucket %q is empty", bucket)
		}
		t.seniority[bucket] = wordPattern(words)
	}
	return t, nil
}

// Keywords merges the industry and role tables for the given preferences.
// Unknown ids contribute nothing. The result is deduplicated and sorted.
func (t *Taxonomy) Keywords(industry string, roles []string) []string {
	seen := make(map[string]struct{})
	for _, k := range t.industries[strings.ToLower(industry)] {
		seen[k] = struct{}{}
	}
	for _, r := range roles {
		for _, k := range t.roles[strings.ToLower(r)] {
			seen[k] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ClassifySeniority returns the first bucket whose words appear in the title.
func (t *Taxonomy) ClassifySeniority(position string) string {
	for _, bucket := range seniorityOrder {
		if t.seniority[bucket].MatchString(position) {
			return bucket
		}
	}
	return SeniorityUnclassified
}

func (t *Taxonomy) HasIndustry(id string) bool {
	_, ok := t.industries[strings.ToLower(id)]
	return ok
}

func (t *Taxonomy) HasRole(id string) bool {
	_, ok := t.roles[strings.ToLower(id)]
	return ok
}

func (t *Taxonomy) matchesReasonKeyword(position string) bool {
	p := strings.ToLower(position)
	for _, k := range t.reasonKeywords {
		if strings.Contains(p, k) {
			return true
		}
	}
	return false
}

func normalizeTable(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = normalizeList(v)
	}
	return out
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func wordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
