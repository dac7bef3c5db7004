package models

import (
	"encoding/json"
	"fmt"
)

// LinkedinProfile is the subset of the scraped profile the backend reads.
// Raw keeps the full payload for storage as the user's profile snapshot.
type LinkedinProfile struct {
	BasicInfo struct {
		Name     string `json:"name"`
		Industry string `json:"industry,omitempty"`
		Location string `json:"location,omitempty"`
		Headline string `json:"headline,omitempty"`
	} `json:"basic_info"`
	Experience []ProfileExperience `json:"experience,omitempty"`
	Raw        json.RawMessage    `json:"-"`
}

type ProfileExperience struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Duration string `json:"duration,omitempty"`
	Location string `json:"location,omitempty"`
}

// Current returns the most recent position, if any.
func (p *LinkedinProfile) Current() (ProfileExperience, bool) {
	if len(p.Experience) == 0 {
		return ProfileExperience{}, false
	}
	return p.Experience[0], true
}

// ExperienceSummary flattens the listed positions into one line.
func (p *LinkedinProfile) ExperienceSummary() string {
	s := ""
	for i, e := range p.Experience {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s at %s", e.Title, e.Company)
	}
	return s
}
