package prospectsearch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkedreach/backend/internal/models"
)

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, username string) (*models.LinkedinProfile, error)
}

// Enricher fills optional candidate fields from full profiles.
type Enricher struct {
	fetcher     ProfileFetcher
	concurrency int
	log         *zap.Logger
}

func NewEnricher(fetcher ProfileFetcher, concurrency int, log *zap.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{fetcher: fetcher, concurrency: concurrency, log: log}
}

// Enrich returns a copy of cands with location, summary and experience set
// where the profile could be fetched. Fetch failures leave the candidate as is.
func (e *Enricher) Enrich(ctx context.Context, cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range out {
		g.Go(func() error {
			p, err := e.fetcher.FetchProfile(ctx, out[i].PublicID)
			if err != nil {
				e.log.Debug("profile enrichment skipped", zap.String("public_id", out[i].PublicID), zap.Error(err))
				return nil
			}
			if out[i].Location == "" {
				out[i].Location = p.BasicInfo.Location
			}
			if out[i].Summary == "" {
				out[i].Summary = p.BasicInfo.Headline
			}
			if out[i].Experience == "" {
				out[i].Experience = p.ExperienceSummary()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
