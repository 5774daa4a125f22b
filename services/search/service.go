// Package search queries the primary metadata provider for movies and ranks
// the results for display.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"filmlog/models"
	"filmlog/services/metadata"
	"filmlog/services/records"
	"filmlog/utils/similarity"
)

var ErrQueryRequired = errors.New("search query is required")

// Provider runs a title search upstream.
type Provider interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// MembershipLookup reports which list a viewer keeps each movie on.
type MembershipLookup interface {
	Memberships(ctx context.Context, userID string, tmdbIDs []int64) (map[int64]models.ListID, error)
}

var (
	_ Provider         = (*metadata.Client)(nil)
	_ MembershipLookup = (*records.Service)(nil)
)

// Options holds the ranking thresholds.
type Options struct {
	MinPopularity float64
	MaxResults    int
}

type Service struct {
	provider Provider
	lists    MembershipLookup
	opts     Options
}

func NewService(provider Provider, lists MembershipLookup, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	return &Service{provider: provider, lists: lists, opts: opts}
}

type scored struct {
	result models.SearchResult
	score  float64
}

// Search returns movies matching query, most similar title first, then most
// popular. Results below the popularity floor are dropped. When viewerID is
// set each result carries the list the viewer has it on.
func (s *Service) Search(ctx context.Context, viewerID, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}

	found, err := s.provider.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	ranked := make([]scored, 0, len(found))
	for _, r := range found {
		if r.Popularity < s.opts.MinPopularity {
			continue
		}
		score := similarity.Similarity(query, r.Title)
		if r.OriginalTitle != "" {
			score = max(score, similarity.Similarity(query, r.OriginalTitle))
		}
		ranked = append(ranked, scored{result: r, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].result.Popularity > ranked[j].result.Popularity
	})
	if len(ranked) > s.opts.MaxResults {
		ranked = ranked[:s.opts.MaxResults]
	}

	results := make([]models.SearchResult, len(ranked))
	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		results[i] = r.result
		ids[i] = r.result.TMDBID
	}

	if viewerID == "" || s.lists == nil || len(results) == 0 {
		return results, nil
	}
	lists, err := s.lists.Memberships(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if list, ok := lists[results[i].TMDBID]; ok {
			results[i].List = &list
		}
	}
	return results, nil
}
