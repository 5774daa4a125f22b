package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmlog/models"
	"filmlog/services/metadata"
)

type fakeProvider struct {
	results []models.SearchResult
	err     error
	queries []string
}

func (f *fakeProvider) Search(_ context.Context, query string) ([]models.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeLists struct {
	lists map[int64]models.ListID
	asked []int64
}

func (f *fakeLists) Memberships(_ context.Context, _ string, ids []int64) (map[int64]models.ListID, error) {
	f.asked = ids
	return f.lists, nil
}

func ids(results []models.SearchResult) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.TMDBID
	}
	return out
}

func TestSearchRanksAndFilters(t *testing.T) {
	provider := &fakeProvider{results: []models.SearchResult{
		{TMDBID: 1, Title: "The Matrix Reloaded", Popularity: 80},
		{TMDBID: 2, Title: "The Matrix", Popularity: 50},
		{TMDBID: 3, Title: "Matrix Fan Edit", Popularity: 0.2},
		{TMDBID: 4, Title: "Матрица", OriginalTitle: "The Matrix", Popularity: 10},
	}}
	svc := NewService(provider, nil, Options{MinPopularity: 1, MaxResults: 10})

	got, err := svc.Search(context.Background(), "", "  the matrix ")
	require.NoError(t, err)
	assert.Equal(t, []string{"the matrix"}, provider.queries)
	assert.Equal(t, []int64{2, 4, 1}, ids(got))
	for _, r := range got {
		assert.Nil(t, r.List)
	}
}

func TestSearchCapsResults(t *testing.T) {
	provider := &fakeProvider{results: []models.SearchResult{
		{TMDBID: 1, Title: "Alien", Popularity: 5},
		{TMDBID: 2, Title: "Aliens", Popularity: 50},
		{TMDBID: 3, Title: "Alien 3", Popularity: 40},
	}}
	svc := NewService(provider, nil, Options{MaxResults: 2})

	got, err := svc.Search(context.Background(), "", "Alien")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestSearchAnnotatesMemberships(t *testing.T) {
	provider := &fakeProvider{results: []models.SearchResult{
		{TMDBID: 603, Title: "The Matrix", Popularity: 50},
		{TMDBID: 604, Title: "The Matrix Reloaded", Popularity: 40},
	}}
	lists := &fakeLists{lists: map[int64]models.ListID{604: models.ListToWatch}}
	svc := NewService(provider, lists, Options{})

	got, err := svc.Search(context.Background(), "viewer", "The Matrix")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []int64{603, 604}, lists.asked)
	assert.Nil(t, got[0].List)
	require.NotNil(t, got[1].List)
	assert.Equal(t, models.ListToWatch, *got[1].List)
}

func TestSearchErrors(t *testing.T) {
	svc := NewService(&fakeProvider{err: metadata.ErrRateLimited}, nil, Options{})

	_, err := svc.Search(context.Background(), "", "   ")
	require.ErrorIs(t, err, ErrQueryRequired)

	_, err = svc.Search(context.Background(), "", "Heat")
	require.True(t, errors.Is(err, metadata.ErrRateLimited))
}
