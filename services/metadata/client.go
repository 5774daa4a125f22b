package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"filmlog/models"
)

// Config carries the provider credentials and request policy.
type Config struct {
	TMDBAPIKey string
	OMDBAPIKey string
	Language   string
	Country    string
	Timeout    time.Duration
}

// Client fetches and normalizes movie metadata from TMDB (primary) and
// OMDb (secondary). It never retries.
type Client struct {
	tmdb    *tmdbClient
	omdb    *omdbClient
	country string
}

// NewClient builds a Client. A nil httpc gets a client with cfg.Timeout.
func NewClient(cfg Config, httpc *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: timeout}
	} else if httpc.Timeout == 0 {
		clone := *httpc
		clone.Timeout = timeout
		httpc = &clone
	}
	country := strings.ToUpper(strings.TrimSpace(cfg.Country))
	if country == "" {
		country = "US"
	}
	return &Client{
		tmdb:    newTMDBClient(cfg.TMDBAPIKey, cfg.Language, httpc),
		omdb:    newOMDBClient(cfg.OMDBAPIKey, httpc),
		country: country,
	}
}

// Country is the watch-provider region the client reports for.
func (c *Client) Country() string {
	return c.country
}

// FetchPrimary loads a movie from TMDB. It fails with ErrNoCrossReference
// when TMDB has no IMDb id for the title.
func (c *Client) FetchPrimary(ctx context.Context, tmdbID int64) (PrimaryMetadata, error) {
	if tmdbID <= 0 {
		return PrimaryMetadata{}, fmt.Errorf("%w: invalid tmdb id %d", ErrNotFound, tmdbID)
	}
	return c.tmdb.movie(ctx, tmdbID)
}

// FetchSecondary loads a movie from OMDb by IMDb id.
func (c *Client) FetchSecondary(ctx context.Context, imdbID string) (SecondaryMetadata, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return SecondaryMetadata{}, fmt.Errorf("%w: empty imdb id", ErrNotFound)
	}
	return c.omdb.movie(ctx, imdbID)
}

// Fetch runs both fetches in order and merges them.
func (c *Client) Fetch(ctx context.Context, tmdbID int64) (models.MovieData, error) {
	primary, err := c.FetchPrimary(ctx, tmdbID)
	if err != nil {
		return models.MovieData{}, err
	}
	secondary, err := c.FetchSecondary(ctx, primary.IMDBID)
	if err != nil {
		return models.MovieData{}, err
	}
	return Merge(primary, secondary), nil
}

// WatchProviders lists subscription providers offering the movie in the
// configured country.
func (c *Client) WatchProviders(ctx context.Context, tmdbID int64) ([]models.Provider, error) {
	return c.tmdb.watchProviders(ctx, tmdbID, c.country)
}

// ProviderCatalog lists every known movie provider for the configured country.
func (c *Client) ProviderCatalog(ctx context.Context) ([]models.Provider, error) {
	return c.tmdb.providerCatalog(ctx, c.country)
}

var ErrEmptyQuery = errors.New("metadata: search query is empty")

// Search queries TMDB for movies matching query.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return c.tmdb.search(ctx, query)
}

// IsProviderError reports whether err came from an upstream provider.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrRequest) ||
		errors.Is(err, ErrNoCrossReference) ||
		errors.Is(err, ErrNotConfigured)
}
