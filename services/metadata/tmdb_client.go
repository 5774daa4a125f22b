package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"filmlog/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	tmdbPosterSize   = "w500"
	tmdbLogoSize     = "w92"
)

type tmdbClient struct {
	apiKey   string
	language string
	httpc    *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, lang string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    normalizeLanguage(lang),
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a single throttled GET. Failures are never retried here;
// callers see ErrNotFound, ErrRateLimited or ErrRequest.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, params url.Values, v any) error {
	if !c.isConfigured() {
		return fmt.Errorf("tmdb: %w", ErrNotConfigured)
	}

	c.throttleMu.Lock()
	since := time.Since(c.lastRequest)
	if since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
	c.throttleMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	q := req.URL.Query()
	for k, vals := range params {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	q.Set("api_key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: tmdb: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: tmdb %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests:
		log.Printf("[tmdb] rate limited: %s", req.URL.Path)
		return fmt.Errorf("%w: tmdb %s", ErrRateLimited, req.URL.Path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: tmdb %s: %s", ErrRequest, req.URL.Path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode tmdb response: %v", ErrRequest, err)
	}
	return nil
}

type tmdbMovieResponse struct {
	ID            int64  `json:"id"`
	IMDBID        string `json:"imdb_id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	Overview      string `json:"overview"`
	ReleaseDate   string `json:"release_date"`
	PosterPath    string `json:"poster_path"`
	Homepage      string `json:"homepage"`
	Videos        struct {
		Results []tmdbVideo `json:"results"`
	} `json:"videos"`
	Translations struct {
		Translations []tmdbTranslation `json:"translations"`
	} `json:"translations"`
}

type tmdbVideo struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type tmdbTranslation struct {
	ISO31661 string `json:"iso_3166_1"`
	ISO6391  string `json:"iso_639_1"`
	Data     struct {
		Title    string `json:"title"`
		Overview string `json:"overview"`
	} `json:"data"`
}

// PrimaryMetadata is the normalized TMDB view of a movie.
type PrimaryMetadata struct {
	TMDBID        int64
	IMDBID        string
	Title         string
	TitleEnglish  string
	TitleOriginal string
	Overview      *string
	ReleaseDate   *string
	Poster        string
	Homepage      string
	Trailers      []models.Trailer
}

func (c *tmdbClient) movie(ctx context.Context, tmdbID int64) (PrimaryMetadata, error) {
	endpoint, err := url.JoinPath(tmdbBaseURL, "movie", strconv.FormatInt(tmdbID, 10))
	if err != nil {
		return PrimaryMetadata{}, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	params := url.Values{}
	params.Set("language", c.language)
	params.Set("append_to_response", "videos,translations")

	var payload tmdbMovieResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return PrimaryMetadata{}, err
	}

	imdbID := strings.TrimSpace(payload.IMDBID)
	if imdbID == "" {
		return PrimaryMetadata{}, fmt.Errorf("%w: tmdb %d", ErrNoCrossReference, tmdbID)
	}

	title := strings.TrimSpace(payload.Title)
	original := strings.TrimSpace(payload.OriginalTitle)
	if title == "" {
		title = original
	}
	english := englishTitle(payload.Translations.Translations)
	if english == "" {
		english = title
	}

	meta := PrimaryMetadata{
		TMDBID:        payload.ID,
		IMDBID:        imdbID,
		Title:         truncate(title),
		TitleEnglish:  truncate(english),
		TitleOriginal: truncate(original),
		Overview:      nonEmpty(payload.Overview),
		ReleaseDate:   nonEmpty(payload.ReleaseDate),
		Poster:        buildTMDBImage(payload.PosterPath, tmdbPosterSize),
		Homepage:      strings.TrimSpace(payload.Homepage),
		Trailers:      convertTrailers(payload.Videos.Results),
	}
	if meta.TMDBID == 0 {
		meta.TMDBID = tmdbID
	}
	return meta, nil
}

// englishTitle prefers the en-US translation, then any English one.
func englishTitle(translations []tmdbTranslation) string {
	fallback := ""
	for _, tr := range translations {
		if !strings.EqualFold(tr.ISO6391, "en") {
			continue
		}
		title := strings.TrimSpace(tr.Data.Title)
		if title == "" {
			continue
		}
		if strings.EqualFold(tr.ISO31661, "US") {
			return title
		}
		if fallback == "" {
			fallback = title
		}
	}
	return fallback
}

// convertTrailers keeps videos hosted on a site we can link to; the rest are dropped.
func convertTrailers(videos []tmdbVideo) []models.Trailer {
	trailers := make([]models.Trailer, 0, len(videos))
	for _, video := range videos {
		key := strings.TrimSpace(video.Key)
		if key == "" {
			continue
		}
		var site string
		switch strings.ToLower(strings.TrimSpace(video.Site)) {
		case "youtube":
			site = models.TrailerSiteYouTube
		case "vimeo":
			site = models.TrailerSiteVimeo
		default:
			continue
		}
		trailers = append(trailers, models.Trailer{
			Site: site,
			Key:  key,
			Name: truncate(strings.TrimSpace(video.Name)),
		})
	}
	return trailers
}

type tmdbWatchProvider struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

type tmdbWatchProvidersResponse struct {
	Results map[string]struct {
		Flatrate []tmdbWatchProvider `json:"flatrate"`
	} `json:"results"`
}

// watchProviders returns the subscription providers offering the movie in country.
func (c *tmdbClient) watchProviders(ctx context.Context, tmdbID int64, country string) ([]models.Provider, error) {
	endpoint, err := url.JoinPath(tmdbBaseURL, "movie", strconv.FormatInt(tmdbID, 10), "watch", "providers")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}

	var payload tmdbWatchProvidersResponse
	if err := c.doGET(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	region, ok := payload.Results[strings.ToUpper(country)]
	if !ok {
		return []models.Provider{}, nil
	}
	return convertProviders(region.Flatrate), nil
}

type tmdbProviderCatalogResponse struct {
	Results []tmdbWatchProvider `json:"results"`
}

// providerCatalog lists every movie provider TMDB knows for country.
func (c *tmdbClient) providerCatalog(ctx context.Context, country string) ([]models.Provider, error) {
	endpoint, err := url.JoinPath(tmdbBaseURL, "watch", "providers", "movie")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	params := url.Values{}
	params.Set("language", c.language)
	if country != "" {
		params.Set("watch_region", strings.ToUpper(country))
	}

	var payload tmdbProviderCatalogResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}
	return convertProviders(payload.Results), nil
}

func convertProviders(source []tmdbWatchProvider) []models.Provider {
	providers := make([]models.Provider, 0, len(source))
	seen := make(map[int64]bool, len(source))
	for _, p := range source {
		if p.ProviderID == 0 || seen[p.ProviderID] {
			continue
		}
		seen[p.ProviderID] = true
		providers = append(providers, models.Provider{
			ID:   p.ProviderID,
			Name: truncate(strings.TrimSpace(p.ProviderName)),
			Logo: buildTMDBImage(p.LogoPath, tmdbLogoSize),
		})
	}
	return providers
}

type tmdbSearchResponse struct {
	Results []struct {
		ID            int64   `json:"id"`
		Title         string  `json:"title"`
		OriginalTitle string  `json:"original_title"`
		Overview      string  `json:"overview"`
		ReleaseDate   string  `json:"release_date"`
		PosterPath    string  `json:"poster_path"`
		Popularity    float64 `json:"popularity"`
		VoteAverage   float64 `json:"vote_average"`
	} `json:"results"`
}

func (c *tmdbClient) search(ctx context.Context, query string) ([]models.SearchResult, error) {
	endpoint, err := url.JoinPath(tmdbBaseURL, "search", "movie")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("language", c.language)
	params.Set("include_adult", "false")

	var payload tmdbSearchResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, models.SearchResult{
			TMDBID:        r.ID,
			Title:         r.Title,
			OriginalTitle: r.OriginalTitle,
			Overview:      r.Overview,
			ReleaseDate:   r.ReleaseDate,
			Poster:        buildTMDBImage(r.PosterPath, tmdbPosterSize),
			Popularity:    r.Popularity,
			VoteAverage:   r.VoteAverage,
		})
	}
	return results, nil
}

func buildTMDBImage(imagePath, size string) string {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", tmdbImageBaseURL, path.Join(size, strings.TrimPrefix(trimmed, "/")))
}

// normalizeLanguage turns user input like "fr", "pt_BR" or "en-us" into the
// "xx-YY" form TMDB expects. Unknown input falls back to en-US.
func normalizeLanguage(lang string) string {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if lang == "" {
		return "en-US"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "en-US"
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "en-US"
	}
	region, _ := tag.Region()
	if region.IsCountry() {
		return base.String() + "-" + region.String()
	}
	return base.String()
}

func nonEmpty(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	return &s
}
