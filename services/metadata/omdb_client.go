package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// OMDb answers most failures with HTTP 200 and one of these messages.
const (
	omdbMsgNotFound     = "Movie not found!"
	omdbMsgLimitReached = "Request limit reached!"
	omdbMsgIncorrectID  = "Incorrect IMDb ID."
)

type omdbClient struct {
	apiKey string
	httpc  *http.Client
}

func newOMDBClient(apiKey string, httpc *http.Client) *omdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &omdbClient{apiKey: strings.TrimSpace(apiKey), httpc: httpc}
}

func (c *omdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

type omdbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	IMDBID     string `json:"imdbID"`
	Plot       string `json:"Plot"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Writer     string `json:"Writer"`
	Actors     string `json:"Actors"`
	Country    string `json:"Country"`
	IMDBRating string `json:"imdbRating"`
}

// SecondaryMetadata is the normalized OMDb view of a movie. Every field is
// optional; "N/A" arrives as nil.
type SecondaryMetadata struct {
	IMDBID   string
	Plot     *string
	Writer   *string
	Director *string
	Actors   *string
	Genre    *string
	Country  *string
	Rating   *float64
	Runtime  *time.Duration
}

func (c *omdbClient) movie(ctx context.Context, imdbID string) (SecondaryMetadata, error) {
	if !c.isConfigured() {
		return SecondaryMetadata{}, fmt.Errorf("omdb: %w", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, omdbBaseURL, nil)
	if err != nil {
		return SecondaryMetadata{}, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("i", imdbID)
	q.Set("plot", "full")
	q.Set("type", "movie")
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return SecondaryMetadata{}, fmt.Errorf("%w: omdb: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SecondaryMetadata{}, fmt.Errorf("%w: read omdb response: %v", ErrRequest, err)
	}

	var payload omdbResponse
	decodeErr := json.Unmarshal(body, &payload)

	// The error message is authoritative even on non-2xx statuses (quota
	// exhaustion comes back as 401).
	if decodeErr == nil && !strings.EqualFold(payload.Response, "True") {
		return SecondaryMetadata{}, classifyOMDBError(imdbID, payload.Error)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return SecondaryMetadata{}, fmt.Errorf("%w: omdb %s", ErrNotFound, imdbID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return SecondaryMetadata{}, fmt.Errorf("%w: omdb %s", ErrRateLimited, imdbID)
	case resp.StatusCode >= 400:
		return SecondaryMetadata{}, fmt.Errorf("%w: omdb %s: %s", ErrRequest, imdbID, resp.Status)
	case decodeErr != nil:
		return SecondaryMetadata{}, fmt.Errorf("%w: decode omdb response: %v", ErrRequest, decodeErr)
	}

	meta := SecondaryMetadata{
		IMDBID:   strings.TrimSpace(payload.IMDBID),
		Plot:     optionalString(payload.Plot),
		Writer:   optionalString(payload.Writer),
		Director: optionalString(payload.Director),
		Actors:   optionalString(payload.Actors),
		Genre:    optionalString(payload.Genre),
		Country:  optionalString(payload.Country),
		Rating:   parseRating(payload.IMDBRating),
		Runtime:  parseRuntime(payload.Runtime),
	}
	if meta.Runtime == nil && strings.TrimSpace(payload.Runtime) != "" && payload.Runtime != notAvailableTag {
		log.Printf("[omdb] unparseable runtime %q for %s", payload.Runtime, imdbID)
	}
	if meta.IMDBID == "" {
		meta.IMDBID = imdbID
	}
	return meta, nil
}

func classifyOMDBError(imdbID, message string) error {
	msg := strings.TrimSpace(message)
	switch {
	case strings.EqualFold(msg, omdbMsgNotFound), strings.EqualFold(msg, omdbMsgIncorrectID):
		return fmt.Errorf("%w: omdb %s", ErrNotFound, imdbID)
	case strings.EqualFold(msg, omdbMsgLimitReached):
		log.Printf("[omdb] request limit reached")
		return fmt.Errorf("%w: omdb %s", ErrRateLimited, imdbID)
	default:
		return fmt.Errorf("%w: omdb %s: %s", ErrRequest, imdbID, msg)
	}
}
