package metadata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmlog/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(fn roundTripFunc) *Client {
	return NewClient(Config{
		TMDBAPIKey: "tmdb-key",
		OMDBAPIKey: "omdb-key",
		Language:   "fr",
		Country:    "fr",
		Timeout:    time.Second,
	}, &http.Client{Transport: fn})
}

const matrixTMDB = `{
	"id": 603,
	"imdb_id": "tt0133093",
	"title": "Matrix",
	"original_title": "The Matrix",
	"overview": "Un pirate informatique...",
	"release_date": "1999-03-30",
	"poster_path": "/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg",
	"homepage": "http://www.warnerbros.com/matrix",
	"videos": {"results": [
		{"name": "Trailer", "key": "vKQi3bBA1y8", "site": "YouTube", "type": "Trailer"},
		{"name": "Teaser", "key": "12345", "site": "Vimeo", "type": "Teaser"},
		{"name": "Clip", "key": "x7zz", "site": "Dailymotion", "type": "Clip"},
		{"name": "Empty", "key": "", "site": "YouTube", "type": "Clip"}
	]},
	"translations": {"translations": [
		{"iso_3166_1": "GB", "iso_639_1": "en", "data": {"title": "The Matrix (UK)"}},
		{"iso_3166_1": "US", "iso_639_1": "en", "data": {"title": "The Matrix"}},
		{"iso_3166_1": "FR", "iso_639_1": "fr", "data": {"title": "Matrix"}}
	]}
}`

func TestFetchPrimaryNormalizes(t *testing.T) {
	var calls int32
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "/3/movie/603", req.URL.Path)
		q := req.URL.Query()
		assert.Equal(t, "videos,translations", q.Get("append_to_response"))
		assert.Equal(t, "fr-FR", q.Get("language"))
		assert.Equal(t, "tmdb-key", q.Get("api_key"))
		return jsonResponse(http.StatusOK, matrixTMDB), nil
	})

	meta, err := client.FetchPrimary(context.Background(), 603)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)

	assert.Equal(t, int64(603), meta.TMDBID)
	assert.Equal(t, "tt0133093", meta.IMDBID)
	assert.Equal(t, "Matrix", meta.Title)
	assert.Equal(t, "The Matrix", meta.TitleEnglish)
	assert.Equal(t, "The Matrix", meta.TitleOriginal)
	require.NotNil(t, meta.ReleaseDate)
	assert.Equal(t, "1999-03-30", *meta.ReleaseDate)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg", meta.Poster)
	assert.Equal(t, []models.Trailer{
		{Site: models.TrailerSiteYouTube, Key: "vKQi3bBA1y8", Name: "Trailer"},
		{Site: models.TrailerSiteVimeo, Key: "12345", Name: "Teaser"},
	}, meta.Trailers)
}

func TestFetchPrimaryWithoutIMDBID(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"id": 99, "imdb_id": null, "title": "Obscure"}`), nil
	})

	_, err := client.FetchPrimary(context.Background(), 99)
	require.ErrorIs(t, err, ErrNoCrossReference)
}

func TestFetchPrimaryErrorKindsAreNotRetried(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrRequest},
		{"unauthorized", http.StatusUnauthorized, ErrRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(func(req *http.Request) (*http.Response, error) {
				atomic.AddInt32(&calls, 1)
				return jsonResponse(tc.status, `{"status_message":"x"}`), nil
			})

			_, err := client.FetchPrimary(context.Background(), 603)
			require.ErrorIs(t, err, tc.want)
			assert.EqualValues(t, 1, calls)
		})
	}
}

func TestFetchPrimaryTransportFailure(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset")
	})

	_, err := client.FetchPrimary(context.Background(), 603)
	require.ErrorIs(t, err, ErrRequest)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFetchPrimaryBadPayload(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{not json`), nil
	})

	_, err := client.FetchPrimary(context.Background(), 603)
	require.ErrorIs(t, err, ErrRequest)
}

func TestFetchNotConfigured(t *testing.T) {
	client := NewClient(Config{}, &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request to %s", req.URL)
		return nil, nil
	})})

	_, err := client.FetchPrimary(context.Background(), 603)
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.FetchSecondary(context.Background(), "tt0133093")
	require.ErrorIs(t, err, ErrNotConfigured)
}

const matrixOMDB = `{
	"Title": "The Matrix",
	"Runtime": "136 min",
	"Genre": "Action, Sci-Fi",
	"Director": "Lana Wachowski, Lilly Wachowski",
	"Writer": "N/A",
	"Actors": "Keanu Reeves, Laurence Fishburne, Carrie-Anne Moss",
	"Plot": "When a beautiful stranger leads computer hacker Neo...",
	"Country": "United States, Australia",
	"imdbRating": "8.7",
	"imdbID": "tt0133093",
	"Response": "True"
}`

func TestFetchSecondaryNormalizes(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "www.omdbapi.com", req.URL.Host)
		q := req.URL.Query()
		assert.Equal(t, "tt0133093", q.Get("i"))
		assert.Equal(t, "full", q.Get("plot"))
		assert.Equal(t, "omdb-key", q.Get("apikey"))
		return jsonResponse(http.StatusOK, matrixOMDB), nil
	})

	meta, err := client.FetchSecondary(context.Background(), "tt0133093")
	require.NoError(t, err)

	assert.Nil(t, meta.Writer)
	require.NotNil(t, meta.Director)
	assert.Equal(t, "Lana Wachowski, Lilly Wachowski", *meta.Director)
	require.NotNil(t, meta.Runtime)
	assert.Equal(t, 136*time.Minute, *meta.Runtime)
	require.NotNil(t, meta.Rating)
	assert.Equal(t, 8.7, *meta.Rating)
}

func TestFetchSecondaryUnparseableRuntimeStillSucceeds(t *testing.T) {
	long := strings.Repeat("Actor, ", 60)
	body := `{"Response":"True","imdbID":"tt1","Runtime":"a while","Actors":"` + long + `"}`
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	})

	meta, err := client.FetchSecondary(context.Background(), "tt1")
	require.NoError(t, err)
	assert.Nil(t, meta.Runtime)
	require.NotNil(t, meta.Actors)
	assert.Len(t, []rune(*meta.Actors), 255)
	assert.True(t, strings.HasSuffix(*meta.Actors, "..."))
}

func TestFetchSecondaryErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"movie not found", http.StatusOK, `{"Response":"False","Error":"Movie not found!"}`, ErrNotFound},
		{"incorrect id", http.StatusOK, `{"Response":"False","Error":"Incorrect IMDb ID."}`, ErrNotFound},
		{"limit reached", http.StatusUnauthorized, `{"Response":"False","Error":"Request limit reached!"}`, ErrRateLimited},
		{"invalid key", http.StatusUnauthorized, `{"Response":"False","Error":"Invalid API key!"}`, ErrRequest},
		{"plain 503", http.StatusServiceUnavailable, `<html>down</html>`, ErrRequest},
		{"plain 429", http.StatusTooManyRequests, ``, ErrRateLimited},
		{"garbage", http.StatusOK, `{{`, ErrRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			_, err := client.FetchSecondary(context.Background(), "tt0133093")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFetchRunsBothAndMerges(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Host, "omdbapi") {
			return jsonResponse(http.StatusOK, matrixOMDB), nil
		}
		return jsonResponse(http.StatusOK, matrixTMDB), nil
	})

	data, err := client.Fetch(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "tt0133093", data.IMDBID)
	assert.Equal(t, "Matrix", data.Title)
	require.NotNil(t, data.Genre)
	assert.Equal(t, "Action, Sci-Fi", *data.Genre)
	assert.Equal(t, 136, data.RuntimeMinutes())
}

func TestFetchStopsWhenPrimaryFails(t *testing.T) {
	var omdbCalls int32
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Host, "omdbapi") {
			atomic.AddInt32(&omdbCalls, 1)
			return jsonResponse(http.StatusOK, matrixOMDB), nil
		}
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})

	_, err := client.Fetch(context.Background(), 603)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, omdbCalls)
}

func TestWatchProvidersUsesConfiguredCountry(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/3/movie/603/watch/providers", req.URL.Path)
		return jsonResponse(http.StatusOK, `{"id":603,"results":{
			"US":{"flatrate":[{"provider_id":8,"provider_name":"Netflix","logo_path":"/n.jpg"}]},
			"FR":{"flatrate":[{"provider_id":337,"provider_name":"Disney Plus","logo_path":"/d.jpg"},{"provider_id":337,"provider_name":"Disney Plus"}],
			      "rent":[{"provider_id":2,"provider_name":"Apple TV"}]}
		}}`), nil
	})

	providers, err := client.WatchProviders(context.Background(), 603)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, int64(337), providers[0].ID)
	assert.Equal(t, "https://image.tmdb.org/t/p/w92/d.jpg", providers[0].Logo)
}

func TestWatchProvidersMissingRegion(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"id":603,"results":{}}`), nil
	})

	providers, err := client.WatchProviders(context.Background(), 603)
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestProviderCatalog(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/3/watch/providers/movie", req.URL.Path)
		assert.Equal(t, "FR", req.URL.Query().Get("watch_region"))
		return jsonResponse(http.StatusOK, `{"results":[
			{"provider_id":8,"provider_name":"Netflix"},
			{"provider_id":337,"provider_name":"Disney Plus"}
		]}`), nil
	})

	providers, err := client.ProviderCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, providers, 2)
}

func TestSearch(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/3/search/movie", req.URL.Path)
		assert.Equal(t, "matrix", req.URL.Query().Get("query"))
		return jsonResponse(http.StatusOK, `{"results":[
			{"id":603,"title":"Matrix","original_title":"The Matrix","popularity":80.1,"poster_path":"/p.jpg"}
		]}`), nil
	})

	results, err := client.Search(context.Background(), " matrix ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(603), results[0].TMDBID)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/p.jpg", results[0].Poster)

	_, err = client.Search(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en-US", normalizeLanguage(""))
	assert.Equal(t, "en-US", normalizeLanguage("en"))
	assert.Equal(t, "fr-FR", normalizeLanguage("fr"))
	assert.Equal(t, "pt-BR", normalizeLanguage("pt_br"))
	assert.Equal(t, "de-AT", normalizeLanguage("de-AT"))
	assert.Equal(t, "en-US", normalizeLanguage("!!"))
}
