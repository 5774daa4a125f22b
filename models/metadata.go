package models

// Trailer is a remote video reference attached to a movie. Only sites the
// client knows how to embed are kept.
type Trailer struct {
	Site string `json:"site"` // youtube | vimeo
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// URL returns the watch page for the trailer.
func (t Trailer) URL() string {
	switch t.Site {
	case TrailerSiteYouTube:
		return "https://www.youtube.com/watch?v=" + t.Key
	case TrailerSiteVimeo:
		return "https://vimeo.com/" + t.Key
	default:
		return ""
	}
}

const (
	TrailerSiteYouTube = "youtube"
	TrailerSiteVimeo   = "vimeo"
)

// SearchResult is one movie returned by the primary provider's search,
// annotated with the viewer's list membership when known.
type SearchResult struct {
	TMDBID        int64   `json:"tmdbId"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"originalTitle,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	ReleaseDate   string  `json:"releaseDate,omitempty"`
	Poster        string  `json:"poster,omitempty"`
	Popularity    float64 `json:"popularity"`
	VoteAverage   float64 `json:"voteAverage,omitempty"`
	List          *ListID `json:"list,omitempty"`
}
