package models

import (
	"encoding/json"
	"time"
)

// MovieData is the canonical field set produced by merging primary and
// secondary provider metadata.
type MovieData struct {
	TMDBID        int64          `json:"tmdbId"`
	IMDBID        string         `json:"imdbId"`
	Title         string         `json:"title"`
	TitleEnglish  string         `json:"titleEnglish,omitempty"`
	TitleOriginal string         `json:"titleOriginal,omitempty"`
	Overview      *string        `json:"overview,omitempty"`
	Director      *string        `json:"director,omitempty"`
	Writer        *string        `json:"writer,omitempty"`
	Genre         *string        `json:"genre,omitempty"`
	Actors        *string        `json:"actors,omitempty"`
	Country       *string        `json:"country,omitempty"`
	ReleaseDate   *string        `json:"releaseDate,omitempty"` // YYYY-MM-DD
	Runtime       *time.Duration `json:"-"`
	Poster        string         `json:"poster,omitempty"`
	Homepage      string         `json:"homepage,omitempty"`
	Trailers      []Trailer      `json:"trailers"`
	Rating        *float64       `json:"rating,omitempty"` // one fractional digit
}

// Movie is a persisted canonical movie.
type Movie struct {
	ID int64 `json:"id"`
	MovieData
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RuntimeMinutes returns the runtime in whole minutes, or 0 when unknown.
func (m MovieData) RuntimeMinutes() int {
	if m.Runtime == nil {
		return 0
	}
	return int(m.Runtime.Minutes())
}

// MarshalJSON exposes the runtime as minutes instead of nanoseconds.
func (m Movie) MarshalJSON() ([]byte, error) {
	type movieAlias Movie // prevent recursion
	var minutes *int
	if m.Runtime != nil {
		v := m.RuntimeMinutes()
		minutes = &v
	}
	return json.Marshal(&struct {
		movieAlias
		RuntimeMinutes *int `json:"runtimeMinutes,omitempty"`
	}{
		movieAlias:     movieAlias(m),
		RuntimeMinutes: minutes,
	})
}
