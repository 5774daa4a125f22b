package metadata

import "filmlog/models"

// Merge layers the OMDb enrichment onto the TMDB data. Identifiers, titles,
// poster and trailers always come from primary; descriptive credits, rating
// and runtime come from secondary. The overview falls back to the OMDb plot.
func Merge(primary PrimaryMetadata, secondary SecondaryMetadata) models.MovieData {
	data := models.MovieData{
		TMDBID:        primary.TMDBID,
		IMDBID:        primary.IMDBID,
		Title:         primary.Title,
		TitleEnglish:  primary.TitleEnglish,
		TitleOriginal: primary.TitleOriginal,
		Overview:      primary.Overview,
		ReleaseDate:   primary.ReleaseDate,
		Poster:        primary.Poster,
		Homepage:      primary.Homepage,
		Trailers:      primary.Trailers,

		Director: secondary.Director,
		Writer:   secondary.Writer,
		Actors:   secondary.Actors,
		Genre:    secondary.Genre,
		Country:  secondary.Country,
		Rating:   secondary.Rating,
		Runtime:  secondary.Runtime,
	}
	if data.Overview == nil {
		data.Overview = secondary.Plot
	}
	if data.IMDBID == "" {
		data.IMDBID = secondary.IMDBID
	}
	if data.Trailers == nil {
		data.Trailers = []models.Trailer{}
	}
	return data
}
