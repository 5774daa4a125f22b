package models

// NamedCount is a label with its number of occurrences.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// YearCount is the number of movies watched in a calendar year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Stats summarises a user's watch history.
type Stats struct {
	Watched            int          `json:"watched"`
	ToWatch            int          `json:"toWatch"`
	TotalHours         float64      `json:"totalHours"`
	RatingDistribution map[int]int  `json:"ratingDistribution"`
	TopGenres          []NamedCount `json:"topGenres"`
	TopDirectors       []NamedCount `json:"topDirectors"`
	TopActors          []NamedCount `json:"topActors"`
	PerYear            []YearCount  `json:"perYear"`
}
