package models

import "time"

// ActionKind enumerates the audit events that drive the activity feed.
type ActionKind string

const (
	ActionMovieAdded   ActionKind = "movie_added"
	ActionListChanged  ActionKind = "list_changed"
	ActionRatingAdded  ActionKind = "rating_added"
	ActionCommentAdded ActionKind = "comment_added"
)

// ActionRecord is an append-only audit entry of a user action on a movie.
type ActionRecord struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"userId"`
	MovieID   int64      `json:"movieId"`
	Kind      ActionKind `json:"kind"`
	List      *ListID    `json:"list,omitempty"`
	Rating    *int       `json:"rating,omitempty"`
	Comment   *string    `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FeedEntry is an ActionRecord projected for display.
type FeedEntry struct {
	ActionRecord
	Username   string `json:"username"`
	MovieTitle string `json:"movieTitle"`
	Poster     string `json:"poster,omitempty"`
}

// FeedPage is one page of the activity stream.
type FeedPage struct {
	Entries []FeedEntry `json:"entries"`
	Page    int         `json:"page"`
	HasNext bool        `json:"hasNext"`
}
