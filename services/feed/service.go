// Package feed projects the action log into a privacy-filtered activity stream.
package feed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"filmlog/internal/database"
	"filmlog/models"
)

const defaultPageSize = 25

type Service struct {
	db       *database.DB
	pageSize int
}

func NewService(db *database.DB, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{db: db, pageSize: pageSize}
}

// Feed returns one page of activity visible to viewerID, newest first.
//
// Entries by hidden users never appear. Entries by friends-only users appear
// only to the author and to users the author follows. When the viewer
// follows anyone the stream is limited to those users; otherwise, and for
// anonymous viewers, it is global. Pages start at 1.
func (s *Service) Feed(ctx context.Context, viewerID string, page int) (models.FeedPage, error) {
	if page < 1 {
		page = 1
	}
	viewerID = strings.TrimSpace(viewerID)

	scoped := false
	if viewerID != "" {
		var following int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM follows WHERE follower_id = ?`, viewerID).Scan(&following)
		if err != nil {
			return models.FeedPage{}, fmt.Errorf("count follows: %w", err)
		}
		scoped = following > 0
	}

	query := `
		SELECT a.id, a.user_id, a.movie_id, a.kind, a.list_id, a.rating, a.comment, a.created_at,
			u.username, m.title, m.poster
		FROM action_records a
		JOIN users u ON u.id = a.user_id
		JOIN movies m ON m.id = a.movie_id
		WHERE NOT u.hidden
		AND (NOT u.friends_only OR u.id = ?
			OR EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = u.id AND f.followed_id = ?))`
	args := []any{viewerID, viewerID}
	if scoped {
		query += ` AND a.user_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)`
		args = append(args, viewerID)
	}
	// One extra row tells us whether another page exists.
	query += ` ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`
	args = append(args, s.pageSize+1, (page-1)*s.pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.FeedPage{}, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	result := models.FeedPage{Entries: []models.FeedEntry{}, Page: page}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return models.FeedPage{}, err
		}
		result.Entries = append(result.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return models.FeedPage{}, err
	}

	if len(result.Entries) > s.pageSize {
		result.Entries = result.Entries[:s.pageSize]
		result.HasNext = true
	}
	return result, nil
}

func scanEntry(rows *sql.Rows) (models.FeedEntry, error) {
	var (
		e       models.FeedEntry
		list    sql.NullInt64
		rating  sql.NullInt64
		comment sql.NullString
		poster  sql.NullString
	)
	err := rows.Scan(&e.ID, &e.UserID, &e.MovieID, &e.Kind, &list, &rating, &comment, &e.CreatedAt,
		&e.Username, &e.MovieTitle, &poster)
	if err != nil {
		return models.FeedEntry{}, fmt.Errorf("scan feed entry: %w", err)
	}
	if list.Valid {
		l := models.ListID(list.Int64)
		e.List = &l
	}
	if rating.Valid {
		r := int(rating.Int64)
		e.Rating = &r
	}
	if comment.Valid {
		e.Comment = &comment.String
	}
	e.Poster = poster.String
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
