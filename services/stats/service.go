// Package stats aggregates a user's list memberships into summary numbers.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"filmlog/internal/database"
	"filmlog/models"
)

const defaultTopN = 10

type Service struct {
	db   *database.DB
	topN int
}

func NewService(db *database.DB, topN int) *Service {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Service{db: db, topN: topN}
}

// Stats summarises userID's lists. Hours, ratings, top people and genres and
// the per-year series only consider the watched list.
func (s *Service) Stats(ctx context.Context, userID string) (models.Stats, error) {
	st := models.Stats{
		RatingDistribution: make(map[int]int, models.MaxRating),
		TopGenres:          []models.NamedCount{},
		TopDirectors:       []models.NamedCount{},
		TopActors:          []models.NamedCount{},
		PerYear:            []models.YearCount{},
	}
	for r := 1; r <= models.MaxRating; r++ {
		st.RatingDistribution[r] = 0
	}

	if err := s.listCounts(ctx, userID, &st); err != nil {
		return models.Stats{}, err
	}
	if err := s.ratings(ctx, userID, &st); err != nil {
		return models.Stats{}, err
	}
	if err := s.watched(ctx, userID, &st); err != nil {
		return models.Stats{}, err
	}
	return st, nil
}

func (s *Service) listCounts(ctx context.Context, userID string, st *models.Stats) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT list_id, COUNT(*) FROM records WHERE user_id = ? GROUP BY list_id`, userID)
	if err != nil {
		return fmt.Errorf("count lists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			list  models.ListID
			count int
		)
		if err := rows.Scan(&list, &count); err != nil {
			return err
		}
		switch list {
		case models.ListWatched:
			st.Watched = count
		case models.ListToWatch:
			st.ToWatch = count
		}
	}
	return rows.Err()
}

func (s *Service) ratings(ctx context.Context, userID string, st *models.Stats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rating, COUNT(*) FROM records
		WHERE user_id = ? AND list_id = ? AND rating > 0
		GROUP BY rating`, userID, models.ListWatched)
	if err != nil {
		return fmt.Errorf("rating distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return err
		}
		st.RatingDistribution[rating] = count
	}
	return rows.Err()
}

func (s *Service) watched(ctx context.Context, userID string, st *models.Stats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.created_at, m.runtime_minutes, m.genre, m.director, m.actors
		FROM records r JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = ? AND r.list_id = ?`, userID, models.ListWatched)
	if err != nil {
		return fmt.Errorf("watched movies: %w", err)
	}
	defer rows.Close()

	var (
		minutes   int64
		genres    = newCounter()
		directors = newCounter()
		actors    = newCounter()
		years     = map[int]int{}
	)
	for rows.Next() {
		var (
			created                  time.Time
			runtime                  *int64
			genre, director, castStr *string
		)
		if err := rows.Scan(&created, &runtime, &genre, &director, &castStr); err != nil {
			return err
		}
		if runtime != nil {
			minutes += *runtime
		}
		genres.addList(genre)
		directors.addList(director)
		actors.addList(castStr)
		years[created.UTC().Year()]++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	st.TotalHours = math.Round(float64(minutes)/60*10) / 10
	st.TopGenres = genres.top(s.topN)
	st.TopDirectors = directors.top(s.topN)
	st.TopActors = actors.top(s.topN)
	for year, count := range years {
		st.PerYear = append(st.PerYear, models.YearCount{Year: year, Count: count})
	}
	sort.Slice(st.PerYear, func(i, j int) bool { return st.PerYear[i].Year < st.PerYear[j].Year })
	return nil
}

// counter tallies names from comma-separated provider fields.
type counter map[string]int

func newCounter() counter { return counter{} }

func (c counter) addList(field *string) {
	if field == nil {
		return
	}
	seen := map[string]bool{}
	for _, name := range strings.Split(*field, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		c[name]++
	}
}

func (c counter) top(n int) []models.NamedCount {
	out := make([]models.NamedCount, 0, len(c))
	for name, count := range c {
		out = append(out, models.NamedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
