package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmlog/internal/database"
	"filmlog/internal/testutil"
	"filmlog/models"
)

func addRecord(t *testing.T, db *database.DB, userID string, movieID int64, list models.ListID, rating int, at time.Time) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO records (user_id, movie_id, list_id, rating, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, movieID, list, rating, at)
	require.NoError(t, err)
}

func TestStats(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 2)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "alice")
	other := testutil.CreateUser(t, db, "bob")

	matrix := testutil.CreateMovie(t, db, testutil.MovieFixture{
		TMDBID: 603, Title: "The Matrix", Director: "Lana Wachowski, Lilly Wachowski",
		Genre: "Action, Sci-Fi", Actors: "Keanu Reeves, Carrie-Anne Moss", Runtime: 136,
	})
	wick := testutil.CreateMovie(t, db, testutil.MovieFixture{
		TMDBID: 245891, Title: "John Wick", Director: "Chad Stahelski",
		Genre: "Action, Crime, Thriller", Actors: "Keanu Reeves", Runtime: 104,
	})
	heat := testutil.CreateMovie(t, db, testutil.MovieFixture{TMDBID: 949, Title: "Heat", Genre: "Crime"})
	alien := testutil.CreateMovie(t, db, testutil.MovieFixture{TMDBID: 348, Title: "Alien", Runtime: 117})

	y2023 := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	y2024 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	addRecord(t, db, user, matrix, models.ListWatched, 5, y2023)
	addRecord(t, db, user, wick, models.ListWatched, 4, y2024)
	addRecord(t, db, user, heat, models.ListWatched, 0, y2024)
	addRecord(t, db, user, alien, models.ListToWatch, 0, y2024)
	addRecord(t, db, other, alien, models.ListWatched, 3, y2024)

	st, err := svc.Stats(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Watched)
	assert.Equal(t, 1, st.ToWatch)
	assert.Equal(t, 4.0, st.TotalHours)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 1, 5: 1}, st.RatingDistribution)
	assert.Equal(t, []models.NamedCount{{Name: "Action", Count: 2}, {Name: "Crime", Count: 2}}, st.TopGenres)
	assert.Equal(t, []models.NamedCount{{Name: "Keanu Reeves", Count: 2}, {Name: "Carrie-Anne Moss", Count: 1}}, st.TopActors)
	assert.Len(t, st.TopDirectors, 2)
	assert.Equal(t, []models.YearCount{{Year: 2023, Count: 1}, {Year: 2024, Count: 2}}, st.PerYear)
}

func TestStatsEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, 0)
	user := testutil.CreateUser(t, db, "alice")

	st, err := svc.Stats(context.Background(), user)
	require.NoError(t, err)
	assert.Zero(t, st.Watched)
	assert.Zero(t, st.TotalHours)
	assert.NotNil(t, st.TopGenres)
	assert.Empty(t, st.PerYear)
}

func TestCounterDeduplicatesWithinField(t *testing.T) {
	c := newCounter()
	s := "A, B, A, "
	c.addList(&s)
	c.addList(nil)
	assert.Equal(t, []models.NamedCount{{Name: "A", Count: 1}, {Name: "B", Count: 1}}, c.top(5))
}
