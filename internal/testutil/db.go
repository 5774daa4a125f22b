// Package testutil provides fixtures for tests that need a real database.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"filmlog/internal/database"
	"filmlog/utils/similarity"
)

// NewDB opens a migrated SQLite database in a temporary directory.
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "filmlog.db")
	db, err := database.Open(context.Background(), database.Options{
		Driver:          database.DriverSQLite,
		DSN:             dsn,
		ConnectAttempts: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// UserOption tweaks a user created by CreateUser.
type UserOption func(hidden, friendsOnly *bool)

func Hidden() UserOption { return func(h, _ *bool) { *h = true } }

func FriendsOnly() UserOption { return func(_, f *bool) { *f = true } }

// CreateUser inserts a user row and returns its id.
func CreateUser(t testing.TB, db *database.DB, username string, opts ...UserOption) string {
	t.Helper()

	var hidden, friendsOnly bool
	for _, opt := range opts {
		opt(&hidden, &friendsOnly)
	}
	id := uuid.NewString()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, username, password_hash, hidden, friends_only, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, username, "x", hidden, friendsOnly, time.Now().UTC())
	require.NoError(t, err)
	return id
}

// Follow makes follower follow followed.
func Follow(t testing.TB, db *database.DB, follower, followed string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`,
		follower, followed, time.Now().UTC())
	require.NoError(t, err)
}

// MovieFixture describes a movie row inserted directly, bypassing metadata fetches.
type MovieFixture struct {
	TMDBID   int64
	Title    string
	Director string
	Genre    string
	Actors   string
	Runtime  int // minutes, 0 = unknown
}

// CreateMovie inserts a movie row and returns its id.
func CreateMovie(t testing.TB, db *database.DB, m MovieFixture) int64 {
	t.Helper()

	nullable := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}
	var runtime any
	if m.Runtime > 0 {
		runtime = m.Runtime
	}
	now := time.Now().UTC()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `
		INSERT INTO movies (tmdb_id, imdb_id, title, title_search, director, genre, actors, runtime_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TMDBID, "tt"+uuid.NewString()[:8], m.Title, similarity.Key(m.Title),
		nullable(m.Director), nullable(m.Genre), nullable(m.Actors), runtime, now, now)
	require.NoError(t, err)

	var id int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT id FROM movies WHERE tmdb_id = ?`, m.TMDBID).Scan(&id))
	return id
}
