package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmlog/internal/database"
	"filmlog/internal/testutil"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), database.Options{Driver: "mysql", DSN: "x"})
	require.ErrorIs(t, err, database.ErrDriverUnsupported)

	_, err = database.Open(context.Background(), database.Options{})
	require.ErrorIs(t, err, database.ErrDSNRequired)
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "filmlog.db")
	ctx := context.Background()

	db, err := database.Open(ctx, database.Options{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.Open(ctx, database.Options{DSN: dsn})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, database.DriverSQLite, db.Driver())
}

func TestMovieTMDBIDIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := `INSERT INTO movies (tmdb_id, imdb_id, title, title_search, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, insert, 603, "tt0133093", "The Matrix", "the matrix", now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, 603, "tt9999999", "The Matrix", "the matrix", now, now)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.False(t, database.IsCheckViolation(err))
}

func TestRecordListIDIsChecked(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "trinity")
	movie := testutil.CreateMovie(t, db, testutil.MovieFixture{TMDBID: 603, Title: "The Matrix"})

	_, err := db.ExecContext(ctx,
		`INSERT INTO records (user_id, movie_id, list_id, created_at) VALUES (?, ?, ?, ?)`,
		user, movie, 7, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, database.IsCheckViolation(err))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO providers (id, name) VALUES (?, ?)`, 8, "Netflix"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM providers`).Scan(&n))
	assert.Zero(t, n)
}

func TestConstraintHelpersIgnoreOtherErrors(t *testing.T) {
	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("unique")))
	assert.False(t, database.IsCheckViolation(nil))
}
