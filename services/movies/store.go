// Package movies owns the shared movie catalog: lazy creation from provider
// metadata, refreshes, watch-provider availability and orphan cleanup.
package movies

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"filmlog/internal/database"
	"filmlog/models"
	"filmlog/services/metadata"
	"filmlog/utils/similarity"
)

var (
	ErrNotFound         = errors.New("movie not found")
	ErrInvalidTMDBID    = errors.New("invalid tmdb id")
	ErrDuplicateIMDB    = errors.New("imdb id already belongs to another movie")
	ErrProviderNotFound = errors.New("watch provider not in catalog")
)

//go:generate mockgen -destination=mocks/fetcher.go -package=mocks filmlog/services/movies Fetcher

// Fetcher is the metadata surface the store needs.
type Fetcher interface {
	FetchPrimary(ctx context.Context, tmdbID int64) (metadata.PrimaryMetadata, error)
	FetchSecondary(ctx context.Context, imdbID string) (metadata.SecondaryMetadata, error)
	WatchProviders(ctx context.Context, tmdbID int64) ([]models.Provider, error)
	ProviderCatalog(ctx context.Context) ([]models.Provider, error)
}

var _ Fetcher = (*metadata.Client)(nil)

// Options configures a Store.
type Options struct {
	// Country is the region provider availability is recorded for.
	Country string
	// DevMode turns an unknown provider during reconciliation into an error
	// instead of a logged skip.
	DevMode bool
	// FetchTimeout bounds a shared metadata fetch. Defaults to 30s.
	FetchTimeout time.Duration
}

// Store persists canonical movies.
type Store struct {
	db      *database.DB
	fetcher Fetcher
	country string
	devMode bool
	now     func() time.Time

	fetchTimeout time.Duration

	// fetches collapses concurrent metadata lookups for the same tmdb id.
	fetches singleflight.Group
}

// NewStore creates a movie store.
func NewStore(db *database.DB, fetcher Fetcher, opts Options) *Store {
	country := strings.ToUpper(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "US"
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Store{
		db:      db,
		fetcher: fetcher,
		country: country,
		devMode: opts.DevMode,
		now:     func() time.Time { return time.Now().UTC() },

		fetchTimeout: fetchTimeout,
	}
}

// UpdateResult reports whether a refresh changed anything.
type UpdateResult string

const (
	Updated  UpdateResult = "updated"
	NoChange UpdateResult = "no_change"
)

var movieColumnNames = []string{
	"id", "tmdb_id", "imdb_id", "title", "title_english", "title_original", "overview", "director", "writer",
	"genre", "actors", "country", "release_date", "runtime_minutes", "poster", "homepage", "trailers", "rating",
	"created_at", "updated_at",
}

var movieColumns = Columns("")

// Columns returns the select list ScanMovie expects, qualified with alias
// when it is not empty.
func Columns(alias string) string {
	if alias == "" {
		return strings.Join(movieColumnNames, ", ")
	}
	qualified := make([]string, len(movieColumnNames))
	for i, name := range movieColumnNames {
		qualified[i] = alias + "." + name
	}
	return strings.Join(qualified, ", ")
}

// GetOrCreate returns the id of the movie with tmdbID, creating it from
// provider metadata when it does not exist yet. The returned bool reports
// whether this call inserted the row. Nothing is written unless both
// metadata fetches succeed.
func (s *Store) GetOrCreate(ctx context.Context, tmdbID int64) (int64, bool, error) {
	if tmdbID <= 0 {
		return 0, false, ErrInvalidTMDBID
	}

	id, err := s.idByTMDB(ctx, tmdbID)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}

	// Shared by every waiter on this tmdb id; detached from the starter's cancellation.
	ch := s.fetches.DoChan(strconv.FormatInt(tmdbID, 10), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, tmdbID)
	})
	select {
	case <-ctx.Done():
		return 0, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, false, res.Err
		}
		return s.insert(ctx, res.Val.(models.MovieData))
	}
}

func (s *Store) fetch(ctx context.Context, tmdbID int64) (models.MovieData, error) {
	primary, err := s.fetcher.FetchPrimary(ctx, tmdbID)
	if err != nil {
		return models.MovieData{}, fmt.Errorf("fetch primary metadata for %d: %w", tmdbID, err)
	}
	secondary, err := s.fetcher.FetchSecondary(ctx, primary.IMDBID)
	if err != nil {
		return models.MovieData{}, fmt.Errorf("fetch secondary metadata for %s: %w", primary.IMDBID, err)
	}
	data := metadata.Merge(primary, secondary)
	data.TMDBID = tmdbID
	return data, nil
}

// insert writes data unless a concurrent writer got there first, in which
// case the winner's id is returned.
func (s *Store) insert(ctx context.Context, data models.MovieData) (int64, bool, error) {
	trailers, err := json.Marshal(data.Trailers)
	if err != nil {
		return 0, false, fmt.Errorf("encode trailers: %w", err)
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO movies (tmdb_id, imdb_id, title, title_english, title_original, title_search, overview,
			director, writer, genre, actors, country, release_date, runtime_minutes, poster, homepage,
			trailers, rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		data.TMDBID, nullString(data.IMDBID), data.Title, data.TitleEnglish, data.TitleOriginal, searchKey(data),
		data.Overview, data.Director, data.Writer, data.Genre, data.Actors, data.Country, data.ReleaseDate,
		runtimeMinutes(data), data.Poster, data.Homepage, string(trailers), data.Rating, now, now)
	if err != nil {
		return 0, false, fmt.Errorf("insert movie %d: %w", data.TMDBID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert movie %d: %w", data.TMDBID, err)
	}

	id, err := s.idByTMDB(ctx, data.TMDBID)
	if errors.Is(err, ErrNotFound) {
		// The insert was swallowed by the imdb_id constraint of another movie.
		log.Printf("[movies] tmdb %d: imdb id %s already used by another movie", data.TMDBID, data.IMDBID)
		return 0, false, fmt.Errorf("%w: %s", ErrDuplicateIMDB, data.IMDBID)
	}
	if err != nil {
		return 0, false, err
	}

	created := affected == 1
	if created {
		log.Printf("[movies] created movie %d (tmdb=%d, %q)", id, data.TMDBID, data.Title)
	}
	return id, created, nil
}

func (s *Store) idByTMDB(ctx context.Context, tmdbID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM movies WHERE tmdb_id = ?`, tmdbID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup movie by tmdb id %d: %w", tmdbID, err)
	}
	return id, nil
}

// Get loads a movie by id.
func (s *Store) Get(ctx context.Context, id int64) (models.Movie, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	return ScanMovie(row)
}

// GetByTMDB loads a movie by its TMDB id.
func (s *Store) GetByTMDB(ctx context.Context, tmdbID int64) (models.Movie, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE tmdb_id = ?`, tmdbID)
	return ScanMovie(row)
}

// Update refetches metadata for an existing movie and overwrites its
// descriptive fields, then reconciles watch providers. Identifiers never change.
func (s *Store) Update(ctx context.Context, movieID int64) (UpdateResult, error) {
	current, err := s.Get(ctx, movieID)
	if err != nil {
		return NoChange, err
	}

	fresh, err := s.fetch(ctx, current.TMDBID)
	if err != nil {
		return NoChange, err
	}
	fresh.IMDBID = current.IMDBID

	result := NoChange
	if !sameMovieData(current.MovieData, fresh) {
		trailers, err := json.Marshal(fresh.Trailers)
		if err != nil {
			return NoChange, fmt.Errorf("encode trailers: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE movies SET title = ?, title_english = ?, title_original = ?, title_search = ?, overview = ?,
				director = ?, writer = ?, genre = ?, actors = ?, country = ?, release_date = ?,
				runtime_minutes = ?, poster = ?, homepage = ?, trailers = ?, rating = ?, updated_at = ?
			WHERE id = ?`,
			fresh.Title, fresh.TitleEnglish, fresh.TitleOriginal, searchKey(fresh), fresh.Overview,
			fresh.Director, fresh.Writer, fresh.Genre, fresh.Actors, fresh.Country, fresh.ReleaseDate,
			runtimeMinutes(fresh), fresh.Poster, fresh.Homepage, string(trailers), fresh.Rating, s.now(), movieID)
		if err != nil {
			return NoChange, fmt.Errorf("update movie %d: %w", movieID, err)
		}
		result = Updated
	} else {
		// Touch updated_at so the stale-refresh job moves on.
		if _, err := s.db.ExecContext(ctx, `UPDATE movies SET updated_at = ? WHERE id = ?`, s.now(), movieID); err != nil {
			return NoChange, fmt.Errorf("touch movie %d: %w", movieID, err)
		}
	}

	if err := s.RefreshProviders(ctx, movieID); err != nil {
		return result, err
	}
	return result, nil
}

// ListStale returns ids of movies not refreshed since olderThan, oldest first.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM movies WHERE updated_at < ? ORDER BY updated_at, id LIMIT ?`, olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale movies: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SweepOrphans deletes movies that are on no list and appear in no action
// history, and returns how many were removed. Feed entries therefore never
// lose their movie.
func (s *Store) SweepOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM movies
		 WHERE NOT EXISTS (SELECT 1 FROM records r WHERE r.movie_id = movies.id)
		   AND NOT EXISTS (SELECT 1 FROM action_records a WHERE a.movie_id = movies.id)`)
	if err != nil {
		return 0, fmt.Errorf("sweep orphan movies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[movies] swept %d orphan movies", n)
	}
	return n, nil
}

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanMovie reads a row selected with Columns. Callers joining other tables
// pass their own destinations as leading; they are scanned first.
func ScanMovie(row Scanner, leading ...any) (models.Movie, error) {
	var (
		m        models.Movie
		imdbID   sql.NullString
		overview sql.NullString
		director sql.NullString
		writer   sql.NullString
		genre    sql.NullString
		actors   sql.NullString
		country  sql.NullString
		release  sql.NullString
		runtime  sql.NullInt64
		poster   sql.NullString
		homepage sql.NullString
		trailers string
		rating   sql.NullFloat64
	)
	dest := append(leading, &m.ID, &m.TMDBID, &imdbID, &m.Title, &m.TitleEnglish, &m.TitleOriginal, &overview,
		&director, &writer, &genre, &actors, &country, &release, &runtime, &poster, &homepage, &trailers,
		&rating, &m.CreatedAt, &m.UpdatedAt)
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Movie{}, ErrNotFound
	}
	if err != nil {
		return models.Movie{}, fmt.Errorf("scan movie: %w", err)
	}

	m.IMDBID = imdbID.String
	m.Overview = stringPtr(overview)
	m.Director = stringPtr(director)
	m.Writer = stringPtr(writer)
	m.Genre = stringPtr(genre)
	m.Actors = stringPtr(actors)
	m.Country = stringPtr(country)
	m.ReleaseDate = stringPtr(release)
	m.Poster = poster.String
	m.Homepage = homepage.String
	if runtime.Valid {
		d := time.Duration(runtime.Int64) * time.Minute
		m.Runtime = &d
	}
	if rating.Valid {
		v := rating.Float64
		m.Rating = &v
	}
	m.Trailers = []models.Trailer{}
	if strings.TrimSpace(trailers) != "" {
		if err := json.Unmarshal([]byte(trailers), &m.Trailers); err != nil {
			log.Printf("[movies] movie %d: bad trailers json: %v", m.ID, err)
			m.Trailers = []models.Trailer{}
		}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func searchKey(data models.MovieData) string {
	keys := []string{similarity.Key(data.Title)}
	for _, alt := range []string{data.TitleEnglish, data.TitleOriginal} {
		k := similarity.Key(alt)
		if k == "" {
			continue
		}
		dup := false
		for _, existing := range keys {
			if existing == k {
				dup = true
				break
			}
		}
		if !dup {
			keys = append(keys, k)
		}
	}
	return strings.Join(keys, " | ")
}

func runtimeMinutes(data models.MovieData) any {
	if data.Runtime == nil {
		return nil
	}
	return data.RuntimeMinutes()
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func sameMovieData(a, b models.MovieData) bool {
	eq := func(x, y *string) bool {
		if x == nil || y == nil {
			return x == y
		}
		return *x == *y
	}
	if a.Title != b.Title || a.TitleEnglish != b.TitleEnglish || a.TitleOriginal != b.TitleOriginal ||
		a.Poster != b.Poster || a.Homepage != b.Homepage {
		return false
	}
	if !eq(a.Overview, b.Overview) || !eq(a.Director, b.Director) || !eq(a.Writer, b.Writer) ||
		!eq(a.Genre, b.Genre) || !eq(a.Actors, b.Actors) || !eq(a.Country, b.Country) ||
		!eq(a.ReleaseDate, b.ReleaseDate) {
		return false
	}
	if a.RuntimeMinutes() != b.RuntimeMinutes() || (a.Runtime == nil) != (b.Runtime == nil) {
		return false
	}
	if (a.Rating == nil) != (b.Rating == nil) || (a.Rating != nil && *a.Rating != *b.Rating) {
		return false
	}
	if len(a.Trailers) != len(b.Trailers) {
		return false
	}
	for i := range a.Trailers {
		if a.Trailers[i] != b.Trailers[i] {
			return false
		}
	}
	return true
}
