// Package records manages a user's list memberships: adding movies to lists,
// moving them between lists, rating, commenting, quality flags and ordering.
// Every user-visible change is mirrored into the append-only action log that
// feeds the activity stream.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"filmlog/internal/database"
	"filmlog/models"
	"filmlog/services/movies"
	"filmlog/services/tasks"
	"filmlog/utils/similarity"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrUserIDRequired = errors.New("user id is required")
	ErrInvalidList    = errors.New("invalid list")
	ErrInvalidRating  = fmt.Errorf("rating must be between 0 and %d", models.MaxRating)
	ErrCommentTooLong = errors.New("comment is too long")
)

const maxCommentLength = 5000

// MovieResolver maps a TMDB id to a canonical movie, creating it on first use.
type MovieResolver interface {
	GetOrCreate(ctx context.Context, tmdbID int64) (int64, bool, error)
}

var _ MovieResolver = (*movies.Store)(nil)

// Service manages list memberships.
type Service struct {
	db         *database.DB
	movies     MovieResolver
	dispatcher tasks.Dispatcher
	now        func() time.Time
}

// NewService creates a records service. dispatcher may be nil, in which case
// no follow-up work is scheduled.
func NewService(db *database.DB, movies MovieResolver, dispatcher tasks.Dispatcher) *Service {
	return &Service{
		db:         db,
		movies:     movies,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AddOutcome describes what AddToList did.
type AddOutcome string

const (
	OutcomeCreated   AddOutcome = "created"
	OutcomeMoved     AddOutcome = "moved"
	OutcomeUnchanged AddOutcome = "unchanged"
)

// AddResult is returned by AddToList.
type AddResult struct {
	RecordID     int64      `json:"recordId"`
	MovieID      int64      `json:"movieId"`
	Outcome      AddOutcome `json:"outcome"`
	MovieCreated bool       `json:"movieCreated"`
}

// AddToList puts the movie on the user's list. A movie already on the other
// list is moved there, keeping its rating, comment and quality flags; a movie
// already on the target list is left alone. Provider failures while resolving
// the movie are returned unchanged and nothing is written.
func (s *Service) AddToList(ctx context.Context, userID string, tmdbID int64, list models.ListID) (AddResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AddResult{}, ErrUserIDRequired
	}
	if !list.Valid() {
		return AddResult{}, fmt.Errorf("%w: %d", ErrInvalidList, list)
	}

	movieID, movieCreated, err := s.movies.GetOrCreate(ctx, tmdbID)
	if err != nil {
		return AddResult{}, err
	}

	result := AddResult{MovieID: movieID, MovieCreated: movieCreated}
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		now := s.now()

		id, current, err := membership(ctx, tx, userID, movieID)
		if errors.Is(err, ErrNotFound) {
			var inserted bool
			inserted, err = insertRecord(ctx, tx, userID, movieID, list, now)
			if err != nil {
				return err
			}
			if inserted {
				id, _, err = membership(ctx, tx, userID, movieID)
				if err != nil {
					return err
				}
				result.RecordID = id
				result.Outcome = OutcomeCreated
				return emit(ctx, tx, models.ActionRecord{
					UserID: userID, MovieID: movieID, Kind: models.ActionMovieAdded, List: &list, CreatedAt: now,
				})
			}
			// A concurrent add won; continue as if the row had been there.
			id, current, err = membership(ctx, tx, userID, movieID)
		}
		if err != nil {
			return err
		}

		result.RecordID = id
		if current == list {
			result.Outcome = OutcomeUnchanged
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET list_id = ?, created_at = ? WHERE id = ?`, list, now, id); err != nil {
			return fmt.Errorf("move record %d: %w", id, err)
		}
		result.Outcome = OutcomeMoved
		return emit(ctx, tx, models.ActionRecord{
			UserID: userID, MovieID: movieID, Kind: models.ActionListChanged, List: &list, CreatedAt: now,
		})
	})
	if err != nil {
		return AddResult{}, err
	}

	if result.Outcome != OutcomeUnchanged {
		log.Printf("[records] user %s: movie %d %s on %s", userID, movieID, result.Outcome, list)
		s.refreshWatchData(ctx, movieID)
	}
	return result, nil
}

// refreshWatchData schedules a provider availability refresh. Failure to
// schedule never fails the add.
func (s *Service) refreshWatchData(ctx context.Context, movieID int64) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, tasks.NewRefreshWatchData(movieID)); err != nil {
		log.Printf("[records] failed to dispatch %s for movie %d: %v", tasks.TaskRefreshWatchData, movieID, err)
	}
}

// insertRecord reports false when the (user, movie) pair already exists.
func insertRecord(ctx context.Context, q database.Querier, userID string, movieID int64, list models.ListID, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO records (user_id, movie_id, list_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, movie_id) DO NOTHING`,
		userID, movieID, list, now)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return n == 1, nil
}

func membership(ctx context.Context, q database.Querier, userID string, movieID int64) (int64, models.ListID, error) {
	var (
		id   int64
		list models.ListID
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, list_id FROM records WHERE user_id = ? AND movie_id = ?`, userID, movieID).Scan(&id, &list)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lookup record: %w", err)
	}
	return id, list, nil
}

func emit(ctx context.Context, q database.Querier, a models.ActionRecord) error {
	var list, rating any
	if a.List != nil {
		list = int(*a.List)
	}
	if a.Rating != nil {
		rating = *a.Rating
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO action_records (user_id, movie_id, kind, list_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.MovieID, string(a.Kind), list, rating, a.Comment, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("record %s action: %w", a.Kind, err)
	}
	return nil
}

// owned loads the mutable fields of a record the user owns.
func owned(ctx context.Context, q database.Querier, userID string, recordID int64) (ownedRecord, error) {
	var r ownedRecord
	err := q.QueryRowContext(ctx, `
		SELECT movie_id, rating, comment, watched_original, watched_extended, watched_theatre,
			watched_hd, watched_full_hd, watched_4k
		FROM records WHERE id = ? AND user_id = ?`, recordID, userID).Scan(
		&r.movieID, &r.rating, &r.comment, &r.quality.OriginalLanguage, &r.quality.ExtendedCut,
		&r.quality.Theatrical, &r.quality.HD, &r.quality.FullHD, &r.quality.UHD4K)
	if errors.Is(err, sql.ErrNoRows) {
		return ownedRecord{}, ErrNotFound
	}
	if err != nil {
		return ownedRecord{}, fmt.Errorf("load record %d: %w", recordID, err)
	}
	return r, nil
}

type ownedRecord struct {
	movieID int64
	rating  int
	comment string
	quality models.QualityFlags
}

// SetRating changes the rating. Only the first rating of a record (from
// unrated to rated) is written to the action log.
func (s *Service) SetRating(ctx context.Context, userID string, recordID int64, rating int) (models.Record, error) {
	if rating < 0 || rating > models.MaxRating {
		return models.Record{}, ErrInvalidRating
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		r, err := owned(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE records SET rating = ? WHERE id = ?`, rating, recordID); err != nil {
			return fmt.Errorf("update rating: %w", err)
		}
		if r.rating == 0 && rating != 0 {
			return emit(ctx, tx, models.ActionRecord{
				UserID: userID, MovieID: r.movieID, Kind: models.ActionRatingAdded, Rating: &rating, CreatedAt: s.now(),
			})
		}
		return nil
	})
	if err != nil {
		return models.Record{}, err
	}
	return s.Get(ctx, userID, recordID)
}

// SetComment replaces the comment. Only going from no comment to a comment
// is written to the action log.
func (s *Service) SetComment(ctx context.Context, userID string, recordID int64, comment string) (models.Record, error) {
	comment = strings.TrimSpace(comment)
	if len([]rune(comment)) > maxCommentLength {
		return models.Record{}, ErrCommentTooLong
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		r, err := owned(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE records SET comment = ? WHERE id = ?`, comment, recordID); err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		if r.comment == "" && comment != "" {
			return emit(ctx, tx, models.ActionRecord{
				UserID: userID, MovieID: r.movieID, Kind: models.ActionCommentAdded, Comment: &comment, CreatedAt: s.now(),
			})
		}
		return nil
	})
	if err != nil {
		return models.Record{}, err
	}
	return s.Get(ctx, userID, recordID)
}

// SetQualityFlags applies a partial update to the quality flags. Setting a
// resolution tier also sets every lower tier.
func (s *Service) SetQualityFlags(ctx context.Context, userID string, recordID int64, update models.QualityFlagsUpdate) (models.Record, error) {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		r, err := owned(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		q := update.Apply(r.quality)
		_, err = tx.ExecContext(ctx, `
			UPDATE records SET watched_original = ?, watched_extended = ?, watched_theatre = ?,
				watched_hd = ?, watched_full_hd = ?, watched_4k = ?
			WHERE id = ?`,
			q.OriginalLanguage, q.ExtendedCut, q.Theatrical, q.HD, q.FullHD, q.UHD4K, recordID)
		if err != nil {
			return fmt.Errorf("update quality flags: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Record{}, err
	}
	return s.Get(ctx, userID, recordID)
}

// Remove deletes the record. The action log keeps its history.
func (s *Service) Remove(ctx context.Context, userID string, recordID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND user_id = ?`, recordID, userID)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %d: %w", recordID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder assigns display positions. Ids that do not exist or belong to
// another user are skipped. It returns the number of records updated.
func (s *Service) Reorder(ctx context.Context, userID string, positions []models.RecordPosition) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserIDRequired
	}

	updated := 0
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, p := range positions {
			res, err := tx.ExecContext(ctx,
				`UPDATE records SET position = ? WHERE id = ? AND user_id = ?`, p.Position, p.RecordID, userID)
			if err != nil {
				return fmt.Errorf("reorder record %d: %w", p.RecordID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reorder record %d: %w", p.RecordID, err)
			}
			if n > 0 {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

const recordColumns = `r.id, r.user_id, r.movie_id, r.list_id, r.rating, r.comment, r.position,
	r.watched_original, r.watched_extended, r.watched_theatre, r.watched_hd, r.watched_full_hd, r.watched_4k,
	r.created_at`

func scanRecord(row movies.Scanner) (models.Record, error) {
	var rec models.Record
	movie, err := movies.ScanMovie(row,
		&rec.ID, &rec.UserID, &rec.MovieID, &rec.List, &rec.Rating, &rec.Comment, &rec.Position,
		&rec.Quality.OriginalLanguage, &rec.Quality.ExtendedCut, &rec.Quality.Theatrical,
		&rec.Quality.HD, &rec.Quality.FullHD, &rec.Quality.UHD4K, &rec.CreatedAt)
	if errors.Is(err, movies.ErrNotFound) {
		return models.Record{}, ErrNotFound
	}
	if err != nil {
		return models.Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.Movie = &movie
	return rec, nil
}

// Get returns one of the user's records with its movie.
func (s *Service) Get(ctx context.Context, userID string, recordID int64) (models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`, `+movies.Columns("m")+`
		FROM records r JOIN movies m ON m.id = r.movie_id
		WHERE r.id = ? AND r.user_id = ?`, recordID, userID)
	return scanRecord(row)
}

// List returns the user's records on list, in display order. A non-empty
// query keeps only titles containing it, ignoring case and accents.
func (s *Service) List(ctx context.Context, userID string, list models.ListID, query string) ([]models.Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if !list.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidList, list)
	}

	sqlText := `
		SELECT ` + recordColumns + `, ` + movies.Columns("m") + `
		FROM records r JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = ? AND r.list_id = ?`
	args := []any{userID, list}
	if key := similarity.Key(query); key != "" {
		sqlText += ` AND m.title_search LIKE ?`
		args = append(args, "%"+escapeLike(key)+"%")
		sqlText += ` ESCAPE '\'`
	}
	sqlText += ` ORDER BY r.position, r.created_at DESC, r.id DESC`

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Memberships reports which list each of the given TMDB ids is on for the
// user. Movies on no list are absent from the map.
func (s *Service) Memberships(ctx context.Context, userID string, tmdbIDs []int64) (map[int64]models.ListID, error) {
	result := make(map[int64]models.ListID)
	if strings.TrimSpace(userID) == "" || len(tmdbIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tmdbIDs)), ", ")
	args := make([]any, 0, len(tmdbIDs)+1)
	args = append(args, userID)
	for _, id := range tmdbIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.tmdb_id, r.list_id
		FROM records r JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = ? AND m.tmdb_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tmdbID int64
			list   models.ListID
		)
		if err := rows.Scan(&tmdbID, &list); err != nil {
			return nil, err
		}
		result[tmdbID] = list
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
