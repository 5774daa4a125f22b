package movies

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"filmlog/internal/database"
	"filmlog/models"
)

// RefreshProviders reconciles the movie's availability rows for the store's
// country with what TMDB currently reports: rows no longer offered are
// removed, new ones added, identical ones kept.
//
// An offer naming a provider missing from the catalog fails the whole
// reconciliation with ErrProviderNotFound in dev mode; otherwise it is logged
// and skipped. Upstream failures are likewise only surfaced in dev mode.
func (s *Store) RefreshProviders(ctx context.Context, movieID int64) error {
	movie, err := s.Get(ctx, movieID)
	if err != nil {
		return err
	}

	offered, err := s.fetcher.WatchProviders(ctx, movie.TMDBID)
	if err != nil {
		if s.devMode {
			return fmt.Errorf("fetch watch providers for movie %d: %w", movieID, err)
		}
		slog.Warn("watch provider fetch failed", "movieID", movieID, "tmdbID", movie.TMDBID, "error", err)
		return nil
	}

	var added, removed int
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		current, err := providerIDsFor(ctx, tx, movieID, s.country)
		if err != nil {
			return err
		}

		want := make(map[int64]bool, len(offered))
		for _, p := range offered {
			want[p.ID] = true
		}

		for id := range current {
			if want[id] {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM provider_records WHERE provider_id = ? AND movie_id = ? AND country = ?`,
				id, movieID, s.country); err != nil {
				return fmt.Errorf("remove provider %d from movie %d: %w", id, movieID, err)
			}
			removed++
		}

		for _, p := range offered {
			if current[p.ID] {
				continue
			}
			known, err := providerExists(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if !known {
				if s.devMode {
					return fmt.Errorf("%w: %d (%s)", ErrProviderNotFound, p.ID, p.Name)
				}
				log.Printf("[movies] movie %d: skipping unknown provider %d (%s)", movieID, p.ID, p.Name)
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO provider_records (provider_id, movie_id, country) VALUES (?, ?, ?)`,
				p.ID, movieID, s.country); err != nil {
				return fmt.Errorf("add provider %d to movie %d: %w", p.ID, movieID, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if added > 0 || removed > 0 {
		log.Printf("[movies] movie %d providers: +%d -%d (%s)", movieID, added, removed, s.country)
	}
	return nil
}

func providerIDsFor(ctx context.Context, q database.Querier, movieID int64, country string) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT provider_id FROM provider_records WHERE movie_id = ? AND country = ?`, movieID, country)
	if err != nil {
		return nil, fmt.Errorf("load providers for movie %d: %w", movieID, err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func providerExists(ctx context.Context, q database.Querier, id int64) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM providers WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup provider %d: %w", id, err)
	}
	return n > 0, nil
}

// Providers lists the providers offering the movie in the store's country.
func (s *Store) Providers(ctx context.Context, movieID int64) ([]models.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.logo
		FROM provider_records pr
		JOIN providers p ON p.id = pr.provider_id
		WHERE pr.movie_id = ? AND pr.country = ?
		ORDER BY p.name`, movieID, s.country)
	if err != nil {
		return nil, fmt.Errorf("list providers for movie %d: %w", movieID, err)
	}
	defer rows.Close()

	providers := []models.Provider{}
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Logo); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// SyncProviderCatalog upserts the provider reference table from TMDB and
// returns the number of providers written.
func (s *Store) SyncProviderCatalog(ctx context.Context) (int, error) {
	catalog, err := s.fetcher.ProviderCatalog(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch provider catalog: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, p := range catalog {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO providers (id, name, logo) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, logo = excluded.logo`,
				p.ID, p.Name, p.Logo); err != nil {
				return fmt.Errorf("upsert provider %d: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[movies] provider catalog synced: %d providers (%s)", len(catalog), s.country)
	return len(catalog), nil
}
