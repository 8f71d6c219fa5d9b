package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carwatch/models"
)

// PostgresStore holds all domain data: listings, zipcodes, users and their
// preferences, user-listing links, and scrape run records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const upsertListingSQL = `
	INSERT INTO listings (
		id, url, source_site, title, brand, model, year, mileage, price,
		fuel_type, transmission, description, location, source_zipcode_id,
		exists_flag, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		url = EXCLUDED.url,
		title = EXCLUDED.title,
		brand = EXCLUDED.brand,
		model = EXCLUDED.model,
		year = COALESCE(EXCLUDED.year, listings.year),
		mileage = COALESCE(EXCLUDED.mileage, listings.mileage),
		price = COALESCE(EXCLUDED.price, listings.price),
		fuel_type = EXCLUDED.fuel_type,
		transmission = EXCLUDED.transmission,
		description = EXCLUDED.description,
		location = EXCLUDED.location,
		source_zipcode_id = COALESCE(EXCLUDED.source_zipcode_id, listings.source_zipcode_id),
		exists_flag = TRUE,
		updated_at = NOW()
	RETURNING (xmax = 0)`

// UpsertListing writes one listing keyed by its derived id. Returns whether
// the row was newly inserted; created_at survives updates.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.Listing) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertListingSQL,
		l.ID, l.URL, l.SourceSite, l.Title, l.Brand, l.Model,
		l.Year, l.Mileage, l.Price, l.FuelType, l.Transmission,
		l.Description, l.Location, l.SourceZipcodeID,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting listing %s: %w", l.ID, err)
	}
	return inserted, nil
}

// UpsertListingBatch writes a batch in one round trip. Any failure fails the
// whole batch; the caller falls back to per-row writes.
func (s *PostgresStore) UpsertListingBatch(ctx context.Context, listings []*models.Listing) ([]bool, error) {
	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(upsertListingSQL,
			l.ID, l.URL, l.SourceSite, l.Title, l.Brand, l.Model,
			l.Year, l.Mileage, l.Price, l.FuelType, l.Transmission,
			l.Description, l.Location, l.SourceZipcodeID,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := make([]bool, len(listings))
	for i := range listings {
		if err := results.QueryRow().Scan(&inserted[i]); err != nil {
			return nil, fmt.Errorf("batch upsert row %d (%s): %w", i, listings[i].ID, err)
		}
	}
	return inserted, nil
}

func (s *PostgresStore) GetListingByID(ctx context.Context, id string) (*models.Listing, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, url, source_site, title, brand, model, year, mileage, price,
		       fuel_type, transmission, description, location, source_zipcode_id,
		       exists_flag, created_at, updated_at
		FROM listings WHERE id = $1`, id)

	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing %s: %w", id, err)
	}
	return l, nil
}

func (s *PostgresStore) ZipcodeIDByCode(ctx context.Context, code string) (*int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM zipcodes WHERE zipcode = $1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up zipcode %s: %w", code, err)
	}
	return &id, nil
}

// ListUserPreferences loads every user's matching criteria together with
// their zipcode restrictions.
func (s *PostgresStore) ListUserPreferences(ctx context.Context) ([]models.UserPreference, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, price_min, price_max, mileage_min, mileage_max, year_min, year_max
		FROM users`)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	defer rows.Close()

	var prefs []models.UserPreference
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var p models.UserPreference
		if err := rows.Scan(&p.UserID, &p.PriceMin, &p.PriceMax,
			&p.MileageMin, &p.MileageMax, &p.YearMin, &p.YearMax); err != nil {
			return nil, err
		}
		byID[p.UserID] = len(prefs)
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	zipRows, err := s.pool.Query(ctx, `SELECT user_id, zipcode_id FROM user_zipcodes`)
	if err != nil {
		return nil, fmt.Errorf("loading user zipcodes: %w", err)
	}
	defer zipRows.Close()

	for zipRows.Next() {
		var userID uuid.UUID
		var zipcodeID int64
		if err := zipRows.Scan(&userID, &zipcodeID); err != nil {
			return nil, err
		}
		if i, ok := byID[userID]; ok {
			prefs[i].ZipcodeIDs = append(prefs[i].ZipcodeIDs, zipcodeID)
		}
	}
	return prefs, zipRows.Err()
}

// CreateUserListing links a listing to a user, once. Returns whether a new
// link row was created; an existing pair is left untouched whatever its
// status, so trashed listings stay trashed.
func (s *PostgresStore) CreateUserListing(ctx context.Context, userID uuid.UUID, listingID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_listings (id, user_id, listing_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, listing_id) DO NOTHING`,
		uuid.New(), userID, listingID, models.LinkStatusNew)
	if err != nil {
		return false, fmt.Errorf("linking listing %s to user %s: %w", listingID, userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListingsForCheck returns existing listings whose last check is older than
// the cutoff, linked or unlinked depending on the flag.
func (s *PostgresStore) ListingsForCheck(ctx context.Context, linked bool, cutoff time.Time, limit int) ([]*models.Listing, error) {
	linkClause := "EXISTS"
	if !linked {
		linkClause = "NOT EXISTS"
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, url, source_site, title, brand, model, year, mileage, price,
		       fuel_type, transmission, description, location, source_zipcode_id,
		       exists_flag, created_at, updated_at
		FROM listings l
		WHERE exists_flag = TRUE
		  AND updated_at < $1
		  AND %s (SELECT 1 FROM user_listings ul WHERE ul.listing_id = l.id)
		ORDER BY updated_at ASC
		LIMIT $2`, linkClause), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("loading listings for check: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// TrashLinksForListing moves every link pointing at a dead listing to the
// trashed status so users stop seeing it.
func (s *PostgresStore) TrashLinksForListing(ctx context.Context, listingID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_listings SET status = $2 WHERE listing_id = $1 AND status <> $2`,
		listingID, models.LinkStatusTrashed)
	if err != nil {
		return 0, fmt.Errorf("trashing links for listing %s: %w", listingID, err)
	}
	return tag.RowsAffected(), nil
}

// MarkListingGone flips the existence flag when a detail page stops resolving.
func (s *PostgresStore) MarkListingGone(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET exists_flag = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking listing %s gone: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateListingPrice(ctx context.Context, id string, price int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET price = $2, updated_at = NOW() WHERE id = $1`, id, price)
	if err != nil {
		return fmt.Errorf("updating price for listing %s: %w", id, err)
	}
	return nil
}

// TouchListing bumps updated_at after an existence check that found no change.
func (s *PostgresStore) TouchListing(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE listings SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// MirrorRun upserts the run record in Postgres. The local journal assigns
// run ids; Postgres only mirrors them for reporting queries.
func (s *PostgresStore) MirrorRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_runs (
			id, site_id, started_at, finished_at, status, pages_scraped,
			listings_found, inserted, updated, failed, rejected,
			users_matched, links_created, errors_count, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			pages_scraped = EXCLUDED.pages_scraped,
			listings_found = EXCLUDED.listings_found,
			inserted = EXCLUDED.inserted,
			updated = EXCLUDED.updated,
			failed = EXCLUDED.failed,
			rejected = EXCLUDED.rejected,
			users_matched = EXCLUDED.users_matched,
			links_created = EXCLUDED.links_created,
			errors_count = EXCLUDED.errors_count,
			error_message = EXCLUDED.error_message`,
		run.ID, run.SiteID, run.StartedAt, run.FinishedAt, run.Status, run.PagesScraped,
		run.ListingsFound, run.Inserted, run.Updated, run.Failed, run.Rejected,
		run.UsersMatched, run.LinksCreated, run.ErrorsCount, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("mirroring run record: %w", err)
	}
	return nil
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.URL, &l.SourceSite, &l.Title, &l.Brand, &l.Model,
		&l.Year, &l.Mileage, &l.Price, &l.FuelType, &l.Transmission,
		&l.Description, &l.Location, &l.SourceZipcodeID,
		&l.Exists, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
