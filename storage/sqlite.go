package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"carwatch/models"
)

// SQLiteStore is the local run journal. It survives Postgres outages so a
// run always leaves a trace, and feeds per-site stats without touching the
// primary database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_scraped INTEGER DEFAULT 0,
		listings_found INTEGER DEFAULT 0,
		inserted INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		rejected INTEGER DEFAULT 0,
		users_matched INTEGER DEFAULT 0,
		links_created INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun journals a new run and returns its id. The id is the run's
// identity everywhere, including the Postgres mirror.
func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (site_id, started_at, status)
		VALUES (?, ?, ?)`,
		run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, pages_scraped = ?,
			listings_found = ?, inserted = ?, updated = ?, failed = ?, rejected = ?,
			users_matched = ?, links_created = ?, errors_count = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesScraped,
		run.ListingsFound, run.Inserted, run.Updated, run.Failed, run.Rejected,
		run.UsersMatched, run.LinksCreated, run.ErrorsCount, run.ErrorMessage,
		run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ScrapeRun, error) {
	row := s.db.QueryRow(`
		SELECT id, site_id, started_at, finished_at, status, pages_scraped,
			listings_found, inserted, updated, failed, rejected,
			users_matched, links_created, errors_count, COALESCE(error_message, '')
		FROM scrape_runs WHERE id = ?`, id)

	var run models.ScrapeRun
	err := row.Scan(&run.ID, &run.SiteID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.PagesScraped, &run.ListingsFound, &run.Inserted, &run.Updated,
		&run.Failed, &run.Rejected, &run.UsersMatched, &run.LinksCreated,
		&run.ErrorsCount, &run.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateSiteStats recomputes the per-site rollup from the journaled runs.
func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scrape_runs WHERE site_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM scrape_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT last_run_at FROM site_stats WHERE site_id = ?`, siteID).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}
