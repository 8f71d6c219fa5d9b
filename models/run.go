package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is one execution of the harvest pipeline, journaled locally and
// mirrored to Postgres.
type ScrapeRun struct {
	ID             int64      `json:"id" db:"id"`
	SiteID         string     `json:"site_id" db:"site_id"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	PagesScraped   int        `json:"pages_scraped" db:"pages_scraped"`
	ListingsFound  int        `json:"listings_found" db:"listings_found"`
	Inserted       int        `json:"inserted" db:"inserted"`
	Updated        int        `json:"updated" db:"updated"`
	Failed         int        `json:"failed" db:"failed"`
	Rejected       int        `json:"rejected" db:"rejected"`
	UsersMatched   int        `json:"users_matched" db:"users_matched"`
	LinksCreated   int        `json:"links_created" db:"links_created"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
	ErrorMessage   string     `json:"error_message" db:"error_message"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ScrapeLog is one journal entry tied to a run.
type ScrapeLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
}
