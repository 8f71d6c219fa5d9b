package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingRaw is the untyped field bag scraped from one result-page fragment.
// Everything is text exactly as it appeared in the markup; the processor owns
// all coercion. Discarded after processing.
type ListingRaw struct {
	Title        string
	Brand        string
	Model        string
	YearText     string
	MileageText  string
	PriceText    string
	FuelText     string
	Transmission string
	Description  string
	Location     string
	URL          string
	SourceSite   string
}

// Listing is the canonical vehicle record persisted to the listings table.
// ID is derived deterministically from the detail URL and is immutable once
// assigned; CreatedAt is set at first persistence and preserved on update.
type Listing struct {
	ID              string       `json:"id" db:"id"`
	URL             string       `json:"url" db:"url"`
	SourceSite      string       `json:"source_site" db:"source_site"`
	Title           string       `json:"title" db:"title"`
	Brand           string       `json:"brand" db:"brand"`
	Model           string       `json:"model" db:"model"`
	Year            *int         `json:"year" db:"year"`
	Mileage         *int         `json:"mileage" db:"mileage"`
	Price           *int         `json:"price" db:"price"`
	FuelType        FuelType     `json:"fuel_type" db:"fuel_type"`
	Transmission    Transmission `json:"transmission" db:"transmission"`
	Description     string       `json:"description" db:"description"`
	Location        string       `json:"location" db:"location"`
	SourceZipcodeID *int64       `json:"source_zipcode_id" db:"source_zipcode_id"`
	Exists          bool         `json:"exists" db:"exists_flag"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// Zipcode is read-only reference data resolved against scraped location text.
type Zipcode struct {
	ID      int64  `json:"id" db:"id"`
	Zipcode string `json:"zipcode" db:"zipcode"`
	City    string `json:"city" db:"city"`
}

// UserPreference holds one user's stored search filter. Nil bounds are open
// ended and admit any value; an empty ZipcodeIDs set disables location
// filtering entirely.
type UserPreference struct {
	UserID     uuid.UUID `json:"user_id" db:"id"`
	PriceMin   *int      `json:"price_min" db:"price_min"`
	PriceMax   *int      `json:"price_max" db:"price_max"`
	MileageMin *int      `json:"mileage_min" db:"mileage_min"`
	MileageMax *int      `json:"mileage_max" db:"mileage_max"`
	YearMin    *int      `json:"year_min" db:"year_min"`
	YearMax    *int      `json:"year_max" db:"year_max"`
	ZipcodeIDs []int64   `json:"zipcode_ids"`
}

// UserListingLink records that a listing satisfies a user's preference.
// At most one link exists per (user, listing) pair.
type UserListingLink struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	ListingID string     `json:"listing_id" db:"listing_id"`
	Status    LinkStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// PersistReport is the outcome of one Persist call.
type PersistReport struct {
	Inserted int
	Updated  int
	Failed   map[string]error // listing id -> terminal write error
}

func NewPersistReport() *PersistReport {
	return &PersistReport{Failed: make(map[string]error)}
}

// Merge folds another report into this one.
func (r *PersistReport) Merge(other *PersistReport) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	for id, err := range other.Failed {
		r.Failed[id] = err
	}
}

func IntPtr(v int) *int { return &v }
