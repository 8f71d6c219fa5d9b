package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"carwatch/models"
)

// MatchStore is the slice of the Postgres store the matcher needs.
type MatchStore interface {
	ListUserPreferences(ctx context.Context) ([]models.UserPreference, error)
	CreateUserListing(ctx context.Context, userID uuid.UUID, listingID string) (bool, error)
}

// Matcher links listings to the users whose stored preferences they satisfy.
// Matching is a full cross product per run; at current listing and user
// volumes that is well under the cost of a single page fetch.
type Matcher struct {
	store MatchStore
}

func NewMatcher(store MatchStore) *Matcher {
	return &Matcher{store: store}
}

type MatchStats struct {
	UsersMatched int // distinct users that gained at least one link
	LinksCreated int
}

// Run matches every listing against every user preference and creates the
// missing links. Existing (user, listing) pairs are left alone, so re-running
// over the same listings is a no-op.
func (m *Matcher) Run(ctx context.Context, listings []*models.Listing) (MatchStats, error) {
	var stats MatchStats

	prefs, err := m.store.ListUserPreferences(ctx)
	if err != nil {
		return stats, fmt.Errorf("loading user preferences: %w", err)
	}
	if len(prefs) == 0 || len(listings) == 0 {
		return stats, nil
	}

	usersHit := make(map[uuid.UUID]bool)
	for _, listing := range listings {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		for _, userID := range Match(listing, prefs) {
			created, err := m.store.CreateUserListing(ctx, userID, listing.ID)
			if err != nil {
				log.Printf("failed to link listing %s to user %s: %v", listing.ID, userID, err)
				continue
			}
			if created {
				stats.LinksCreated++
				usersHit[userID] = true
			}
		}
	}

	stats.UsersMatched = len(usersHit)
	return stats, nil
}

// Match returns the users whose preferences admit the listing. Pure; no
// store access.
func Match(listing *models.Listing, prefs []models.UserPreference) []uuid.UUID {
	var matched []uuid.UUID
	for i := range prefs {
		if Satisfies(listing, &prefs[i]) {
			matched = append(matched, prefs[i].UserID)
		}
	}
	return matched
}

// Satisfies applies one user's filter. Every bound is inclusive; a nil bound
// is open and admits anything. Zipcode filtering only applies when the user
// restricts zipcodes AND the listing resolved a source zipcode.
func Satisfies(listing *models.Listing, pref *models.UserPreference) bool {
	if !within(listing.Price, pref.PriceMin, pref.PriceMax) {
		return false
	}
	if !within(listing.Mileage, pref.MileageMin, pref.MileageMax) {
		return false
	}
	if !within(listing.Year, pref.YearMin, pref.YearMax) {
		return false
	}

	if len(pref.ZipcodeIDs) > 0 && listing.SourceZipcodeID != nil {
		found := false
		for _, id := range pref.ZipcodeIDs {
			if id == *listing.SourceZipcodeID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// within checks an optional value against optional inclusive bounds. A nil
// value only fails when the user actually set a bound on that attribute.
func within(value, min, max *int) bool {
	if value == nil {
		return min == nil && max == nil
	}
	if min != nil && *value < *min {
		return false
	}
	if max != nil && *value > *max {
		return false
	}
	return true
}
