package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"carwatch/models"
)

type fakeMatchStore struct {
	prefs []models.UserPreference
	links map[string]bool // "user|listing"
}

func newFakeMatchStore(prefs ...models.UserPreference) *fakeMatchStore {
	return &fakeMatchStore{prefs: prefs, links: make(map[string]bool)}
}

func (s *fakeMatchStore) ListUserPreferences(context.Context) ([]models.UserPreference, error) {
	return s.prefs, nil
}

func (s *fakeMatchStore) CreateUserListing(_ context.Context, userID uuid.UUID, listingID string) (bool, error) {
	key := userID.String() + "|" + listingID
	if s.links[key] {
		return false, nil
	}
	s.links[key] = true
	return true, nil
}

func matchListing(price, mileage, year *int, zipcodeID *int64) *models.Listing {
	return &models.Listing{
		ID:              "listing-1",
		Price:           price,
		Mileage:         mileage,
		Year:            year,
		SourceZipcodeID: zipcodeID,
	}
}

func TestMatchEndToEndScenario(t *testing.T) {
	// A user wanting 5000-15000 EUR, under 100000 km, in zipcode set {id 7},
	// must match a 9000 EUR / 50000 km listing with no resolved zipcode.
	userID := uuid.New()
	pref := models.UserPreference{
		UserID:     userID,
		PriceMin:   models.IntPtr(5000),
		PriceMax:   models.IntPtr(15000),
		MileageMax: models.IntPtr(100000),
		ZipcodeIDs: []int64{7},
	}
	listing := matchListing(models.IntPtr(9000), models.IntPtr(50000), nil, nil)

	matched := Match(listing, []models.UserPreference{pref})
	if len(matched) != 1 || matched[0] != userID {
		t.Fatalf("expected the user to match, got %v", matched)
	}
}

func TestMatchPriceBounds(t *testing.T) {
	pref := models.UserPreference{
		UserID:   uuid.New(),
		PriceMin: models.IntPtr(5000),
		PriceMax: models.IntPtr(15000),
	}
	prefs := []models.UserPreference{pref}

	if len(Match(matchListing(models.IntPtr(4999), nil, nil, nil), prefs)) != 0 {
		t.Fatal("price below min must not match")
	}
	if len(Match(matchListing(models.IntPtr(5000), nil, nil, nil), prefs)) != 1 {
		t.Fatal("bounds are inclusive: price == min must match")
	}
	if len(Match(matchListing(models.IntPtr(15000), nil, nil, nil), prefs)) != 1 {
		t.Fatal("bounds are inclusive: price == max must match")
	}
	if len(Match(matchListing(models.IntPtr(15001), nil, nil, nil), prefs)) != 0 {
		t.Fatal("price above max must not match")
	}
}

func TestMatchOpenBoundsAdmitEverything(t *testing.T) {
	pref := models.UserPreference{UserID: uuid.New()}
	listing := matchListing(models.IntPtr(999999), models.IntPtr(500000), models.IntPtr(1950), nil)

	if len(Match(listing, []models.UserPreference{pref})) != 1 {
		t.Fatal("a preference with no bounds must match any listing")
	}
}

func TestMatchNilValueAgainstBound(t *testing.T) {
	pref := models.UserPreference{
		UserID:   uuid.New(),
		PriceMax: models.IntPtr(10000),
	}
	listing := matchListing(nil, nil, nil, nil)

	if len(Match(listing, []models.UserPreference{pref})) != 0 {
		t.Fatal("a listing with unknown price must not satisfy a price bound")
	}
}

func TestMatchZipcodeRules(t *testing.T) {
	zipID := int64(7)
	otherZip := int64(9)
	pref := models.UserPreference{
		UserID:     uuid.New(),
		ZipcodeIDs: []int64{zipID},
	}
	prefs := []models.UserPreference{pref}

	if len(Match(matchListing(nil, nil, nil, &zipID), prefs)) != 1 {
		t.Fatal("matching zipcode must admit")
	}
	if len(Match(matchListing(nil, nil, nil, &otherZip), prefs)) != 0 {
		t.Fatal("zipcode outside the set must not admit")
	}
	if len(Match(matchListing(nil, nil, nil, nil), prefs)) != 1 {
		t.Fatal("unresolved listing zipcode must admit")
	}

	open := models.UserPreference{UserID: uuid.New()}
	if len(Match(matchListing(nil, nil, nil, &otherZip), []models.UserPreference{open})) != 1 {
		t.Fatal("empty preference zipcode set must admit any listing")
	}
}

func TestMatcherRunIsIdempotent(t *testing.T) {
	userID := uuid.New()
	store := newFakeMatchStore(models.UserPreference{UserID: userID})
	matcher := NewMatcher(store)

	listings := []*models.Listing{matchListing(models.IntPtr(9000), nil, nil, nil)}

	stats, err := matcher.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if stats.LinksCreated != 1 || stats.UsersMatched != 1 {
		t.Fatalf("expected one link on first run, got %+v", stats)
	}

	stats, err = matcher.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if stats.LinksCreated != 0 {
		t.Fatalf("second run over the same listings must create nothing, got %+v", stats)
	}
}

func TestMatcherRunCountsDistinctUsers(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	store := newFakeMatchStore(
		models.UserPreference{UserID: u1},
		models.UserPreference{UserID: u2, PriceMax: models.IntPtr(1)},
	)
	matcher := NewMatcher(store)

	listings := []*models.Listing{
		matchListing(models.IntPtr(9000), nil, nil, nil),
		func() *models.Listing {
			l := matchListing(models.IntPtr(7000), nil, nil, nil)
			l.ID = "listing-2"
			return l
		}(),
	}

	stats, err := matcher.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.LinksCreated != 2 {
		t.Fatalf("expected 2 links for the open user, got %+v", stats)
	}
	if stats.UsersMatched != 1 {
		t.Fatalf("expected 1 distinct matched user, got %+v", stats)
	}
}
