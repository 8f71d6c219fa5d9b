package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"carwatch/models"
)

// ErrorKind classifies validation failures. Only MissingIdentity is fatal for
// a record; everything else nulls the field or rejects the single record.
type ErrorKind string

const (
	KindMalformed       ErrorKind = "malformed"
	KindOutOfRange      ErrorKind = "out_of_range"
	KindMissingIdentity ErrorKind = "missing_identity"
)

type ValidationError struct {
	Field string
	Kind  ErrorKind
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %s %s (value %q)", e.Field, e.Kind, e.Value)
}

// ZipcodeResolver looks up the id for a postal code. Implemented by
// storage.PostgresStore; nil lookups are not errors.
type ZipcodeResolver interface {
	ZipcodeIDByCode(ctx context.Context, code string) (*int64, error)
}

// Processor converts raw scraped field bags into canonical listings,
// applying type coercion, enum mapping, and zipcode resolution.
type Processor struct {
	zipcodes ZipcodeResolver
	cache    map[string]*int64
	now      func() time.Time
}

func New(zipcodes ZipcodeResolver) *Processor {
	return &Processor{
		zipcodes: zipcodes,
		cache:    make(map[string]*int64),
		now:      time.Now,
	}
}

var (
	yearRegex    = regexp.MustCompile(`\b(\d{4})\b`)
	uuidRegex    = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	zipcodeRegex = regexp.MustCompile(`\b(\d{4})\b`)
	digitsRegex  = regexp.MustCompile(`^\d+$`)
)

// Process validates and coerces one raw record. Failures are per-record: a
// returned error means this record is dropped, never that the batch aborts.
func (p *Processor) Process(ctx context.Context, raw models.ListingRaw) (*models.Listing, error) {
	id, err := DeriveID(raw.URL)
	if err != nil {
		return nil, err
	}

	year, err := parseYear(raw.YearText, p.now().Year())
	if err != nil {
		return nil, err
	}

	price, err := parseAmount("price", raw.PriceText)
	if err != nil {
		return nil, err
	}

	mileage, err := parseAmount("mileage", raw.MileageText)
	if err != nil {
		return nil, err
	}

	now := p.now()
	listing := &models.Listing{
		ID:           id,
		URL:          strings.TrimSpace(raw.URL),
		SourceSite:   raw.SourceSite,
		Title:        cleanText(raw.Title),
		Brand:        models.CanonicalBrand(raw.Brand),
		Model:        cleanText(raw.Model),
		Year:         year,
		Mileage:      mileage,
		Price:        price,
		FuelType:     models.ParseFuelType(raw.FuelText),
		Transmission: models.ParseTransmission(raw.Transmission),
		Description:  cleanText(raw.Description),
		Location:     cleanText(raw.Location),
		Exists:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Location resolution is best-effort: a miss leaves the id nil.
	if zip := ExtractZipcode(listing.Location); zip != "" {
		listing.SourceZipcodeID = p.resolveZipcode(ctx, zip)
	}

	return listing, nil
}

func (p *Processor) resolveZipcode(ctx context.Context, code string) *int64 {
	if id, ok := p.cache[code]; ok {
		return id
	}
	if p.zipcodes == nil {
		return nil
	}
	id, err := p.zipcodes.ZipcodeIDByCode(ctx, code)
	if err != nil {
		log.Printf("zipcode lookup failed for %s: %v", code, err)
		return nil
	}
	p.cache[code] = id
	return id
}

// DeriveID produces a stable listing id from the detail URL: the embedded
// UUID token when the site exposes one, otherwise a hash of the normalized
// URL. The same URL always yields the same id.
func DeriveID(rawURL string) (string, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return "", &ValidationError{Field: "url", Kind: KindMissingIdentity, Value: rawURL}
	}

	if token := uuidRegex.FindString(strings.ToLower(u)); token != "" {
		return token, nil
	}

	normalized := strings.ToLower(u)
	if i := strings.IndexAny(normalized, "?#"); i >= 0 {
		normalized = normalized[:i]
	}
	normalized = strings.TrimRight(normalized, "/")
	if normalized == "" {
		return "", &ValidationError{Field: "url", Kind: KindMissingIdentity, Value: rawURL}
	}

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16]), nil
}

// parseYear extracts a 4-digit year from free text ("2019", "03/2019",
// "2019-03-01"). Plausible range is [1900, currentYear+1].
func parseYear(s string, currentYear int) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	m := yearRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, &ValidationError{Field: "year", Kind: KindMalformed, Value: s}
	}

	year, _ := strconv.Atoi(m[1])
	if year < 1900 || year > currentYear+1 {
		return nil, &ValidationError{Field: "year", Kind: KindOutOfRange, Value: s}
	}
	return &year, nil
}

// amountUnits are decorations stripped before numeric coercion. Longer
// suffixes come first so "kms" never leaves a residual "s" behind.
var amountUnits = []string{"€", "$", "eur", "kms", "km", "mi"}

// parseAmount coerces decorated numeric text ("25.000 €", "239 833 km") into
// a non-negative integer. Letters beyond known unit suffixes or a negative
// sign are malformed.
func parseAmount(field, s string) (*int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return nil, nil
	}
	if strings.Contains(v, "-") {
		return nil, &ValidationError{Field: field, Kind: KindMalformed, Value: s}
	}

	for _, unit := range amountUnits {
		v = strings.ReplaceAll(v, unit, "")
	}
	v = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', '.', ',', '\'':
			return -1
		}
		return r
	}, v)

	if v == "" || !digitsRegex.MatchString(v) {
		return nil, &ValidationError{Field: field, Kind: KindMalformed, Value: s}
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &ValidationError{Field: field, Kind: KindMalformed, Value: s}
	}
	return &n, nil
}

// ExtractZipcode pulls the 4-digit Belgian postal code out of location text
// like "1000 Bruxelles". Empty when no code is present.
func ExtractZipcode(location string) string {
	m := zipcodeRegex.FindStringSubmatch(location)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
