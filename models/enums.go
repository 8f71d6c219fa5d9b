package models

import "strings"

// FuelType is the canonical fuel enumeration. Source vocabulary evolves, so
// every mapping funnels unrecognized values into FuelUnknown instead of failing.
type FuelType string

const (
	FuelGasoline FuelType = "Gasoline"
	FuelDiesel   FuelType = "Diesel"
	FuelElectric FuelType = "Electric"
	FuelHybrid   FuelType = "Hybrid"
	FuelOther    FuelType = "Other"
	FuelUnknown  FuelType = "Unknown"
)

type Transmission string

const (
	TransmissionManual    Transmission = "Manual"
	TransmissionAutomatic Transmission = "Automatic"
	TransmissionSemiAuto  Transmission = "Semi-automatic"
	TransmissionUnknown   Transmission = "Unknown"
)

// LinkStatus tracks the lifecycle of a user-listing link. The pipeline only
// ever creates links in LinkStatusNew; downstream consumers move them along.
type LinkStatus string

const (
	LinkStatusNew      LinkStatus = "new"
	LinkStatusNotified LinkStatus = "notified"
	LinkStatusTrashed  LinkStatus = "trashed"
)

// fuelAliases maps lowercased source vocabulary (including the French terms
// the source site uses) to canonical fuel types.
var fuelAliases = map[string]FuelType{
	"essence":    FuelGasoline,
	"gasoline":   FuelGasoline,
	"petrol":     FuelGasoline,
	"benzine":    FuelGasoline,
	"b":          FuelGasoline,
	"diesel":     FuelDiesel,
	"d":          FuelDiesel,
	"electric":   FuelElectric,
	"électrique": FuelElectric,
	"electrique": FuelElectric,
	"elektro":    FuelElectric,
	"e":          FuelElectric,
	"hybrid":     FuelHybrid,
	"hybride":    FuelHybrid,
	"h":          FuelHybrid,
	"lpg":        FuelOther,
	"gpl":        FuelOther,
	"l":          FuelOther,
	"cng":        FuelOther,
	"gnc":        FuelOther,
	"c":          FuelOther,
	"gas":        FuelOther,
}

var transmissionAliases = map[string]Transmission{
	"manual":            TransmissionManual,
	"manuelle":          TransmissionManual,
	"boîte manuelle":    TransmissionManual,
	"boite manuelle":    TransmissionManual,
	"automatic":         TransmissionAutomatic,
	"automatique":       TransmissionAutomatic,
	"boîte automatique": TransmissionAutomatic,
	"boite automatique": TransmissionAutomatic,
	"semi-automatic":    TransmissionSemiAuto,
	"semi-automatique":  TransmissionSemiAuto,
	"semi":              TransmissionSemiAuto,
}

// ParseFuelType maps free source text to the canonical enumeration.
// Unrecognized values return FuelUnknown, never an error.
func ParseFuelType(s string) FuelType {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return FuelUnknown
	}
	if ft, ok := fuelAliases[v]; ok {
		return ft
	}
	for _, ft := range []FuelType{FuelGasoline, FuelDiesel, FuelElectric, FuelHybrid, FuelOther} {
		if v == strings.ToLower(string(ft)) {
			return ft
		}
	}
	return FuelUnknown
}

// ParseTransmission maps free source text to the canonical enumeration.
func ParseTransmission(s string) Transmission {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return TransmissionUnknown
	}
	if tr, ok := transmissionAliases[v]; ok {
		return tr
	}
	for _, tr := range []Transmission{TransmissionManual, TransmissionAutomatic, TransmissionSemiAuto} {
		if v == strings.ToLower(string(tr)) {
			return tr
		}
	}
	return TransmissionUnknown
}

// knownBrands is the canonical brand table; CanonicalBrand falls back to the
// cleaned input for brands outside it, so new makes never block ingestion.
var knownBrands = []string{
	"Audi", "BMW", "Citroen", "Cupra", "Dacia", "Fiat", "Ford", "Honda",
	"Hyundai", "Jaguar", "Jeep", "Kia", "Land Rover", "Lexus", "Mazda",
	"Mercedes-Benz", "MG", "Mini", "Mitsubishi", "Nissan", "Opel", "Peugeot",
	"Polestar", "Porsche", "Renault", "Rover", "Seat", "Skoda", "Smart",
	"Subaru", "Suzuki", "Tesla", "Toyota", "Volkswagen", "Volvo",
}

var brandAliases = map[string]string{
	"vw":       "Volkswagen",
	"bmw":      "BMW",
	"mercedes": "Mercedes-Benz",
	"merc":     "Mercedes-Benz",
	"alfa":     "Alfa Romeo",
	"range":    "Land Rover",
	"mg":       "MG",
}

// CanonicalBrand normalizes a scraped make/brand string.
func CanonicalBrand(s string) string {
	b := strings.TrimSpace(s)
	if b == "" {
		return ""
	}
	if mapped, ok := brandAliases[strings.ToLower(b)]; ok {
		return mapped
	}
	for _, known := range knownBrands {
		if strings.EqualFold(b, known) {
			return known
		}
	}
	return titleCase(b)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
