package pipeline

import (
	"testing"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234,567", 1234567, true},
		{"425000", 425000, true},
		{"$549,900", 549900, true},
		{"199000.50", 199000.50, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"$0", 0, false},
		{"-5000", 5000, true}, // sign stripped, digits remain
		{"Call for price", 0, false},
	}
	for _, c := range cases {
		got, ok := parsePrice(c.in)
		if ok != c.ok {
			t.Fatalf("parsePrice(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("parsePrice(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDaysOnMarket(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"17", 17},
		{"34 days", 34},
		{"", 0},
		{"new", 0},
	}
	for _, c := range cases {
		if got := parseDaysOnMarket(c.in); got != c.want {
			t.Fatalf("parseDaysOnMarket(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestComposeAddress(t *testing.T) {
	if got := composeAddress("123 Main St", "Austin", "TX", "78701"); got != "123 Main St, Austin, TX 78701" {
		t.Fatalf("unexpected address %q", got)
	}
	if got := composeAddress("123 Main St", "Austin", "", ""); got != "123 Main St, Austin" {
		t.Fatalf("unexpected address without state %q", got)
	}
	if got := composeAddress(" 123 Main St ", "Austin", "TX", ""); got != "123 Main St, Austin, TX" {
		t.Fatalf("unexpected trimmed address %q", got)
	}
}

func TestNormalizeRecord_CSV(t *testing.T) {
	rec := models.RawRecord{
		Kind: models.RecordKindCSV,
		Fields: map[string]string{
			models.FieldStreet:       "2204 Riverview Dr",
			models.FieldCity:         "Austin",
			models.FieldState:        "TX",
			models.FieldZip:          "78702",
			models.FieldPrice:        "$425,000",
			models.FieldDaysOnMarket: "17",
			models.FieldDescription:  "Charming bungalow, motivated seller.",
			models.FieldURL:          "https://example.com/home/1",
			models.FieldPropertyType: "Single Family Residential",
			models.FieldSaleType:     "MLS Listing",
		},
	}
	req := Request{City: "Austin", State: "TX"}

	lead, ok := normalizeRecord(rec, req, "https://example.com", testNow)
	if !ok {
		t.Fatalf("expected record to normalize")
	}
	if lead.Address != "2204 Riverview Dr, Austin, TX 78702" {
		t.Fatalf("unexpected address %q", lead.Address)
	}
	if lead.Price != 425000 {
		t.Fatalf("unexpected price %v", lead.Price)
	}
	if lead.DaysOnMarket != 17 {
		t.Fatalf("unexpected days on market %d", lead.DaysOnMarket)
	}
	if lead.Source != models.SourceMarketplace {
		t.Fatalf("unexpected source %q", lead.Source)
	}
	if lead.ListingURL != "https://example.com/home/1" {
		t.Fatalf("unexpected URL %q", lead.ListingURL)
	}
	if lead.ListingType != models.ListingTypeAgent {
		t.Fatalf("expected agent listing type from MLS hint, got %q", lead.ListingType)
	}
	if !lead.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected created at %v", lead.CreatedAt)
	}
}

func TestNormalizeRecord_DiscardsInvalid(t *testing.T) {
	req := Request{City: "Austin", State: "TX"}

	// Missing street.
	rec := models.RawRecord{
		Kind:   models.RecordKindCSV,
		Fields: map[string]string{models.FieldCity: "Austin", models.FieldPrice: "100000"},
	}
	if _, ok := normalizeRecord(rec, req, "https://example.com", testNow); ok {
		t.Fatalf("expected record without street to be discarded")
	}

	// Unparseable price.
	rec = models.RawRecord{
		Kind:   models.RecordKindCSV,
		Fields: map[string]string{models.FieldStreet: "1 Elm St", models.FieldCity: "Austin", models.FieldPrice: "N/A"},
	}
	if _, ok := normalizeRecord(rec, req, "https://example.com", testNow); ok {
		t.Fatalf("expected record with unparseable price to be discarded")
	}

	// Zero price.
	rec.Fields[models.FieldPrice] = "0"
	if _, ok := normalizeRecord(rec, req, "https://example.com", testNow); ok {
		t.Fatalf("expected record with zero price to be discarded")
	}
}

func TestNormalizeRecord_JSONWrappedValues(t *testing.T) {
	rec := models.RawRecord{
		Kind: models.RecordKindJSON,
		Object: map[string]interface{}{
			"streetLine":   map[string]interface{}{"value": "811 Cardinal Ln"},
			"city":         "Austin",
			"state":        "TX",
			"zip":          "78704",
			"price":        map[string]interface{}{"value": float64(612500)},
			"daysOnMarket": map[string]interface{}{"value": float64(4)},
			"beds":         float64(2),
			"baths":        float64(2),
			"sqFt":         map[string]interface{}{"value": float64(1190)},
			"url":          "/TX/Austin/811-Cardinal-Ln-78704/home/31870811",
		},
	}
	req := Request{City: "Austin", State: "TX"}

	lead, ok := normalizeRecord(rec, req, "https://example.com", testNow)
	if !ok {
		t.Fatalf("expected record to normalize")
	}
	if lead.Price != 612500 {
		t.Fatalf("unexpected price %v", lead.Price)
	}
	if lead.DaysOnMarket != 4 {
		t.Fatalf("unexpected days on market %d", lead.DaysOnMarket)
	}
	// Empty remarks synthesize a description from the stats.
	if lead.Description != "2 bed, 2 bath, 1190 sqft" {
		t.Fatalf("unexpected synthesized description %q", lead.Description)
	}
	// Relative URL resolves against the base.
	if lead.ListingURL != "https://example.com/TX/Austin/811-Cardinal-Ln-78704/home/31870811" {
		t.Fatalf("unexpected URL %q", lead.ListingURL)
	}
}

func TestNormalizeRecord_DOM(t *testing.T) {
	rec := models.RawRecord{
		Kind:         models.RecordKindDOM,
		AddressLine:  "4310 Avenue G",
		LocalityLine: "Austin, TX 78751",
		PriceText:    "$549,900",
		StatsText:    "3 beds 2 baths 1,620 sq ft",
	}
	req := Request{City: "Houston", State: "TX"}

	lead, ok := normalizeRecord(rec, req, "https://example.com", testNow)
	if !ok {
		t.Fatalf("expected record to normalize")
	}
	// The card's locality line wins over the requested city.
	if lead.City != "Austin" {
		t.Fatalf("unexpected city %q", lead.City)
	}
	if lead.Zipcode != "78751" {
		t.Fatalf("unexpected zip %q", lead.Zipcode)
	}
	if lead.DaysOnMarket != 0 {
		t.Fatalf("expected zero days on market for card records, got %d", lead.DaysOnMarket)
	}
	if lead.Description != "3 bed, 2 bath, 1620 sqft" {
		t.Fatalf("unexpected description %q", lead.Description)
	}
	// No href: the listing URL is synthesized from the address.
	want := "https://example.com/search?location=4310+Avenue+G%2C+Austin%2C+TX+78751"
	if lead.ListingURL != want {
		t.Fatalf("unexpected synthesized URL %q", lead.ListingURL)
	}
}

func TestDeriveListingType(t *testing.T) {
	if got := deriveListingType("For Sale by Owner", "", models.ListingTypeBoth); got != models.ListingTypeFSBO {
		t.Fatalf("expected fsbo, got %q", got)
	}
	if got := deriveListingType("", "listed by owner, no agents please", models.ListingTypeAgent); got != models.ListingTypeFSBO {
		t.Fatalf("expected fsbo from description, got %q", got)
	}
	if got := deriveListingType("MLS Listing", "", models.ListingTypeBoth); got != models.ListingTypeAgent {
		t.Fatalf("expected agent, got %q", got)
	}
	if got := deriveListingType("", "", models.ListingTypeFSBO); got != models.ListingTypeFSBO {
		t.Fatalf("expected requested type as fallback, got %q", got)
	}
	if got := deriveListingType("", "", models.ListingTypeBoth); got != models.ListingTypeUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestParseLocalityLine(t *testing.T) {
	city, state, zip := parseLocalityLine("Austin, TX 78701")
	if city != "Austin" || state != "TX" || zip != "78701" {
		t.Fatalf("unexpected parse: %q %q %q", city, state, zip)
	}

	city, state, zip = parseLocalityLine("Salt Lake City, UT")
	if city != "Salt Lake City" || state != "UT" || zip != "" {
		t.Fatalf("unexpected parse: %q %q %q", city, state, zip)
	}

	city, state, zip = parseLocalityLine("Austin")
	if city != "Austin" || state != "" || zip != "" {
		t.Fatalf("unexpected parse: %q %q %q", city, state, zip)
	}
}

func TestStatFrom(t *testing.T) {
	stats := "3 beds 2.5 baths 1,620 sq ft"
	if got := statFrom(stats, "bed"); got != "3" {
		t.Fatalf("unexpected beds %q", got)
	}
	if got := statFrom(stats, "bath"); got != "2.5" {
		t.Fatalf("unexpected baths %q", got)
	}
	if got := statFrom(stats, "sq"); got != "1620" {
		t.Fatalf("unexpected sqft %q", got)
	}
	if got := statFrom("", "bed"); got != "" {
		t.Fatalf("expected empty stat, got %q", got)
	}
}

func TestNormalizeListingURL(t *testing.T) {
	if got := normalizeListingURL("https://other.example/x", "https://example.com", "addr"); got != "https://other.example/x" {
		t.Fatalf("absolute URL rewritten: %q", got)
	}
	if got := normalizeListingURL("/home/1", "https://example.com/", "addr"); got != "https://example.com/home/1" {
		t.Fatalf("relative URL mishandled: %q", got)
	}
	if got := normalizeListingURL("home/1", "https://example.com", "addr"); got != "https://example.com/home/1" {
		t.Fatalf("bare relative URL mishandled: %q", got)
	}
}
