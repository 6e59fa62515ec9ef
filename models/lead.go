package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ListingType distinguishes who is selling the property.
type ListingType string

const (
	ListingTypeFSBO    ListingType = "fsbo"
	ListingTypeAgent   ListingType = "agent"
	ListingTypeBoth    ListingType = "both"
	ListingTypeUnknown ListingType = ""
)

// Lead provenance tags. SourceMock marks synthesized fallback data so
// downstream consumers can tell degraded results apart from live ones.
const (
	SourceMarketplace = "marketplace"
	SourceMock        = "mock"
)

// Lead is the canonical normalized listing record produced by the
// acquisition pipeline. Leads are immutable once constructed.
type Lead struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Address         string      `json:"address" db:"address"`
	City            string      `json:"city" db:"city"`
	State           string      `json:"state" db:"state"`
	Zipcode         string      `json:"zipcode" db:"zipcode"`
	Price           float64     `json:"price" db:"price"`
	DaysOnMarket    int         `json:"days_on_market" db:"days_on_market"`
	Description     string      `json:"description" db:"description"`
	Source          string      `json:"source" db:"source"`
	KeywordsMatched []string    `json:"keywords_matched" db:"keywords_matched"`
	ListingURL      string      `json:"listing_url" db:"listing_url"`
	PropertyType    string      `json:"property_type" db:"property_type"`
	ListingType     ListingType `json:"listing_type" db:"listing_type"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// RawRecordKind tags which extraction path produced a raw record.
type RawRecordKind string

const (
	RecordKindCSV  RawRecordKind = "csv"
	RecordKindJSON RawRecordKind = "json"
	RecordKindDOM  RawRecordKind = "dom"
)

// RawRecord is the pre-normalization union of every shape the extractors
// produce: a CSV row keyed by canonical field, an embedded-JSON object, or
// a handful of strings pulled off a listing card. Exactly one of the
// shape-specific fields is populated, per Kind.
type RawRecord struct {
	Kind RawRecordKind

	// CSV: canonical field name -> raw cell value.
	Fields map[string]string

	// JSON: the decoded embedded object.
	Object map[string]interface{}

	// DOM: text fragments scraped off a card.
	AddressLine  string
	LocalityLine string
	PriceText    string
	StatsText    string
	Href         string
	RemarksText  string
}

// Canonical field names used by the CSV parser and normalizer.
const (
	FieldStreet       = "street"
	FieldCity         = "city"
	FieldState        = "state"
	FieldZip          = "zip"
	FieldPrice        = "price"
	FieldBeds         = "beds"
	FieldBaths        = "baths"
	FieldSqFt         = "sqft"
	FieldDaysOnMarket = "days_on_market"
	FieldURL          = "url"
	FieldPropertyType = "property_type"
	FieldSaleType     = "sale_type"
	FieldDescription  = "description"
)

// MarshalKeywords renders the matched-keyword set for storage columns.
func (l *Lead) MarshalKeywords() string {
	if len(l.KeywordsMatched) == 0 {
		return "[]"
	}
	data, err := json.Marshal(l.KeywordsMatched)
	if err != nil {
		return "[]"
	}
	return string(data)
}
