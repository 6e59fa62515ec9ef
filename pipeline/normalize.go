package pipeline

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

// normalizeRecord funnels every raw record shape into one Lead. It
// returns false when the record cannot satisfy the Lead invariants:
// street and city must be non-empty and the price must parse positive.
func normalizeRecord(rec models.RawRecord, req Request, baseURL string, now time.Time) (models.Lead, bool) {
	var parts recordParts
	switch rec.Kind {
	case models.RecordKindCSV:
		parts = partsFromCSV(rec.Fields)
	case models.RecordKindJSON:
		parts = partsFromJSON(rec.Object)
	case models.RecordKindDOM:
		parts = partsFromDOM(rec)
	default:
		return models.Lead{}, false
	}

	// Best-effort city/state, falling back to what the caller asked for.
	if parts.city == "" {
		parts.city = strings.TrimSpace(req.City)
	}
	if parts.state == "" {
		parts.state = strings.TrimSpace(req.State)
	}

	if strings.TrimSpace(parts.street) == "" || strings.TrimSpace(parts.city) == "" {
		return models.Lead{}, false
	}

	price, ok := parsePrice(parts.priceText)
	if !ok {
		return models.Lead{}, false
	}

	address := composeAddress(parts.street, parts.city, parts.state, parts.zip)

	description := strings.TrimSpace(parts.description)
	if description == "" {
		description = synthesizeDescription(parts.beds, parts.baths, parts.sqft)
	}

	listingURL := normalizeListingURL(parts.href, baseURL, address)

	return models.Lead{
		ID:           uuid.New(),
		Address:      address,
		City:         parts.city,
		State:        parts.state,
		Zipcode:      parts.zip,
		Price:        price,
		DaysOnMarket: parseDaysOnMarket(parts.domText),
		Description:  description,
		Source:       models.SourceMarketplace,
		ListingURL:   listingURL,
		PropertyType: parts.propertyType,
		ListingType:  deriveListingType(parts.saleTypeHint, description, req.ListingType),
		CreatedAt:    now,
	}, true
}

// recordParts is the shape-independent intermediate every source reduces
// to before the shared composition logic runs.
type recordParts struct {
	street       string
	city         string
	state        string
	zip          string
	priceText    string
	domText      string
	description  string
	href         string
	propertyType string
	saleTypeHint string
	beds         string
	baths        string
	sqft         string
}

func partsFromCSV(fields map[string]string) recordParts {
	return recordParts{
		street:       fields[models.FieldStreet],
		city:         fields[models.FieldCity],
		state:        fields[models.FieldState],
		zip:          fields[models.FieldZip],
		priceText:    fields[models.FieldPrice],
		domText:      fields[models.FieldDaysOnMarket],
		description:  fields[models.FieldDescription],
		href:         fields[models.FieldURL],
		propertyType: fields[models.FieldPropertyType],
		saleTypeHint: fields[models.FieldSaleType],
		beds:         fields[models.FieldBeds],
		baths:        fields[models.FieldBaths],
		sqft:         fields[models.FieldSqFt],
	}
}

func partsFromJSON(obj map[string]interface{}) recordParts {
	return recordParts{
		street:       jsonString(obj, "streetLine", "streetAddress", "address"),
		city:         jsonString(obj, "city"),
		state:        jsonString(obj, "state", "stateCode"),
		zip:          jsonString(obj, "zip", "zipCode", "postalCode"),
		priceText:    jsonString(obj, "price", "listPrice"),
		domText:      jsonString(obj, "daysOnMarket", "dom", "timeOnMarket"),
		description:  jsonString(obj, "remarks", "listingRemarks", "description"),
		href:         jsonString(obj, "url", "detailUrl"),
		propertyType: jsonString(obj, "propertyType", "uiPropertyType"),
		saleTypeHint: jsonString(obj, "sellerType", "saleType", "mlsStatus"),
		beds:         jsonString(obj, "beds", "bedrooms"),
		baths:        jsonString(obj, "baths", "bathrooms"),
		sqft:         jsonString(obj, "sqFt", "sqft", "squareFeet"),
	}
}

func partsFromDOM(rec models.RawRecord) recordParts {
	city, state, zip := parseLocalityLine(rec.LocalityLine)
	return recordParts{
		street:      rec.AddressLine,
		city:        city,
		state:       state,
		zip:         zip,
		priceText:   rec.PriceText,
		description: rec.RemarksText,
		href:        rec.Href,
		beds:        statFrom(rec.StatsText, "bed"),
		baths:       statFrom(rec.StatsText, "bath"),
		sqft:        statFrom(rec.StatsText, "sq"),
	}
}

// jsonString reads the first present key as a string, tolerating numeric
// values and the {"value": ...} wrapping some page revisions use.
func jsonString(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				return strings.TrimSpace(val)
			}
		case float64:
			if val == math.Trunc(val) {
				return strconv.FormatInt(int64(val), 10)
			}
			return strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(val)
		case map[string]interface{}:
			if inner := jsonString(val, "value", "text"); inner != "" {
				return inner
			}
		}
	}
	return ""
}

var nonPriceChars = regexp.MustCompile(`[^0-9.]`)

// parsePrice strips currency formatting and requires a positive finite
// number. Unparseable prices discard the record; a zero-price Lead is
// worse than no Lead.
func parsePrice(text string) (float64, bool) {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, false
	}
	return price, true
}

var leadingIntRegex = regexp.MustCompile(`\d+`)

func parseDaysOnMarket(text string) int {
	m := leadingIntRegex.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// composeAddress joins street, "city, state" and zip, skipping absent
// parts. Callers guarantee street and city are present.
func composeAddress(street, city, state, zip string) string {
	parts := []string{strings.TrimSpace(street), strings.TrimSpace(city)}
	if s := strings.TrimSpace(state); s != "" {
		parts = append(parts, s)
	}
	address := strings.Join(parts, ", ")
	if z := strings.TrimSpace(zip); z != "" {
		address += " " + z
	}
	return address
}

func synthesizeDescription(beds, baths, sqft string) string {
	var parts []string
	if b := strings.TrimSpace(beds); b != "" {
		parts = append(parts, b+" bed")
	}
	if b := strings.TrimSpace(baths); b != "" {
		parts = append(parts, b+" bath")
	}
	if s := strings.TrimSpace(sqft); s != "" {
		parts = append(parts, s+" sqft")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}

// normalizeListingURL keeps an absolute source URL, resolves a relative
// one against the marketplace base, and synthesizes a search URL from the
// composed address when the source offers nothing.
func normalizeListingURL(href, baseURL, address string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base := strings.TrimRight(baseURL, "/")
	if href != "" {
		if !strings.HasPrefix(href, "/") {
			href = "/" + href
		}
		return base + href
	}
	return fmt.Sprintf("%s/search?location=%s", base, url.QueryEscape(address))
}

// deriveListingType inspects source fields for seller hints and falls
// back to the caller's requested filter when the source cannot tell.
func deriveListingType(hint, description string, requested models.ListingType) models.ListingType {
	combined := strings.ToLower(hint + " " + description)
	switch {
	case strings.Contains(combined, "fsbo"),
		strings.Contains(combined, "by owner"),
		strings.Contains(combined, "for sale by owner"):
		return models.ListingTypeFSBO
	case strings.Contains(strings.ToLower(hint), "agent"),
		strings.Contains(strings.ToLower(hint), "mls"),
		strings.Contains(strings.ToLower(hint), "broker"):
		return models.ListingTypeAgent
	}
	if requested == models.ListingTypeFSBO || requested == models.ListingTypeAgent {
		return requested
	}
	return models.ListingTypeUnknown
}

// parseLocalityLine splits "Austin, TX 78701" into its components.
func parseLocalityLine(line string) (city, state, zip string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", ""
	}

	if idx := strings.LastIndex(line, ","); idx >= 0 {
		city = strings.TrimSpace(line[:idx])
		rest := strings.Fields(strings.TrimSpace(line[idx+1:]))
		if len(rest) > 0 {
			state = rest[0]
		}
		if len(rest) > 1 {
			zip = rest[1]
		}
		return city, state, zip
	}
	return line, "", ""
}

var statRegex = regexp.MustCompile(`([\d,.]+)\s*`)

// statFrom pulls the number immediately preceding a unit word out of a
// card's stats text, e.g. "3 beds 2 baths 1,500 sq ft".
func statFrom(stats, unit string) string {
	lower := strings.ToLower(stats)
	idx := strings.Index(lower, unit)
	if idx <= 0 {
		return ""
	}
	prefix := strings.TrimSpace(lower[:idx])
	matches := statRegex.FindAllString(prefix, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.ReplaceAll(strings.TrimSpace(matches[len(matches)-1]), ",", "")
}
