package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

// mockListing is one deterministic placeholder returned when every live
// strategy is exhausted. Descriptions read like typical distressed-seller
// remarks so that common investor keywords still match.
type mockListing struct {
	number      int
	street      string
	price       float64
	dom         int
	description string
}

var mockListings = []mockListing{
	{123, "Maple Street", 185000, 12, "Motivated seller, priced below market. Needs TLC but great bones."},
	{456, "Oak Avenue", 229900, 34, "Estate sale, sold as-is. Investor special with solid rental history."},
	{789, "Cedar Lane", 310000, 8, "Fixer upper on a quiet street. Cash offers preferred, quick close."},
	{1012, "Pine Road", 274500, 45, "Handyman special. Seller relocating and must sell this month."},
	{1344, "Elm Court", 198750, 21, "Probate property, bring all offers. As-is where-is."},
}

// mockLeads synthesizes the deterministic fallback set for a request.
// Addresses follow "<n> <Street>, <City>, <State>" and the provenance tag
// is distinct from live results so callers can detect degraded output.
func (p *Pipeline) mockLeads(req Request, now time.Time) []models.Lead {
	leads := make([]models.Lead, 0, len(mockListings))
	for _, m := range mockListings {
		street := fmt.Sprintf("%d %s", m.number, m.street)
		address := composeAddress(street, req.City, req.State, "")

		listingType := req.ListingType
		if listingType == models.ListingTypeBoth {
			listingType = models.ListingTypeUnknown
		}

		leads = append(leads, models.Lead{
			ID:           uuid.New(),
			Address:      address,
			City:         req.City,
			State:        req.State,
			Price:        m.price,
			DaysOnMarket: m.dom,
			Description:  m.description,
			Source:       models.SourceMock,
			ListingURL:   normalizeListingURL("", p.cfg.BaseURL, address),
			ListingType:  listingType,
			CreatedAt:    now,
		})
	}
	return leads
}
