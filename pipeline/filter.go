package pipeline

import (
	"strings"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

// matchKeywords returns the subset of keywords appearing (case-insensitive)
// in the lead's address or description.
func matchKeywords(lead models.Lead, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	haystack := strings.ToLower(lead.Address + " " + lead.Description)
	var matched []string
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// applyFilters annotates each lead with its matched keywords and enforces
// the caller's constraints. With keywords supplied, only leads matching at
// least one survive; with none, every lead passes with an empty matched
// set. Leads whose listing type determinably contradicts the requested
// filter are dropped; indeterminate ones pass.
func applyFilters(leads []models.Lead, keywords []string, listingType models.ListingType) []models.Lead {
	filtered := make([]models.Lead, 0, len(leads))
	for _, lead := range leads {
		if !listingTypeAllowed(lead.ListingType, listingType) {
			continue
		}

		if len(keywords) > 0 {
			matched := matchKeywords(lead, keywords)
			if len(matched) == 0 {
				continue
			}
			lead.KeywordsMatched = matched
		} else {
			lead.KeywordsMatched = nil
		}

		filtered = append(filtered, lead)
	}
	return filtered
}

func listingTypeAllowed(actual, requested models.ListingType) bool {
	if requested == models.ListingTypeBoth || requested == models.ListingTypeUnknown {
		return true
	}
	if actual == models.ListingTypeUnknown {
		return true
	}
	return actual == requested
}
