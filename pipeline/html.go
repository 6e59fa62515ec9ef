package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/KeldrickD/deal-genie-sub000/httputil"
	"github.com/KeldrickD/deal-genie-sub000/models"
)

// htmlExtractor parses rendered result pages when the export path fails.
// Three independent passes, most structured first: an embedded JSON blob
// in inline script content, listing cards via the primary selector set,
// then any listing-shaped link as a last resort.
type htmlExtractor struct {
	baseURL string
	client  *http.Client
	limiter *httputil.HostLimiter
}

func newHTMLExtractor(baseURL string, clients *httputil.Clients, limiter *httputil.HostLimiter) *htmlExtractor {
	return &htmlExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  clients.Scraping,
		limiter: limiter,
	}
}

// FetchPage retrieves a search results page for the attempt, preferring
// the canonical region URL when the resolver found one.
func (e *htmlExtractor) FetchPage(ctx context.Context, sess *Session, reg region, city, state string) (string, bool) {
	pageURL := reg.URL
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/%s/%s", e.baseURL, strings.ToUpper(strings.TrimSpace(state)), citySlug(city))
	}

	if err := e.limiter.WaitURL(ctx, pageURL); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false
	}
	sess.Apply(req)

	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("html: page fetch failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()
	sess.Absorb(resp)

	if resp.StatusCode != http.StatusOK {
		log.Printf("html: page fetch status %d for %s", resp.StatusCode, pageURL)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", false
	}
	return string(body), true
}

// Markers that precede the embedded result array in inline script
// content, tried in order across known page revisions.
var embeddedMarkers = []string{
	`"homes":`,
	`"searchResults":`,
	`"listings":`,
}

// ExtractEmbedded locates a structured-data assignment inside script
// content and decodes it into raw records.
func (e *htmlExtractor) ExtractEmbedded(page string) []models.RawRecord {
	for _, marker := range embeddedMarkers {
		idx := strings.Index(page, marker)
		if idx < 0 {
			continue
		}
		blob := extractJSONValue(page[idx+len(marker):])
		if blob == "" {
			continue
		}

		items := decodeEmbeddedItems(blob)
		if len(items) == 0 {
			continue
		}

		records := make([]models.RawRecord, 0, len(items))
		for _, item := range items {
			records = append(records, models.RawRecord{Kind: models.RecordKindJSON, Object: item})
		}
		log.Printf("html: embedded blob at %q yielded %d records", marker, len(records))
		return records
	}
	return nil
}

// decodeEmbeddedItems accepts either a bare array of listing objects or a
// wrapper object holding one under a conventional key.
func decodeEmbeddedItems(blob string) []map[string]interface{} {
	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &items); err == nil {
		return items
	}

	var wrapper map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &wrapper); err != nil {
		return nil
	}
	for _, key := range []string{"homes", "listings", "results"} {
		arr, ok := wrapper[key].([]interface{})
		if !ok {
			continue
		}
		for _, v := range arr {
			if obj, ok := v.(map[string]interface{}); ok {
				items = append(items, obj)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// extractJSONValue returns the balanced JSON array or object starting at
// the first bracket in s. Bracket matching is done by hand because the
// blob nests arbitrarily and a non-greedy regex cannot be trusted with it.
func extractJSONValue(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '[' || c == '{' {
			start = i
			open = c
			close = '}'
			if c == '[' {
				close = ']'
			}
			break
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return ""
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Primary selector set for listing cards. Test attributes are preferred
// over class names since classes churn with every front-end release.
var cardSelectors = []string{
	"[data-rf-test-id='mapHomeCard']",
	"div.HomeCardContainer",
	"div.MapHomeCardReact",
}

// ExtractCards parses listing cards out of the rendered markup.
func (e *htmlExtractor) ExtractCards(page string) []models.RawRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		log.Printf("html: document parse failed: %v", err)
		return nil
	}

	var records []models.RawRecord
	for _, selector := range cardSelectors {
		doc.Find(selector).Each(func(_ int, card *goquery.Selection) {
			rec, ok := recordFromCard(card)
			if ok {
				records = append(records, rec)
			}
		})
		if len(records) > 0 {
			log.Printf("html: selector %q yielded %d cards", selector, len(records))
			break
		}
	}
	return records
}

func recordFromCard(card *goquery.Selection) (models.RawRecord, bool) {
	rec := models.RawRecord{Kind: models.RecordKindDOM}

	rec.AddressLine = firstText(card,
		"[data-rf-test-id='abp-streetLine']",
		".homeAddressV2",
		".street-address",
		".address")
	rec.LocalityLine = firstText(card,
		"[data-rf-test-id='abp-cityStateZip']",
		".cityStateZip",
		".locality")
	rec.PriceText = firstText(card,
		"[data-rf-test-id='abp-homeinfo-homeprice']",
		".homecardV2Price",
		".price")
	rec.StatsText = firstText(card, ".HomeStatsV2", ".stats")
	rec.RemarksText = firstText(card, ".remarks", ".description")

	if href, ok := card.Find("a[href]").First().Attr("href"); ok {
		rec.Href = href
	}

	// Cards missing the required fields are skipped, not fatal.
	if rec.AddressLine == "" || rec.PriceText == "" {
		return models.RawRecord{}, false
	}
	return rec, true
}

func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

var priceInTextRegex = regexp.MustCompile(`\$[\d,]+`)

// ExtractGeneric falls back to any link whose href matches the
// listing-detail URL shape, pulling only what that narrow context offers.
func (e *htmlExtractor) ExtractGeneric(page string) []models.RawRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var records []models.RawRecord
	doc.Find("a[href*='/home/']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if href == "" || seen[href] {
			return
		}
		seen[href] = true

		address := strings.TrimSpace(link.Text())
		surrounding := strings.TrimSpace(link.Parent().Text())
		price := priceInTextRegex.FindString(surrounding)

		if address == "" || price == "" {
			return
		}

		records = append(records, models.RawRecord{
			Kind:        models.RecordKindDOM,
			AddressLine: address,
			PriceText:   price,
			Href:        href,
		})
	})

	if len(records) > 0 {
		log.Printf("html: generic selector yielded %d records", len(records))
	}
	return records
}
