package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/KeldrickD/deal-genie-sub000/httputil"
)

// Region type codes as the marketplace's export endpoint understands them.
const (
	regionTypeCity    = 6
	regionTypeCounty  = 5
	regionTypeZip     = 2
	regionTypeState   = 4
	regionTypeUnknown = 0
)

// region is a resolved geographic scope for the export endpoint.
type region struct {
	ID   string
	Type int
	URL  string // canonical search URL when one was discovered
}

func (r region) ok() bool { return r.ID != "" }

// idPattern pairs a URL/markup regex with the region type it implies.
// Patterns are tried in order; city is checked first because it is the
// most specific match for a "City, State" query.
type idPattern struct {
	re         *regexp.Regexp
	regionType int
}

var urlPatterns = []idPattern{
	{regexp.MustCompile(`/city/(\d+)(?:/|$)`), regionTypeCity},
	{regexp.MustCompile(`/county/(\d+)(?:/|$)`), regionTypeCounty},
	{regexp.MustCompile(`/zipcode/(\d+)(?:/|$)`), regionTypeZip},
}

// The page-body cascade covers the spellings of "region id" observed in
// inline scripts and data attributes across layout revisions.
var bodyPatterns = []idPattern{
	{regexp.MustCompile(`"regionId"\s*:\s*(\d+)`), regionTypeUnknown},
	{regexp.MustCompile(`"region_id"\s*:\s*(\d+)`), regionTypeUnknown},
	{regexp.MustCompile(`regionId=(\d+)`), regionTypeUnknown},
	{regexp.MustCompile(`region_id=(\d+)`), regionTypeUnknown},
	{regexp.MustCompile(`data-region-id="(\d+)"`), regionTypeUnknown},
}

// locationResolver turns "City, State" into a region identifier via three
// nested strategies: autocomplete lookup, direct URL probing, then regex
// extraction from a fetched page body. It never returns an error; a zero
// region means resolution failed and the caller falls through.
type locationResolver struct {
	baseURL string
	clients *httputil.Clients
	limiter *httputil.HostLimiter
}

func newLocationResolver(baseURL string, clients *httputil.Clients, limiter *httputil.HostLimiter) *locationResolver {
	return &locationResolver{baseURL: strings.TrimRight(baseURL, "/"), clients: clients, limiter: limiter}
}

func (r *locationResolver) Resolve(ctx context.Context, sess *Session, city, state string) region {
	if reg := r.resolveViaAutocomplete(ctx, sess, city, state); reg.ok() {
		log.Printf("location: autocomplete resolved %s, %s -> region %s (type %d)", city, state, reg.ID, reg.Type)
		return reg
	}

	if reg := r.resolveViaURLProbe(ctx, sess, city, state); reg.ok() {
		log.Printf("location: URL probe resolved %s, %s -> region %s (type %d)", city, state, reg.ID, reg.Type)
		return reg
	}

	log.Printf("location: could not resolve %s, %s", city, state)
	return region{}
}

// autocompleteResponse mirrors the suggestion endpoint's payload. The body
// arrives with a `{}&&` anti-hijack prefix that must be stripped first.
type autocompleteResponse struct {
	Payload struct {
		Sections []struct {
			Rows []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"rows"`
		} `json:"sections"`
	} `json:"payload"`
}

func (r *locationResolver) resolveViaAutocomplete(ctx context.Context, sess *Session, city, state string) region {
	query := fmt.Sprintf("%s, %s", city, state)
	endpoint := fmt.Sprintf("%s/stingray/do/location-autocomplete?location=%s&v=2&al=1",
		r.baseURL, url.QueryEscape(query))

	body, resp, err := r.get(ctx, sess, r.clients.Scraping, endpoint)
	if err != nil {
		log.Printf("location: autocomplete request failed: %v", err)
		return region{}
	}
	sess.Absorb(resp)

	text := strings.TrimPrefix(string(body), "{}&&")
	var parsed autocompleteResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		log.Printf("location: autocomplete payload unparseable: %v", err)
		return region{}
	}

	type row struct {
		id, name, typ, u string
	}
	var firstCity *row
	var exact *row
	for _, section := range parsed.Payload.Sections {
		for _, rw := range section.Rows {
			cand := row{rw.ID, rw.Name, rw.Type, rw.URL}
			if strings.EqualFold(strings.TrimSpace(rw.Name), query) && exact == nil {
				exact = &cand
			}
			if isCityRow(rw.Type) && firstCity == nil {
				firstCity = &cand
			}
		}
	}

	pick := exact
	if pick == nil {
		pick = firstCity
	}
	if pick == nil {
		return region{}
	}

	id, regionType := splitSuggestionID(pick.id)
	if id == "" {
		return region{}
	}
	canonical := pick.u
	if canonical != "" && !strings.HasPrefix(canonical, "http") {
		canonical = r.baseURL + canonical
	}
	return region{ID: id, Type: regionType, URL: canonical}
}

// isCityRow accepts both the numeric and spelled-out type codes the
// suggestion endpoint has been seen returning.
func isCityRow(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "2", "city":
		return true
	}
	return false
}

// splitSuggestionID decodes identifiers shaped like "2_30818" where the
// prefix encodes the place kind and the suffix is the region number.
func splitSuggestionID(id string) (string, int) {
	parts := strings.SplitN(id, "_", 2)
	if len(parts) == 2 {
		switch parts[0] {
		case "2":
			return parts[1], regionTypeCity
		case "1":
			return parts[1], regionTypeCounty
		case "4":
			return parts[1], regionTypeState
		default:
			return parts[1], regionTypeUnknown
		}
	}
	if id != "" && allDigits(id) {
		return id, regionTypeUnknown
	}
	return "", regionTypeUnknown
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (r *locationResolver) resolveViaURLProbe(ctx context.Context, sess *Session, city, state string) region {
	for _, candidate := range r.probeURLs(city, state) {
		reg := r.probeOne(ctx, sess, candidate)
		if reg.ok() {
			return reg
		}
	}
	return region{}
}

// probeURLs lists directly constructed path-convention URLs worth trying.
func (r *locationResolver) probeURLs(city, state string) []string {
	slug := citySlug(city)
	st := strings.ToLower(strings.TrimSpace(state))
	return []string{
		fmt.Sprintf("%s/%s/%s", r.baseURL, strings.ToUpper(st), slug),
		fmt.Sprintf("%s/%s/%s", r.baseURL, st, slug),
		fmt.Sprintf("%s/city/%s/%s", r.baseURL, strings.ToUpper(st), slug),
	}
}

func (r *locationResolver) probeOne(ctx context.Context, sess *Session, candidate string) region {
	body, resp, err := r.get(ctx, sess, r.clients.Probe, candidate)
	if err != nil {
		log.Printf("location: probe %s failed: %v", candidate, err)
		return region{}
	}
	sess.Absorb(resp)

	// The probe client follows the chain up to its cap, so in the normal
	// case the final URL is canonical; an identifier embedded there beats
	// anything in the page body.
	finalURL := candidate
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	for _, p := range urlPatterns {
		if m := p.re.FindStringSubmatch(finalURL); m != nil {
			return region{ID: m[1], Type: p.regionType, URL: finalURL}
		}
	}

	// A site stuck redirecting still names the canonical URL in Location.
	if resp != nil && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		for _, p := range urlPatterns {
			if m := p.re.FindStringSubmatch(loc); m != nil {
				if strings.HasPrefix(loc, "/") {
					loc = r.baseURL + loc
				}
				return region{ID: m[1], Type: p.regionType, URL: loc}
			}
		}
		return region{}
	}

	if resp != nil && resp.StatusCode != http.StatusOK {
		return region{}
	}
	return extractRegionFromBody(string(body), finalURL)
}

// extractRegionFromBody runs the markup/script regex cascade, stopping at
// the first pattern that yields an identifier.
func extractRegionFromBody(body, pageURL string) region {
	for _, p := range bodyPatterns {
		if m := p.re.FindStringSubmatch(body); m != nil {
			regionType := p.regionType
			if regionType == regionTypeUnknown {
				regionType = regionTypeCity
			}
			return region{ID: m[1], Type: regionType, URL: pageURL}
		}
	}
	return region{}
}

func (r *locationResolver) get(ctx context.Context, sess *Session, client *http.Client, rawURL string) ([]byte, *http.Response, error) {
	if err := r.limiter.WaitURL(ctx, rawURL); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	sess.Apply(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp, err
	}
	return body, resp, nil
}

func citySlug(city string) string {
	slug := strings.TrimSpace(city)
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug
}
