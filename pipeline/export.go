package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/httputil"
)

const (
	exportPageSize        = 350
	exportReducedPageSize = 100
	exportMinBodyLen      = 100
)

// Region type codes worth trying when the resolved one is wrong or the
// resolver could not tell. The export endpoint rejects mismatched codes
// with an HTML error page rather than a status code.
var exportRegionTypes = []int{regionTypeCity, regionTypeCounty, regionTypeZip, 1, regionTypeState}

// exportFetcher pulls the structured CSV bulk export for a region. All
// failures are soft: callers get ("", false) and move down the chain.
type exportFetcher struct {
	baseURL string
	client  *http.Client
	limiter *httputil.HostLimiter
	now     func() time.Time
}

func newExportFetcher(baseURL string, clients *httputil.Clients, limiter *httputil.HostLimiter, now func() time.Time) *exportFetcher {
	return &exportFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  clients.Scraping,
		limiter: limiter,
		now:     now,
	}
}

// Fetch tries the export with the hinted region type first, then the
// alternates, then one more pass with a reduced page size.
func (f *exportFetcher) Fetch(ctx context.Context, sess *Session, reg region) (string, bool) {
	types := candidateRegionTypes(reg.Type)

	for _, pageSize := range []int{exportPageSize, exportReducedPageSize} {
		for _, regionType := range types {
			payload, ok := f.fetchOne(ctx, sess, reg.ID, regionType, pageSize)
			if ok {
				log.Printf("export: region %s type %d page size %d -> %d bytes", reg.ID, regionType, pageSize, len(payload))
				return payload, true
			}
			if ctx.Err() != nil {
				return "", false
			}
		}
	}

	log.Printf("export: all parameter variants failed for region %s", reg.ID)
	return "", false
}

func candidateRegionTypes(hint int) []int {
	types := make([]int, 0, len(exportRegionTypes)+1)
	if hint != regionTypeUnknown {
		types = append(types, hint)
	}
	for _, t := range exportRegionTypes {
		if t != hint {
			types = append(types, t)
		}
	}
	return types
}

func (f *exportFetcher) fetchOne(ctx context.Context, sess *Session, regionID string, regionType, pageSize int) (string, bool) {
	// The ts parameter is a cache-buster; stale cached exports were a real
	// failure mode for repeated acquisitions of the same region.
	exportURL := fmt.Sprintf(
		"%s/stingray/api/gis-csv?al=1&region_id=%s&region_type=%d&num_homes=%d&status=9&uipt=1,2,3,4,5,6&sf=1,2,3,5,6,7&v=8&ts=%d",
		f.baseURL, regionID, regionType, pageSize, f.now().UnixMilli(),
	)

	if err := f.limiter.WaitURL(ctx, exportURL); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return "", false
	}
	sess.Apply(req)
	req.Header.Set("Accept", "text/csv,text/plain,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		log.Printf("export: request failed (type %d): %v", regionType, err)
		return "", false
	}
	defer resp.Body.Close()
	sess.Absorb(resp)

	if resp.StatusCode != http.StatusOK {
		log.Printf("export: status %d (type %d)", resp.StatusCode, regionType)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		log.Printf("export: body read failed: %v", err)
		return "", false
	}

	payload := string(body)
	if !looksLikeCSV(payload) {
		log.Printf("export: payload rejected (type %d, %d bytes)", regionType, len(payload))
		return "", false
	}
	return payload, true
}

// looksLikeCSV applies the structural sanity checks: long enough to hold
// at least a header and a row, delimited, and not an HTML error page
// served with a 200.
func looksLikeCSV(payload string) bool {
	if len(payload) < exportMinBodyLen {
		return false
	}
	if !strings.Contains(payload, ",") {
		return false
	}
	head := payload
	if len(head) > 256 {
		head = head[:256]
	}
	head = strings.ToLower(head)
	if strings.Contains(head, "<!doctype") || strings.Contains(head, "<html") {
		return false
	}
	return true
}
