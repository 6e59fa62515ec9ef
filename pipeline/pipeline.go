package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/config"
	"github.com/KeldrickD/deal-genie-sub000/httputil"
	"github.com/KeldrickD/deal-genie-sub000/models"
)

const defaultMaxResults = 50

// Request describes one acquisition call.
type Request struct {
	City        string
	State       string
	Keywords    []string
	ListingType models.ListingType
	MaxRetries  int
}

// Result is what every Acquire call returns. There is no error: the
// terminal mock fallback guarantees a result, and Degraded tells callers
// they got synthetic data instead of live listings.
type Result struct {
	Leads     []models.Lead
	Degraded  bool
	Strategy  string
	Attempts  int
	Found     int
	Discarded int
}

// Archiver receives raw payloads for offline schema-drift debugging.
type Archiver interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Pipeline drives the acquisition chain: resolve location, pull the bulk
// export, fall back to HTML extraction, retry the whole chain with linear
// backoff, and finally synthesize mock leads. Strategies run strictly
// sequentially; each attempt gets a fresh Session.
type Pipeline struct {
	cfg       config.PipelineConfig
	clients   *httputil.Clients
	limiter   *httputil.HostLimiter
	resolver  *locationResolver
	fetcher   *exportFetcher
	extractor *htmlExtractor
	archiver  Archiver

	// Injection points for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(cfg config.PipelineConfig, clients *httputil.Clients) *Pipeline {
	limiter := httputil.NewHostLimiter(cfg.RatePerSec, cfg.RateBurst)
	now := time.Now

	p := &Pipeline{
		cfg:     cfg,
		clients: clients,
		limiter: limiter,
		sleep:   sleepContext,
		now:     now,
	}
	p.resolver = newLocationResolver(cfg.BaseURL, clients, limiter)
	p.fetcher = newExportFetcher(cfg.BaseURL, clients, limiter, func() time.Time { return p.now() })
	p.extractor = newHTMLExtractor(cfg.BaseURL, clients, limiter)
	return p
}

// SetArchiver enables best-effort raw payload archiving.
func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// strategies returns the chain in its fixed priority order. The order is
// the contract: export before any HTML pass, embedded JSON before cards,
// cards before the generic selector.
func (p *Pipeline) strategies() []Strategy {
	return []Strategy{
		exportStrategy{p},
		htmlEmbeddedStrategy{p},
		htmlCardsStrategy{p},
		htmlGenericStrategy{p},
	}
}

// Acquire runs the full chain for one request. It never returns an error;
// when every live strategy and retry is exhausted it returns the
// deterministic mock set with Degraded set.
func (p *Pipeline) Acquire(ctx context.Context, req Request) Result {
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = p.cfg.MaxRetries
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	strategies := p.strategies()

	attempts := 0
	for attemptN := 1; attemptN <= maxRetries; attemptN++ {
		attempts = attemptN
		att := &attempt{
			req:       req,
			session:   NewSession(p.cfg.UserAgent),
			resolver:  p.resolver,
			extractor: p.extractor,
		}

		for _, strat := range strategies {
			if ctx.Err() != nil {
				break
			}

			records := strat.Attempt(ctx, att)
			if len(records) == 0 {
				continue
			}

			leads, discarded := p.assemble(records, req)
			log.Printf("pipeline: %s yielded %d records, %d leads after filters (%d discarded)",
				strat.Name(), len(records), len(leads), discarded)

			if len(leads) > 0 {
				return Result{
					Leads:     leads,
					Strategy:  strat.Name(),
					Attempts:  attemptN,
					Found:     len(records),
					Discarded: discarded,
				}
			}
		}

		if ctx.Err() != nil {
			log.Printf("pipeline: context done, abandoning retries: %v", ctx.Err())
			break
		}

		if attemptN < maxRetries {
			// Linear backoff: attempt number times the base delay.
			delay := time.Duration(attemptN) * p.cfg.RetryBaseDelay
			log.Printf("pipeline: attempt %d/%d produced nothing, retrying in %s", attemptN, maxRetries, delay)
			if err := p.sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	log.Printf("pipeline: all strategies exhausted for %s, %s; returning mock fallback", req.City, req.State)
	mocks := applyFilters(p.mockLeads(req, p.now()), req.Keywords, req.ListingType)
	return Result{
		Leads:    capLeads(mocks, p.maxResults()),
		Degraded: true,
		Strategy: "mock",
		Attempts: attempts,
	}
}

// assemble normalizes raw records into Leads, applies the keyword and
// listing-type filters, and caps the result set.
func (p *Pipeline) assemble(records []models.RawRecord, req Request) ([]models.Lead, int) {
	now := p.now()
	leads := make([]models.Lead, 0, len(records))
	discarded := 0
	for _, rec := range records {
		lead, ok := normalizeRecord(rec, req, p.cfg.BaseURL, now)
		if !ok {
			discarded++
			continue
		}
		leads = append(leads, lead)
	}

	leads = applyFilters(leads, req.Keywords, req.ListingType)
	return capLeads(leads, p.maxResults()), discarded
}

func (p *Pipeline) maxResults() int {
	if p.cfg.MaxResults > 0 {
		return p.cfg.MaxResults
	}
	return defaultMaxResults
}

func capLeads(leads []models.Lead, limit int) []models.Lead {
	if len(leads) > limit {
		return leads[:limit]
	}
	return leads
}

// archivePayload ships a raw payload to the archive, if one is wired.
// Failures are logged and swallowed; archiving never affects acquisition.
func (p *Pipeline) archivePayload(ctx context.Context, kind, scope, payload, contentType string) {
	if p.archiver == nil {
		return
	}
	key := fmt.Sprintf("raw/%s/%s/%d", kind, sanitizeKey(scope), p.now().UnixMilli())
	if err := p.archiver.Upload(ctx, key, strings.NewReader(payload), contentType); err != nil {
		log.Printf("archive: upload %s failed: %v", key, err)
	}
}

func sanitizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	if s == "" {
		return "unknown"
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
