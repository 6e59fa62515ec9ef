package pipeline

import (
	"context"
	"log"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

// Strategy is one acquisition approach. Implementations fail soft: they
// return zero records and let the orchestrator move down the chain.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, att *attempt) []models.RawRecord
}

// attempt is the state shared by strategies within one pass of the chain.
// Region resolution and the search-page fetch happen at most once per
// attempt, no matter how many strategies need them.
type attempt struct {
	req     Request
	session *Session

	resolver  *locationResolver
	extractor *htmlExtractor

	regionResolved bool
	region         region

	pageFetched bool
	pageOK      bool
	page        string
}

func (a *attempt) resolveRegion(ctx context.Context) region {
	if !a.regionResolved {
		a.region = a.resolver.Resolve(ctx, a.session, a.req.City, a.req.State)
		a.regionResolved = true
	}
	return a.region
}

func (a *attempt) searchPage(ctx context.Context) (string, bool) {
	if !a.pageFetched {
		// The page is fetched even without a resolved region; the path
		// convention URL is often enough.
		a.resolveRegion(ctx)
		a.page, a.pageOK = a.extractor.FetchPage(ctx, a.session, a.region, a.req.City, a.req.State)
		a.pageFetched = true
	}
	return a.page, a.pageOK
}

// exportStrategy is the preferred path: resolve a region, pull the CSV
// bulk export, parse it tolerantly.
type exportStrategy struct {
	p *Pipeline
}

func (s exportStrategy) Name() string { return "export" }

func (s exportStrategy) Attempt(ctx context.Context, att *attempt) []models.RawRecord {
	reg := att.resolveRegion(ctx)
	if !reg.ok() {
		log.Printf("export: no region identifier, skipping export path")
		return nil
	}

	payload, ok := s.p.fetcher.Fetch(ctx, att.session, reg)
	if !ok {
		return nil
	}
	s.p.archivePayload(ctx, "export", reg.ID, payload, "text/csv")

	rows := parseCSVRows(payload)
	if len(rows) == 0 {
		log.Printf("export: payload parsed to zero rows")
		return nil
	}

	records := make([]models.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.RawRecord{Kind: models.RecordKindCSV, Fields: row})
	}
	return records
}

// htmlEmbeddedStrategy looks for the structured-data blob inside the
// search page's inline scripts.
type htmlEmbeddedStrategy struct {
	p *Pipeline
}

func (s htmlEmbeddedStrategy) Name() string { return "html-embedded" }

func (s htmlEmbeddedStrategy) Attempt(ctx context.Context, att *attempt) []models.RawRecord {
	page, ok := att.searchPage(ctx)
	if !ok {
		return nil
	}
	records := s.p.extractor.ExtractEmbedded(page)
	if len(records) > 0 {
		s.p.archivePayload(ctx, "html", att.req.City, page, "text/html")
	}
	return records
}

// htmlCardsStrategy parses listing cards with the primary selector set.
type htmlCardsStrategy struct {
	p *Pipeline
}

func (s htmlCardsStrategy) Name() string { return "html-cards" }

func (s htmlCardsStrategy) Attempt(ctx context.Context, att *attempt) []models.RawRecord {
	page, ok := att.searchPage(ctx)
	if !ok {
		return nil
	}
	return s.p.extractor.ExtractCards(page)
}

// htmlGenericStrategy scrapes whatever listing-shaped links remain.
type htmlGenericStrategy struct {
	p *Pipeline
}

func (s htmlGenericStrategy) Name() string { return "html-generic" }

func (s htmlGenericStrategy) Attempt(ctx context.Context, att *attempt) []models.RawRecord {
	page, ok := att.searchPage(ctx)
	if !ok {
		return nil
	}
	return s.p.extractor.ExtractGeneric(page)
}
