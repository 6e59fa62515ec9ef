package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/config"
	"github.com/KeldrickD/deal-genie-sub000/identity"
	"github.com/KeldrickD/deal-genie-sub000/models"
)

// SupabaseStore pushes leads through the Supabase REST interface instead
// of a direct database connection. Used where the Postgres port is not
// reachable (the hosted project only exposes REST to this worker).
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewSupabaseStore(cfg *config.SupabaseConfig, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		url:        cfg.URL,
		serviceKey: cfg.ServiceKey,
		client:     client,
	}
}

func (s *SupabaseStore) Enabled() bool {
	return s.url != "" && s.serviceKey != ""
}

// supabaseLead is the REST row shape for the leads table.
type supabaseLead struct {
	ID              string    `json:"id"`
	Fingerprint     string    `json:"fingerprint"`
	Address         string    `json:"address"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	Zipcode         string    `json:"zipcode,omitempty"`
	Price           float64   `json:"price"`
	DaysOnMarket    int       `json:"days_on_market"`
	Description     string    `json:"description"`
	Source          string    `json:"source"`
	KeywordsMatched []string  `json:"keywords_matched"`
	ListingURL      string    `json:"listing_url"`
	PropertyType    string    `json:"property_type,omitempty"`
	ListingType     string    `json:"listing_type,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

// UpsertLeads batch-upserts leads, resolving duplicates server-side.
func (s *SupabaseStore) UpsertLeads(ctx context.Context, leads []models.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]supabaseLead, 0, len(leads))
	for i := range leads {
		lead := &leads[i]
		rows = append(rows, supabaseLead{
			ID:              lead.ID.String(),
			Fingerprint:     identity.Fingerprint(lead),
			Address:         lead.Address,
			City:            lead.City,
			State:           lead.State,
			Zipcode:         lead.Zipcode,
			Price:           lead.Price,
			DaysOnMarket:    lead.DaysOnMarket,
			Description:     lead.Description,
			Source:          lead.Source,
			KeywordsMatched: lead.KeywordsMatched,
			ListingURL:      lead.ListingURL,
			PropertyType:    lead.PropertyType,
			ListingType:     string(lead.ListingType),
			CreatedAt:       lead.CreatedAt,
			LastSyncedAt:    now,
		})
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/rest/v1/leads", bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
