package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KeldrickD/deal-genie-sub000/identity"
	"github.com/KeldrickD/deal-genie-sub000/models"
)

// PostgresStore writes leads into the product's Supabase Postgres, where
// the dashboard and deal features read them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const upsertLeadQuery = `
	INSERT INTO leads (
		id, fingerprint, address, city, state, zipcode, price,
		days_on_market, description, source, keywords_matched,
		listing_url, property_type, listing_type, created_at, last_seen_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15
	)
	ON CONFLICT (fingerprint) DO UPDATE SET
		price = EXCLUDED.price,
		days_on_market = EXCLUDED.days_on_market,
		description = COALESCE(NULLIF(EXCLUDED.description, ''), leads.description),
		keywords_matched = EXCLUDED.keywords_matched,
		listing_url = COALESCE(NULLIF(EXCLUDED.listing_url, ''), leads.listing_url),
		last_seen_at = NOW()`

// UpsertLeads writes a batch inside one transaction, keyed by address
// fingerprint. Re-acquired properties refresh price and recency rather
// than duplicating.
func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []models.Lead) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range leads {
		if _, err := tx.Exec(ctx, upsertLeadQuery, upsertLeadArgs(&leads[i])...); err != nil {
			return fmt.Errorf("upsert lead %s: %w", leads[i].Address, err)
		}
	}
	return tx.Commit(ctx)
}

func upsertLeadArgs(lead *models.Lead) []interface{} {
	return []interface{}{
		lead.ID, identity.Fingerprint(lead), lead.Address, lead.City, lead.State,
		lead.Zipcode, lead.Price, lead.DaysOnMarket, lead.Description, lead.Source,
		lead.MarshalKeywords(), lead.ListingURL, lead.PropertyType,
		string(lead.ListingType), lead.CreatedAt,
	}
}

// CreateRun inserts an acquisition run record and fills in its id.
func (s *PostgresStore) CreateRun(ctx context.Context, run *models.AcquisitionRun) error {
	query := `
		INSERT INTO acquisition_runs (search_id, city, state, started_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.SearchID, run.City, run.State, run.StartedAt, string(run.Status),
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.AcquisitionRun) error {
	query := `
		UPDATE acquisition_runs SET
			finished_at = $2, status = $3, strategy = $4, attempts = $5,
			leads_found = $6, leads_kept = $7, rows_discarded = $8, errors_count = $9
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, string(run.Status), run.Strategy, run.Attempts,
		run.LeadsFound, run.LeadsKept, run.RowsDiscarded, run.ErrorsCount,
	)
	return err
}

// RecentLeads returns the newest leads for a city, newest first.
func (s *PostgresStore) RecentLeads(ctx context.Context, city, state string, limit int) ([]models.Lead, error) {
	query := `
		SELECT id, address, city, state, zipcode, price, days_on_market,
			description, source, listing_url, property_type, listing_type, created_at
		FROM leads
		WHERE city = $1 AND state = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, city, state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var lead models.Lead
		var listingType string
		if err := rows.Scan(&lead.ID, &lead.Address, &lead.City, &lead.State,
			&lead.Zipcode, &lead.Price, &lead.DaysOnMarket, &lead.Description,
			&lead.Source, &lead.ListingURL, &lead.PropertyType, &listingType,
			&lead.CreatedAt); err != nil {
			return nil, err
		}
		lead.ListingType = models.ListingType(listingType)
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
