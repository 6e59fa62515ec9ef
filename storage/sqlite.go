package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/KeldrickD/deal-genie-sub000/identity"
	"github.com/KeldrickD/deal-genie-sub000/models"
)

// SQLiteStore is the local operational store: acquired leads, run
// records, and run logs. Persistence is outside the pipeline itself; the
// daemon wires this in around Acquire calls.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL,
		city TEXT,
		state TEXT,
		zipcode TEXT,
		price REAL NOT NULL,
		days_on_market INTEGER DEFAULT 0,
		description TEXT,
		source TEXT NOT NULL,
		keywords_matched TEXT DEFAULT '[]',
		listing_url TEXT,
		property_type TEXT,
		listing_type TEXT,
		created_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_leads_synced ON leads(synced);
	CREATE INDEX IF NOT EXISTS idx_leads_city_state ON leads(city, state);

	CREATE TABLE IF NOT EXISTS acquisition_runs (
		id INTEGER PRIMARY KEY,
		search_id TEXT NOT NULL,
		city TEXT,
		state TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		strategy TEXT,
		attempts INTEGER DEFAULT 0,
		leads_found INTEGER DEFAULT 0,
		leads_kept INTEGER DEFAULT 0,
		rows_discarded INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		search_id TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertLead inserts a lead or, when the same property has been seen
// before, refreshes it and bumps the seen counter. Returns true when the
// lead is new.
func (s *SQLiteStore) UpsertLead(lead *models.Lead) (bool, error) {
	fingerprint := identity.Fingerprint(lead)

	var existingID string
	err := s.db.QueryRow(`SELECT id FROM leads WHERE fingerprint = ?`, fingerprint).Scan(&existingID)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`
			INSERT INTO leads (id, fingerprint, address, city, state, zipcode, price,
				days_on_market, description, source, keywords_matched, listing_url,
				property_type, listing_type, created_at, last_seen_at, synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`,
			lead.ID.String(), fingerprint, lead.Address, lead.City, lead.State,
			lead.Zipcode, lead.Price, lead.DaysOnMarket, lead.Description,
			lead.Source, lead.MarshalKeywords(), lead.ListingURL,
			lead.PropertyType, string(lead.ListingType), lead.CreatedAt, lead.CreatedAt)
		return true, err
	}
	if err != nil {
		return false, err
	}

	_, err = s.db.Exec(`
		UPDATE leads SET price = ?, days_on_market = ?, description = ?,
			keywords_matched = ?, listing_url = ?, last_seen_at = ?,
			times_seen = times_seen + 1, synced = FALSE
		WHERE fingerprint = ?`,
		lead.Price, lead.DaysOnMarket, lead.Description,
		lead.MarshalKeywords(), lead.ListingURL, lead.CreatedAt, fingerprint)
	return false, err
}

// GetUnsyncedLeads returns up to limit leads not yet pushed upstream.
func (s *SQLiteStore) GetUnsyncedLeads(limit int) ([]models.Lead, []string, error) {
	rows, err := s.db.Query(`
		SELECT id, fingerprint, address, city, state, zipcode, price,
			days_on_market, description, source, listing_url, property_type,
			listing_type, created_at
		FROM leads WHERE synced = FALSE ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	var fingerprints []string
	for rows.Next() {
		var lead models.Lead
		var id, fingerprint, listingType string
		if err := rows.Scan(&id, &fingerprint, &lead.Address, &lead.City,
			&lead.State, &lead.Zipcode, &lead.Price, &lead.DaysOnMarket,
			&lead.Description, &lead.Source, &lead.ListingURL,
			&lead.PropertyType, &listingType, &lead.CreatedAt); err != nil {
			return nil, nil, err
		}
		lead.ListingType = models.ListingType(listingType)
		if parsed, err := uuid.Parse(id); err == nil {
			lead.ID = parsed
		}
		leads = append(leads, lead)
		fingerprints = append(fingerprints, fingerprint)
	}
	return leads, fingerprints, rows.Err()
}

// MarkLeadsSynced flags leads as pushed.
func (s *SQLiteStore) MarkLeadsSynced(fingerprints []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`UPDATE leads SET synced = TRUE WHERE fingerprint = ?`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, fp := range fingerprints {
		if _, err := stmt.Exec(fp); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LeadCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&count)
	return count, err
}

// CreateRun records the start of an acquisition and returns its row id.
func (s *SQLiteStore) CreateRun(run *models.AcquisitionRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO acquisition_runs (search_id, city, state, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.SearchID, run.City, run.State, run.StartedAt, string(run.Status))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.AcquisitionRun) error {
	_, err := s.db.Exec(`
		UPDATE acquisition_runs SET finished_at = ?, status = ?, strategy = ?,
			attempts = ?, leads_found = ?, leads_kept = ?, rows_discarded = ?,
			errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, string(run.Status), run.Strategy, run.Attempts,
		run.LeadsFound, run.LeadsKept, run.RowsDiscarded, run.ErrorsCount, run.ID)
	return err
}

// Log appends a run log row. Errors are swallowed; logging must never
// break an acquisition.
func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, searchID string) {
	s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, search_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), string(level), message, searchID)
}
