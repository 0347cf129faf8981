package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"tripscout/models"
)

// PostgresStore persists runs, canonical offers, and packages to PostgreSQL
// and serves the lodging inventory the assembler matches against.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id        VARCHAR(36)  PRIMARY KEY,
			started_at    TIMESTAMPTZ  NOT NULL,
			finished_at   TIMESTAMPTZ  NOT NULL,
			total_units   INT          NOT NULL,
			succeeded     INT          NOT NULL,
			failed        INT          NOT NULL,
			cancelled     INT          NOT NULL,
			threshold     NUMERIC(4,2) NOT NULL,
			offers        INT          NOT NULL,
			dropped       INT          NOT NULL
		);

		CREATE TABLE IF NOT EXISTS offers (
			id            SERIAL       PRIMARY KEY,
			run_id        VARCHAR(36)  NOT NULL REFERENCES runs(run_id),
			offer_key     TEXT         NOT NULL,
			origin        VARCHAR(3)   NOT NULL,
			destination   VARCHAR(3)   NOT NULL,
			carrier       TEXT         NOT NULL,
			departure     DATE         NOT NULL,
			return_date   DATE,
			price_each    NUMERIC(10,2) NOT NULL,
			price_total   NUMERIC(10,2) NOT NULL,
			source        VARCHAR(50)  NOT NULL,
			booking_ref   TEXT         NOT NULL,
			members       INT          NOT NULL DEFAULT 1,
			observed_at   TIMESTAMPTZ  NOT NULL,
			UNIQUE (run_id, offer_key)
		);

		CREATE TABLE IF NOT EXISTS lodging_options (
			id              SERIAL       PRIMARY KEY,
			city            TEXT         NOT NULL,
			name            TEXT         NOT NULL,
			type            VARCHAR(50)  NOT NULL DEFAULT '',
			bedrooms        INT          NOT NULL DEFAULT 0,
			price_per_night NUMERIC(10,2) NOT NULL,
			family_friendly BOOLEAN      NOT NULL DEFAULT FALSE,
			has_kitchen     BOOLEAN      NOT NULL DEFAULT FALSE,
			rating          NUMERIC(4,2) NOT NULL DEFAULT 0,
			source          VARCHAR(50)  NOT NULL DEFAULT '',
			url             TEXT         NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS packages (
			id            SERIAL       PRIMARY KEY,
			package_key   TEXT         UNIQUE NOT NULL,
			offer_key     TEXT         NOT NULL,
			lodging_id    INT          REFERENCES lodging_options(id),
			destination   TEXT         NOT NULL,
			departure     DATE         NOT NULL,
			return_date   DATE         NOT NULL,
			nights        INT          NOT NULL,
			base_price    NUMERIC(10,2) NOT NULL,
			hidden_costs  NUMERIC(10,2) NOT NULL,
			total_cost    NUMERIC(10,2) NOT NULL,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_offers_route      ON offers(origin, destination);
		CREATE INDEX IF NOT EXISTS idx_offers_run        ON offers(run_id);
		CREATE INDEX IF NOT EXISTS idx_lodging_city      ON lodging_options(city);
		CREATE INDEX IF NOT EXISTS idx_packages_total    ON packages(total_cost);
		CREATE INDEX IF NOT EXISTS idx_packages_dest     ON packages(destination);
	`)
	return err
}

// SaveRun records one acquisition run. Called on success and on threshold
// abort alike, so failed runs stay visible.
func (ps *PostgresStore) SaveRun(stats *models.RunStats) error {
	_, err := ps.db.Exec(`
		INSERT INTO runs (run_id, started_at, finished_at, total_units,
			succeeded, failed, cancelled, threshold, offers, dropped)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, stats.RunID, stats.StartedAt, stats.FinishedAt, stats.TotalUnits,
		stats.Succeeded, stats.Failed, stats.Cancelled, stats.Threshold,
		stats.OffersFetched, stats.DroppedOffers)
	if err != nil {
		return fmt.Errorf("postgres: save run %s: %w", stats.RunID, err)
	}
	return nil
}

// SaveOffers batch-inserts the canonical offers produced by one run.
func (ps *PostgresStore) SaveOffers(runID string, offers []*models.CanonicalOffer) error {
	const batchSize = 50
	for i := 0; i < len(offers); i += batchSize {
		end := i + batchSize
		if end > len(offers) {
			end = len(offers)
		}
		if err := ps.insertOfferBatch(runID, offers[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (ps *PostgresStore) insertOfferBatch(runID string, batch []*models.CanonicalOffer) error {
	const cols = 13
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, o := range batch {
		base := idx * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")

		var ret interface{}
		if o.IsRoundTrip() {
			ret = o.ReturnDate
		}
		valueArgs = append(valueArgs,
			runID, o.Key, o.Origin, o.Destination, o.Carrier,
			o.DepartureDate, ret, o.PricePerTraveler, o.TotalPrice,
			o.Source, o.BookingRef, o.Members, o.ObservedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO offers (run_id, offer_key, origin, destination, carrier,
			departure, return_date, price_each, price_total, source,
			booking_ref, members, observed_at)
		VALUES %s
		ON CONFLICT (run_id, offer_key) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := ps.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert offers: %w", err)
	}
	return nil
}

// SavePackages inserts the batch in one transaction. Either every package
// lands or none does; a half-written batch would poison the duplicate index
// for the next run.
func (ps *PostgresStore) SavePackages(packages []*models.Package) error {
	if len(packages) == 0 {
		return nil
	}

	tx, err := ps.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO packages (package_key, offer_key, lodging_id, destination,
			departure, return_date, nights, base_price, hidden_costs, total_cost, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("postgres: prepare: %w", err)
	}

	for _, p := range packages {
		var lodgingID interface{}
		if p.Lodging != nil && p.Lodging.ID != 0 {
			lodgingID = p.Lodging.ID
		}
		_, err := stmt.Exec(p.Key, p.Offer.Key, lodgingID, p.Destination,
			p.DepartureDate, p.ReturnDate, p.Nights,
			p.Cost.BasePrice, p.Cost.HiddenCosts(), p.Cost.Total, p.CreatedAt)
		if err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("postgres: insert package %s: %w", p.Key, err)
		}
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("postgres: close stmt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit packages: %w", err)
	}
	return nil
}

// FetchLodging retrieves the full lodging inventory for matching.
func (ps *PostgresStore) FetchLodging() ([]*models.LodgingOption, error) {
	rows, err := ps.db.Query(`
		SELECT id, city, name, type, bedrooms, price_per_night,
			family_friendly, has_kitchen, rating, source, url
		FROM lodging_options
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch lodging: %w", err)
	}
	defer rows.Close()

	var options []*models.LodgingOption
	for rows.Next() {
		l := &models.LodgingOption{}
		if err := rows.Scan(
			&l.ID, &l.City, &l.Name, &l.Type, &l.Bedrooms, &l.PricePerNight,
			&l.FamilyFriendly, &l.HasKitchen, &l.Rating, &l.Source, &l.URL,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan lodging: %w", err)
		}
		options = append(options, l)
	}
	return options, rows.Err()
}

// PackageKeys returns every persisted package key, the duplicate index the
// assembler checks before creating a package.
func (ps *PostgresStore) PackageKeys() (map[string]struct{}, error) {
	rows, err := ps.db.Query(`SELECT package_key FROM packages`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch package keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: scan key: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
