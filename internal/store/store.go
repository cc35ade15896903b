package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paycrm/offerbot/internal/models"
)

// Store is the persistent offer catalog backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "store: open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: ping database")
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS offers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_text TEXT NOT NULL,
	country TEXT,
	method TEXT,
	fee TEXT,
	rate TEXT,
	limits TEXT,
	conditions TEXT,
	status TEXT NOT NULL DEFAULT 'new',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Columns added after the first release. Older database files are
// upgraded in place without touching existing rows.
var additiveColumns = []struct {
	name string
	ddl  string
}{
	{"kind", "ALTER TABLE offers ADD COLUMN kind TEXT"},
	{"fee_percent", "ALTER TABLE offers ADD COLUMN fee_percent REAL"},
}

// Migrate creates the offers table if absent and adds any missing
// columns. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, baseSchema); err != nil {
		return eris.Wrap(err, "store: create schema")
	}

	existing, err := s.tableColumns(ctx, "offers")
	if err != nil {
		return err
	}

	for _, col := range additiveColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, col.ddl); err != nil {
			return eris.Wrapf(err, "store: add column %s", col.name)
		}
		s.logger.Info("added schema column", zap.String("column", col.name))
	}

	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, eris.Wrap(err, "store: table info")
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, eris.Wrap(err, "store: scan table info")
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// Create inserts one offer with status "new" and returns the assigned
// id. Optional payload fields are stored as NULL when absent; an
// unparsable fee_percent is dropped to NULL rather than failing the
// insert.
func (s *Store) Create(ctx context.Context, payload *models.OfferPayload, rawText string) (int64, error) {
	if strings.TrimSpace(rawText) == "" {
		return 0, eris.New("store: raw text must not be empty")
	}
	if payload == nil {
		payload = &models.OfferPayload{}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO offers (
			raw_text, country, method, fee, rate, limits,
			conditions, status, created_at, updated_at,
			kind, fee_percent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rawText,
		payload.Country,
		payload.Method,
		payload.Fee,
		payload.Rate,
		payload.Limits,
		payload.Conditions,
		models.StatusNew,
		now,
		now,
		payload.Kind,
		models.CoerceFloat(payload.FeePercent),
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert offer")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "store: last insert id")
	}

	s.logger.Info("offer saved", zap.Int64("id", id))
	return id, nil
}

// GetByID returns the full offer record, or (nil, nil) when no row
// matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Offer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, raw_text, country, method, fee, rate,
			limits, conditions, status, created_at, updated_at,
			kind, fee_percent
		FROM offers
		WHERE id = ?`,
		id,
	)

	var (
		o                    models.Offer
		createdAt, updatedAt string
	)
	err := row.Scan(
		&o.ID, &o.RawText, &o.Country, &o.Method, &o.Fee, &o.Rate,
		&o.Limits, &o.Conditions, &o.Status, &createdAt, &updatedAt,
		&o.Kind, &o.FeePercent,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get offer %d", id)
	}

	if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, eris.Wrap(err, "store: parse created_at")
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, eris.Wrap(err, "store: parse updated_at")
	}

	return &o, nil
}

// ListRecent returns the limit most recently created offers, newest
// first. Ids are monotonic, so ordering by id avoids the second-level
// timestamp collisions of created_at. The projection excludes the bulky
// fields (raw_text, limits, conditions).
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.Offer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, country, method, fee, rate, status, created_at, kind, fee_percent
		FROM offers
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list recent offers")
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// Search applies the filter as an accumulated conjunction of
// parameterized predicates and returns up to limit matches, newest
// first. Absent criteria contribute no predicate. Filter values come
// from an uncontrolled extraction step, so every one of them is bound,
// never spliced into the SQL text.
func (s *Store) Search(ctx context.Context, filter *models.SearchFilter, limit int) ([]models.Offer, error) {
	if filter == nil {
		filter = &models.SearchFilter{}
	}

	var (
		predicates []string
		args       []any
	)

	if filter.Country != "" {
		predicates = append(predicates, "LOWER(country) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Country)+"%")
	}
	if filter.Method != "" {
		predicates = append(predicates, "LOWER(method) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Method)+"%")
	}
	if filter.Status != "" {
		predicates = append(predicates, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		predicates = append(predicates, "kind = ?")
		args = append(args, filter.Kind)
	}
	if minFee := models.CoerceFloat(filter.MinFeePercent); minFee != nil {
		predicates = append(predicates, "fee_percent >= ?")
		args = append(args, *minFee)
	}
	if maxFee := models.CoerceFloat(filter.MaxFeePercent); maxFee != nil {
		predicates = append(predicates, "fee_percent <= ?")
		args = append(args, *maxFee)
	}

	where := "1=1"
	if len(predicates) > 0 {
		where = strings.Join(predicates, " AND ")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, country, method, fee, rate, status, created_at, kind, fee_percent
		FROM offers
		WHERE `+where+`
		ORDER BY id DESC
		LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: search offers")
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]models.Offer, error) {
	var offers []models.Offer
	for rows.Next() {
		var (
			o         models.Offer
			createdAt string
		)
		err := rows.Scan(
			&o.ID, &o.Country, &o.Method, &o.Fee, &o.Rate,
			&o.Status, &createdAt, &o.Kind, &o.FeePercent,
		)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan offer")
		}
		if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, eris.Wrap(err, "store: parse created_at")
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate offers")
	}
	return offers, nil
}
