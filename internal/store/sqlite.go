package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-intake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY,
	timestamp           DATETIME NOT NULL,
	stage               TEXT NOT NULL DEFAULT 'New Lead',
	last_stage_update   DATETIME NOT NULL,
	first_name          TEXT NOT NULL,
	last_name           TEXT NOT NULL,
	address             TEXT NOT NULL,
	sender              TEXT NOT NULL,
	phone_number        TEXT NOT NULL DEFAULT '',
	claim_number        TEXT NOT NULL DEFAULT '',
	claim_company       TEXT NOT NULL DEFAULT '',
	next_follow_up_date TEXT NOT NULL DEFAULT '',
	claim_info          TEXT NOT NULL DEFAULT '',
	original_message    TEXT NOT NULL DEFAULT '',
	last_modified       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_timestamp ON leads(timestamp);
CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage);
`

const leadColumns = `id, timestamp, stage, last_stage_update, first_name, last_name, address, sender,
	phone_number, claim_number, claim_company, next_follow_up_date, claim_info, original_message, last_modified`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, lead model.Lead) (model.Lead, error) {
	if err := validateForSave(lead); err != nil {
		return model.Lead{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Timestamp.UTC(), string(lead.Stage), lead.LastStageUpdateTimestamp.UTC(),
		lead.FirstName, lead.LastName, lead.Address, lead.Sender,
		lead.PhoneNumber, lead.ClaimNumber, lead.ClaimCompany, lead.NextFollowUpDate,
		lead.ClaimInfo, lead.OriginalMessage, nullTime(lead.LastModifiedTimestamp),
	)
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "sqlite: insert lead %s", lead.ID)
	}
	return lead, nil
}

func (s *SQLiteStore) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET stage = ?, last_stage_update = ?, first_name = ?, last_name = ?, address = ?,
			sender = ?, phone_number = ?, claim_number = ?, claim_company = ?, next_follow_up_date = ?,
			claim_info = ?, original_message = ?, last_modified = ?
		WHERE id = ?`,
		string(lead.Stage), lead.LastStageUpdateTimestamp.UTC(), lead.FirstName, lead.LastName, lead.Address,
		lead.Sender, lead.PhoneNumber, lead.ClaimNumber, lead.ClaimCompany, lead.NextFollowUpDate,
		lead.ClaimInfo, lead.OriginalMessage, nullTime(lead.LastModifiedTimestamp),
		lead.ID,
	)
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	if err := checkRowsAffected(res, lead.ID); err != nil {
		return model.Lead{}, err
	}
	return lead, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY timestamp DESC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads iterate")
	}
	// Stored strings sort lexically; reorder on the parsed instants.
	sortNewestFirst(leads)
	return leads, nil
}

func (s *SQLiteStore) FindByIdentity(ctx context.Context, firstName, lastName, address string) (*model.Lead, error) {
	return findByIdentity(ctx, s.List, firstName, lastName, address)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update lead %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (model.Lead, error) {
	var l model.Lead
	var stage string
	var modified sql.NullTime

	err := row.Scan(&l.ID, &l.Timestamp, &stage, &l.LastStageUpdateTimestamp,
		&l.FirstName, &l.LastName, &l.Address, &l.Sender,
		&l.PhoneNumber, &l.ClaimNumber, &l.ClaimCompany, &l.NextFollowUpDate,
		&l.ClaimInfo, &l.OriginalMessage, &modified)
	if err != nil {
		return model.Lead{}, eris.Wrap(err, "sqlite: scan lead")
	}
	l.Stage = model.Stage(stage)
	if modified.Valid {
		t := modified.Time
		l.LastModifiedTimestamp = &t
	}
	return l, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
