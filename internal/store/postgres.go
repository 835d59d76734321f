package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertLead = `INSERT INTO leads (id, timestamp, stage, last_stage_update, first_name, last_name, address, sender,
	phone_number, claim_number, claim_company, next_follow_up_date, claim_info, original_message, last_modified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	pgUpdateLead = `UPDATE leads SET stage = $1, last_stage_update = $2, first_name = $3, last_name = $4, address = $5,
	sender = $6, phone_number = $7, claim_number = $8, claim_company = $9, next_follow_up_date = $10,
	claim_info = $11, original_message = $12, last_modified = $13
WHERE id = $14`

	pgListLeads = `SELECT id, timestamp, stage, last_stage_update, first_name, last_name, address, sender,
	phone_number, claim_number, claim_company, next_follow_up_date, claim_info, original_message, last_modified
FROM leads ORDER BY timestamp DESC, id ASC`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_lead": pgInsertLead,
	"update_lead": pgUpdateLead,
	"list_leads":  pgListLeads,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements are prepared only once the leads table exists; a fresh
	// database has none until migrate runs.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT to_regclass('leads') IS NOT NULL`).Scan(&exists); err != nil || !exists {
			return nil
		}
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY,
	timestamp           TIMESTAMPTZ NOT NULL,
	stage               TEXT NOT NULL DEFAULT 'New Lead',
	last_stage_update   TIMESTAMPTZ NOT NULL,
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
	last_modified       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_timestamp ON leads(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, lead model.Lead) (model.Lead, error) {
	if err := validateForSave(lead); err != nil {
		return model.Lead{}, err
	}
	_, err := s.pool.Exec(ctx, pgInsertLead,
		lead.ID, lead.Timestamp.UTC(), string(lead.Stage), lead.LastStageUpdateTimestamp.UTC(),
		lead.FirstName, lead.LastName, lead.Address, lead.Sender,
		lead.PhoneNumber, lead.ClaimNumber, lead.ClaimCompany, lead.NextFollowUpDate,
		lead.ClaimInfo, lead.OriginalMessage, lead.LastModifiedTimestamp,
	)
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "postgres: insert lead %s", lead.ID)
	}
	return lead, nil
}

func (s *PostgresStore) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	tag, err := s.pool.Exec(ctx, pgUpdateLead,
		string(lead.Stage), lead.LastStageUpdateTimestamp.UTC(), lead.FirstName, lead.LastName, lead.Address,
		lead.Sender, lead.PhoneNumber, lead.ClaimNumber, lead.ClaimCompany, lead.NextFollowUpDate,
		lead.ClaimInfo, lead.OriginalMessage, lead.LastModifiedTimestamp,
		lead.ID,
	)
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return model.Lead{}, eris.Wrapf(ErrNotFound, "postgres: update lead %s", lead.ID)
	}
	return lead, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, pgListLeads)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var stage string
		var modified *time.Time
		if err := rows.Scan(&l.ID, &l.Timestamp, &stage, &l.LastStageUpdateTimestamp,
			&l.FirstName, &l.LastName, &l.Address, &l.Sender,
			&l.PhoneNumber, &l.ClaimNumber, &l.ClaimCompany, &l.NextFollowUpDate,
			&l.ClaimInfo, &l.OriginalMessage, &modified); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l.Stage = model.Stage(stage)
		l.LastModifiedTimestamp = modified
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, firstName, lastName, address string) (*model.Lead, error) {
	return findByIdentity(ctx, s.List, firstName, lastName, address)
}
