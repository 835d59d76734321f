package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var leadRowColumns = []string{
	"id", "timestamp", "stage", "last_stage_update", "first_name", "last_name", "address", "sender",
	"phone_number", "claim_number", "claim_company", "next_follow_up_date", "claim_info", "original_message", "last_modified",
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	lead := sampleLead("pg-1", "John", "Smith", "123 Main St", baseTime)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs("pg-1", baseTime, "New Lead", baseTime,
			"John", "Smith", "123 Main St", "Mike",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "",
			"hail damage", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, err := s.Save(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, "pg-1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveInvalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	lead := sampleLead("", "John", "Smith", "123 Main St", baseTime)

	_, err := s.Save(context.Background(), lead)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).WillReturnError(assert.AnError)

	_, err := s.Save(context.Background(), sampleLead("pg-2", "John", "Smith", "123 Main St", baseTime))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert lead pg-2")
}

func TestPostgresStore_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	lead := sampleLead("pg-3", "John", "Smith", "123 Main St", baseTime)
	modified := baseTime.Add(time.Hour)
	lead.LastModifiedTimestamp = &modified

	mock.ExpectExec(`UPDATE leads SET stage = \$1`).
		WithArgs("New Lead", baseTime, "John", "Smith", "123 Main St",
			"Mike", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "",
			"hail damage", pgxmock.AnyArg(), pgxmock.AnyArg(),
			"pg-3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := s.Update(context.Background(), lead)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := s.Update(context.Background(), sampleLead("missing", "John", "Smith", "123 Main St", baseTime))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	modified := baseTime.Add(3 * time.Hour)

	rows := pgxmock.NewRows(leadRowColumns).
		AddRow("b", baseTime.Add(time.Hour), "Contacted", baseTime.Add(time.Hour), "Jane", "Doe", "9 Pine Rd", "Sara",
			"555-000-1111", "CLM-1", "State Farm", "Friday", "leak", "Jane Doe 9 Pine Rd", &modified).
		AddRow("a", baseTime, "New Lead", baseTime, "John", "Smith", "123 Main St", "Mike",
			"", "", "", "", "", "", nil)

	mock.ExpectQuery(`SELECT id, timestamp, stage .* FROM leads ORDER BY timestamp DESC`).
		WillReturnRows(rows)

	leads, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "b", leads[0].ID)
	assert.Equal(t, "Contacted", string(leads[0].Stage))
	assert.Equal(t, "State Farm", leads[0].ClaimCompany)
	require.NotNil(t, leads[0].LastModifiedTimestamp)
	assert.True(t, modified.Equal(*leads[0].LastModifiedTimestamp))

	assert.Equal(t, "a", leads[1].ID)
	assert.Nil(t, leads[1].LastModifiedTimestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, timestamp`).WillReturnError(assert.AnError)

	leads, err := s.List(context.Background())
	require.Error(t, err)
	assert.Nil(t, leads)
	assert.Contains(t, err.Error(), "postgres: list leads")
}

func TestPostgresStore_FindByIdentity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(leadRowColumns).
		AddRow("a", baseTime, "New Lead", baseTime, "John", "Smith", "123 Main St", "Mike",
			"", "", "", "", "", "", nil)
	mock.ExpectQuery(`FROM leads`).WillReturnRows(rows)

	got, err := s.FindByIdentity(context.Background(), "john", "SMITH", " 123 main st")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PingAndMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
