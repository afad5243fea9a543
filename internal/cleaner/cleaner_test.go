package cleaner

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestRunFullWipeResetsSequences(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	for _, table := range Tables() {
		mock.ExpectExec("DELETE FROM " + table + "$").
			WillReturnResult(sqlmock.NewResult(0, 2))
	}
	for _, table := range Tables() {
		mock.ExpectExec(`SELECT setval\(pg_get_serial_sequence\('` + table + `'`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	result, err := New(db).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	assert.Equal(t, int64(2*len(Tables())), result.Total)
	assert.Equal(t, int64(2), result.Rows["companies"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTenantFilterSkipsSequenceReset(t *testing.T) {
	db, mock := setupTestDB(t)
	tenantID := uuid.New()

	mock.ExpectBegin()
	for _, table := range Tables() {
		if table == "campaign_contacts" {
			mock.ExpectExec(`(?s)DELETE FROM campaign_contacts WHERE campaign_id IN`).
				WithArgs(tenantID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			continue
		}
		mock.ExpectExec(`DELETE FROM ` + table + ` WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	result, err := New(db).Run(context.Background(), Options{TenantID: tenantID})
	require.NoError(t, err)
	assert.Equal(t, int64(len(Tables())), result.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSingleTable(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM email_history$").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(`SELECT setval\(pg_get_serial_sequence\('email_history'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := New(db).Run(context.Background(), Options{Table: "email_history"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Total)
	assert.Equal(t, []string{"email_history"}, result.Ordered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRejectsUnknownTable(t *testing.T) {
	db, _ := setupTestDB(t)

	_, err := New(db).Run(context.Background(), Options{Table: "users"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestRunDryRunCountsOnly(t *testing.T) {
	db, mock := setupTestDB(t)

	for range Tables() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	}

	result, err := New(db).Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, int64(3*len(Tables())), result.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM report_clicks$").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := New(db).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clean report_clicks")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOrderChildrenFirst(t *testing.T) {
	tables := Tables()
	idx := map[string]int{}
	for i, table := range tables {
		idx[table] = i
	}

	assert.Less(t, idx["campaign_contacts"], idx["campaigns"])
	assert.Less(t, idx["email_history"], idx["contacts"])
	assert.Less(t, idx["link_tracking"], idx["email_history"])
	assert.Less(t, idx["job_postings"], idx["leadgen_companies"])
	assert.Less(t, idx["contacts"], idx["companies"])
}
