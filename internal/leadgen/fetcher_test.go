package leadgen

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

const boardJSON = `[
	{"id": "gh-1", "company": "Acme Corp", "company_url": "https://acme.com",
	 "title": "Head of Sales", "location": "Austin, TX",
	 "url": "https://board.example.com/gh-1", "posted_at": "2026-08-01"},
	{"id": "gh-2", "company": "Acme Corp",
	 "title": "SDR", "location": "Remote", "url": "https://board.example.com/gh-2"},
	{"id": "", "company": "Skipped Inc", "title": "ignored"}
]`

func TestFetchBoardStoresCompaniesAndPostings(t *testing.T) {
	db, mock := setupTestDB(t)
	board := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(boardJSON))
	}))
	defer board.Close()

	tenantID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO scraping_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow(int64(1), now))
	mock.ExpectQuery(`(?s)INSERT INTO leadgen_companies.+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "promoted", "created_at"}).
			AddRow(int64(10), false, now))
	// gh-1 is new, gh-2 is a duplicate external_id
	mock.ExpectQuery(`(?s)INSERT INTO job_postings.+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery(`(?s)INSERT INTO job_postings.+RETURNING id`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`(?s)UPDATE scraping_logs SET status = \$1`).
		WithArgs(RunCompleted, 1, 1, "", int64(1), tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := NewFetcher(NewStore(db)).FetchBoard(context.Background(), tenantID, board.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CompaniesFound)
	assert.Equal(t, 1, result.PostingsAdded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchBoardRecordsFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	board := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer board.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`INSERT INTO scraping_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow(int64(2), time.Now()))
	mock.ExpectExec(`(?s)UPDATE scraping_logs SET status = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := NewFetcher(NewStore(db)).FetchBoard(context.Background(), tenantID, board.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParsePostedAt(t *testing.T) {
	ts := parsePostedAt("2026-08-01")
	require.NotNil(t, ts)
	assert.Equal(t, 2026, ts.Year())

	ts = parsePostedAt("2026-08-01T12:30:00Z")
	require.NotNil(t, ts)
	assert.Equal(t, 12, ts.Hour())

	assert.Nil(t, parsePostedAt(""))
	assert.Nil(t, parsePostedAt("yesterday"))
}

func TestUpsertPostingDuplicate(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery(`(?s)INSERT INTO job_postings.+RETURNING id`).
		WillReturnError(sql.ErrNoRows)

	added, err := store.UpsertPosting(context.Background(), &JobPosting{
		TenantID: uuid.New(), ExternalID: "gh-1", Title: "SDR",
	})
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}
