package worker

import (
	"context"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
)

func TestCleanupDeletesInBatchesUntilDone(t *testing.T) {
	db, mock := setupTestDB(t)

	cw := NewCleanupWorker(db, config.CleanupConfig{
		IntervalHours:         1,
		TrackingRetentionDays: 90,
	})

	// First batch full, second batch drains the rest.
	mock.ExpectExec(`(?s)DELETE FROM email_tracking`).
		WithArgs(cleanupBatchSize).
		WillReturnResult(sqlmock.NewResult(0, int64(cleanupBatchSize)))
	mock.ExpectExec(`(?s)DELETE FROM email_tracking`).
		WithArgs(cleanupBatchSize).
		WillReturnResult(sqlmock.NewResult(0, 42))
	mock.ExpectExec(`(?s)DELETE FROM email_tracking`).
		WithArgs(cleanupBatchSize).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(`(?s)DELETE FROM link_tracking`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)DELETE FROM report_clicks`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// History retention disabled (0 days), so no email_history delete.
	mock.ExpectExec(`(?s)DELETE FROM scraping_logs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)status = 'completed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)status = 'failed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cw.cleanup(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupHistoryRetention(t *testing.T) {
	db, mock := setupTestDB(t)

	cw := NewCleanupWorker(db, config.CleanupConfig{HistoryRetentionDays: 30})

	mock.ExpectExec(`(?s)DELETE FROM email_history.+make_interval\(days => 30\)`).
		WithArgs(cleanupBatchSize).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`(?s)DELETE FROM email_history`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cw.cleanupHistory(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
}

// The tracking tables timestamp events with occurred_at, not created_at
// (see migrations/0007_create_tracking.sql). The retention DELETE must
// filter on the column that actually exists or every cycle fails.
func TestCleanupTrackingFiltersOnOccurredAt(t *testing.T) {
	db, mock := setupTestDB(t)

	cw := NewCleanupWorker(db, config.CleanupConfig{TrackingRetentionDays: 90})

	for _, table := range []string{"email_tracking", "link_tracking", "report_clicks"} {
		mock.ExpectExec(`(?s)DELETE FROM ` + table + `.+WHERE occurred_at < NOW\(\) - make_interval\(days => 90\)`).
			WithArgs(cleanupBatchSize).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	cw.cleanupTracking(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())

	ddl, err := os.ReadFile("../../migrations/0007_create_tracking.sql")
	require.NoError(t, err)
	require.Contains(t, string(ddl), "occurred_at")
	require.NotContains(t, string(ddl), "created_at")
}

func TestCleanupSurvivesQueryError(t *testing.T) {
	db, mock := setupTestDB(t)

	cw := NewCleanupWorker(db, config.CleanupConfig{TrackingRetentionDays: 90})

	mock.ExpectExec(`(?s)DELETE FROM email_tracking`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectExec(`(?s)DELETE FROM link_tracking`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)DELETE FROM report_clicks`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cw.cleanupTracking(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
}
