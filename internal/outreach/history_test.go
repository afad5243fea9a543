package outreach

import (
	"context"
	"database/sql"
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

func TestHistoryRecordAssignsID(t *testing.T) {
	db, mock := setupTestDB(t)
	hs := NewHistoryStore(db)

	tenantID := uuid.New()
	campaignID := int64(7)
	rec := &EmailRecord{
		TenantID:   tenantID,
		CampaignID: &campaignID,
		ToEmail:    "jane@acme.com",
		Subject:    "Hello",
		Body:       "<p>Hi</p>",
	}

	mock.ExpectQuery(`(?s)INSERT INTO email_history.+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	err := hs.Record(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, EmailSent, rec.Status)
	assert.False(t, rec.SentAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryMarkFailed(t *testing.T) {
	db, mock := setupTestDB(t)
	hs := NewHistoryStore(db)

	tenantID := uuid.New()
	mock.ExpectExec(`UPDATE email_history SET status = \$1, error = \$2`).
		WithArgs(EmailFailed, "throttled", int64(42), tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := hs.MarkFailed(context.Background(), tenantID, 42, "throttled")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryListAppliesFilters(t *testing.T) {
	db, mock := setupTestDB(t)
	hs := NewHistoryStore(db)

	tenantID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "campaign_id", "contact_id",
		"to_email", "subject", "status", "provider_message_id", "error", "sent_at"}).
		AddRow(int64(1), tenantID, int64(7), int64(3), "jane@acme.com", "Hello",
			EmailSent, "msg-1", "", now)

	mock.ExpectQuery(`(?s)FROM email_history WHERE tenant_id = \$1 AND campaign_id = \$2 AND status = \$3`).
		WithArgs(tenantID, int64(7), EmailSent, 100, 0).
		WillReturnRows(rows)

	records, err := hs.List(context.Background(), tenantID,
		HistoryFilter{CampaignID: 7, Status: EmailSent})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "jane@acme.com", records[0].ToEmail)
	require.NotNil(t, records[0].CampaignID)
	assert.Equal(t, int64(7), *records[0].CampaignID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryListNoFilters(t *testing.T) {
	db, mock := setupTestDB(t)
	hs := NewHistoryStore(db)

	tenantID := uuid.New()
	mock.ExpectQuery(`(?s)FROM email_history WHERE tenant_id = \$1 ORDER BY sent_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(tenantID, 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "campaign_id", "contact_id",
			"to_email", "subject", "status", "provider_message_id", "error", "sent_at"}))

	records, err := hs.List(context.Background(), tenantID, HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryClearWholeTenant(t *testing.T) {
	db, mock := setupTestDB(t)
	hs := NewHistoryStore(db)

	tenantID := uuid.New()
	mock.ExpectExec(`DELETE FROM email_history WHERE tenant_id = \$1$`).
		WithArgs(tenantID).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := hs.Clear(context.Background(), tenantID, 0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryClearCampaignBefore(t *testing.T) {
	db, mock := setupTestDB(t)
	hs := NewHistoryStore(db)

	tenantID := uuid.New()
	before := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec(`DELETE FROM email_history WHERE tenant_id = \$1 AND campaign_id = \$2 AND sent_at < \$3`).
		WithArgs(tenantID, int64(7), before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := hs.Clear(context.Background(), tenantID, 7, before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
