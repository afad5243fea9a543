package outreach

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
}

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Region:          "us-east-1",
		FromName:        "Sales Team",
		FromAddress:     "sales@example.com",
		TrackingBaseURL: "https://track.example.com",
		TrackingSecret:  "test-secret",
	}
}

func TestSendRecordsAndTracksMessageID(t *testing.T) {
	db, mock := setupTestDB(t)
	ses := &fakeSES{}
	s := NewSenderWithClient(testEmailConfig(), ses, NewHistoryStore(db))

	mock.ExpectQuery(`(?s)INSERT INTO email_history.+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec(`UPDATE email_history SET provider_message_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	contact := &crm.Contact{ID: 3, TenantID: uuid.New(), Email: "jane@acme.com", FirstName: "Jane"}
	rec, err := s.Send(context.Background(), SendRequest{
		Contact:    contact,
		CampaignID: 7,
		Subject:    "Hello",
		HTMLBody:   `<html><body><a href="https://acme.com/pricing">Pricing</a></body></html>`,
	})
	require.NoError(t, err)
	assert.Equal(t, EmailSent, rec.Status)
	assert.Equal(t, "ses-msg-1", rec.ProviderMessageID)

	require.NotNil(t, ses.input)
	assert.Equal(t, "Sales Team <sales@example.com>", *ses.input.FromEmailAddress)
	assert.Equal(t, []string{"jane@acme.com"}, ses.input.Destination.ToAddresses)

	// Links are rewritten and a pixel is injected before the send.
	html := *ses.input.Content.Simple.Body.Html.Data
	assert.Contains(t, html, "https://track.example.com/t/click/")
	assert.Contains(t, html, "https://track.example.com/t/open/")
	assert.NotContains(t, html, `href="https://acme.com/pricing"`)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendMarksFailedOnProviderError(t *testing.T) {
	db, mock := setupTestDB(t)
	ses := &fakeSES{err: errors.New("throttled")}
	s := NewSenderWithClient(testEmailConfig(), ses, NewHistoryStore(db))

	mock.ExpectQuery(`(?s)INSERT INTO email_history.+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(6)))
	mock.ExpectExec(`UPDATE email_history SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	contact := &crm.Contact{ID: 3, TenantID: uuid.New(), Email: "jane@acme.com"}
	rec, err := s.Send(context.Background(), SendRequest{Contact: contact, Subject: "s", HTMLBody: "b"})
	require.Error(t, err)
	assert.Equal(t, EmailFailed, rec.Status)
	assert.Equal(t, "throttled", rec.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendWithoutClientFails(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewSenderWithClient(testEmailConfig(), nil, NewHistoryStore(db))

	mock.ExpectQuery(`(?s)INSERT INTO email_history.+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`UPDATE email_history SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	contact := &crm.Contact{ID: 3, TenantID: uuid.New(), Email: "jane@acme.com"}
	rec, err := s.Send(context.Background(), SendRequest{Contact: contact, Subject: "s", HTMLBody: "b"})
	require.Error(t, err)
	assert.Equal(t, EmailFailed, rec.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
