package outreach

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Email history status constants
const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

// EmailRecord represents one row of email_history
type EmailRecord struct {
	ID                int64     `json:"id" db:"id"`
	TenantID          uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CampaignID        *int64    `json:"campaign_id,omitempty" db:"campaign_id"`
	ContactID         *int64    `json:"contact_id,omitempty" db:"contact_id"`
	ToEmail           string    `json:"to_email" db:"to_email"`
	Subject           string    `json:"subject" db:"subject"`
	Body              string    `json:"body,omitempty" db:"body"`
	Status            string    `json:"status" db:"status"`
	ProviderMessageID string    `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Error             string    `json:"error,omitempty" db:"error"`
	SentAt            time.Time `json:"sent_at" db:"sent_at"`
}

// HistoryFilter narrows email history queries
type HistoryFilter struct {
	CampaignID int64
	ContactID  int64
	Status     string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// HistoryStore provides database operations for the email send log
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a new history store
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record appends one send attempt to the history
func (hs *HistoryStore) Record(ctx context.Context, rec *EmailRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = EmailSent
	}

	query := `INSERT INTO email_history (tenant_id, campaign_id, contact_id, to_email, subject,
		body, status, provider_message_id, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	return hs.db.QueryRowContext(ctx, query, rec.TenantID, rec.CampaignID, rec.ContactID,
		rec.ToEmail, rec.Subject, rec.Body, rec.Status, rec.ProviderMessageID, rec.Error,
		rec.SentAt).Scan(&rec.ID)
}

// MarkFailed flips a recorded send to failed with the provider error.
func (hs *HistoryStore) MarkFailed(ctx context.Context, tenantID uuid.UUID, id int64, reason string) error {
	_, err := hs.db.ExecContext(ctx,
		`UPDATE email_history SET status = $1, error = $2 WHERE id = $3 AND tenant_id = $4`,
		EmailFailed, reason, id, tenantID)
	return err
}

// SetProviderMessageID stores the provider's message id after a successful send.
func (hs *HistoryStore) SetProviderMessageID(ctx context.Context, tenantID uuid.UUID, id int64, messageID string) error {
	_, err := hs.db.ExecContext(ctx,
		`UPDATE email_history SET provider_message_id = $1 WHERE id = $2 AND tenant_id = $3`,
		messageID, id, tenantID)
	return err
}

// List retrieves history rows for a tenant, newest first
func (hs *HistoryStore) List(ctx context.Context, tenantID uuid.UUID, f HistoryFilter) ([]*EmailRecord, error) {
	query := `SELECT id, tenant_id, campaign_id, contact_id, to_email, subject, status,
		provider_message_id, error, sent_at
		FROM email_history WHERE tenant_id = $1`
	args := []any{tenantID}

	if f.CampaignID > 0 {
		args = append(args, f.CampaignID)
		query += fmt.Sprintf(" AND campaign_id = $%d", len(args))
	}
	if f.ContactID > 0 {
		args = append(args, f.ContactID)
		query += fmt.Sprintf(" AND contact_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND sent_at >= $%d", len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		query += fmt.Sprintf(" AND sent_at < $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY sent_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*EmailRecord
	for rows.Next() {
		rec := &EmailRecord{}
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.CampaignID, &rec.ContactID,
			&rec.ToEmail, &rec.Subject, &rec.Status, &rec.ProviderMessageID, &rec.Error,
			&rec.SentAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes history rows. Zero-value filter fields mean "no filter";
// passing an empty filter wipes the tenant's entire history. Returns the
// number of rows deleted.
func (hs *HistoryStore) Clear(ctx context.Context, tenantID uuid.UUID, campaignID int64, before time.Time) (int64, error) {
	query := `DELETE FROM email_history WHERE tenant_id = $1`
	args := []any{tenantID}

	if campaignID > 0 {
		args = append(args, campaignID)
		query += fmt.Sprintf(" AND campaign_id = $%d", len(args))
	}
	if !before.IsZero() {
		args = append(args, before)
		query += fmt.Sprintf(" AND sent_at < $%d", len(args))
	}

	res, err := hs.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
