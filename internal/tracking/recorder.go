package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
)

// dedupTTL suppresses duplicate open events from mail clients that
// re-fetch the pixel on every message view.
const dedupTTL = 24 * time.Hour

// Recorder writes tracking events to Postgres. When a Redis client is
// provided, repeated opens of the same email within dedupTTL are dropped.
type Recorder struct {
	db    *sql.DB
	redis *redis.Client
}

// NewRecorder creates a new tracking recorder. redisClient may be nil.
func NewRecorder(db *sql.DB, redisClient *redis.Client) *Recorder {
	return &Recorder{db: db, redis: redisClient}
}

// RecordOpen stores an open event from the tracking pixel.
func (r *Recorder) RecordOpen(ctx context.Context, t Token, ip, userAgent string) error {
	if r.redis != nil {
		key := fmt.Sprintf("open:%s:%d:%d", t.TenantID, t.ContactID, t.EmailID)
		set, err := r.redis.SetNX(ctx, key, 1, dedupTTL).Result()
		if err != nil {
			// Redis being down must not lose events
			logger.Warn("open dedup check failed", "error", err)
		} else if !set {
			return nil
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_tracking (tenant_id, campaign_id, contact_id, email_id, ip_address, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		t.TenantID, nullID(t.CampaignID), nullID(t.ContactID), nullID(t.EmailID), ip, userAgent)
	return err
}

// RecordClick stores a click event for a rewritten link.
func (r *Recorder) RecordClick(ctx context.Context, t Token, url, ip, userAgent string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO link_tracking (tenant_id, campaign_id, contact_id, email_id, url, ip_address, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		t.TenantID, nullID(t.CampaignID), nullID(t.ContactID), nullID(t.EmailID), url, ip, userAgent)
	return err
}

// RecordReportClick stores a research report view. The company is carried
// in the token's CampaignID slot; report links have no campaign.
func (r *Recorder) RecordReportClick(ctx context.Context, t Token, ip, userAgent string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO report_clicks (tenant_id, company_id, contact_id, ip_address, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		t.TenantID, nullID(t.CampaignID), nullID(t.ContactID), ip, userAgent)
	return err
}

// nullID maps the zero id to SQL NULL.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
