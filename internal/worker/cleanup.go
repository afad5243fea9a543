package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
)

// Retention deletes run in batches to avoid long-running transactions
// that could lock the tracking tables while sends are in flight.
const cleanupBatchSize = 10000

// CleanupWorker periodically removes aged tracking rows, finished
// scrape logs, and completed scheduler jobs.
type CleanupWorker struct {
	db       *sql.DB
	cfg      config.CleanupConfig
	interval time.Duration
}

// NewCleanupWorker creates a cleanup worker from the retention config.
func NewCleanupWorker(db *sql.DB, cfg config.CleanupConfig) *CleanupWorker {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupWorker{db: db, cfg: cfg, interval: interval}
}

// Start begins the cleanup loop. It blocks until ctx is cancelled.
func (cw *CleanupWorker) Start(ctx context.Context) {
	log.Printf("[Cleanup] Starting (interval=%s, batch_size=%d)", cw.interval, cleanupBatchSize)

	// Run once immediately on start
	cw.cleanup(ctx)

	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Cleanup] Stopping")
			return
		case <-ticker.C:
			cw.cleanup(ctx)
		}
	}
}

func (cw *CleanupWorker) cleanup(ctx context.Context) {
	start := time.Now()
	log.Println("[Cleanup] Cycle starting...")

	cw.cleanupTracking(ctx)
	cw.cleanupHistory(ctx)
	cw.cleanupScrapeLogs(ctx)
	cw.cleanupFinishedJobs(ctx)

	log.Printf("[Cleanup] Cycle completed in %s", time.Since(start).Round(time.Millisecond))
}

// cleanupTracking removes tracking events past the retention window.
func (cw *CleanupWorker) cleanupTracking(ctx context.Context) {
	days := cw.cfg.TrackingRetentionDays
	if days <= 0 {
		return
	}

	for _, table := range []string{"email_tracking", "link_tracking", "report_clicks"} {
		total := cw.batchDelete(ctx, table, fmt.Sprintf(`
			DELETE FROM %s
			WHERE id IN (
				SELECT id FROM %s
				WHERE occurred_at < NOW() - make_interval(days => %d)
				LIMIT $1
			)
		`, table, table, days))
		if total > 0 {
			log.Printf("[Cleanup] Removed %d rows from %s older than %d days", total, table, days)
		}
	}
}

// cleanupHistory removes email history past the retention window.
// A zero retention keeps history forever.
func (cw *CleanupWorker) cleanupHistory(ctx context.Context) {
	days := cw.cfg.HistoryRetentionDays
	if days <= 0 {
		return
	}

	total := cw.batchDelete(ctx, "email_history", fmt.Sprintf(`
		DELETE FROM email_history
		WHERE id IN (
			SELECT id FROM email_history
			WHERE sent_at < NOW() - make_interval(days => %d)
			LIMIT $1
		)
	`, days))
	if total > 0 {
		log.Printf("[Cleanup] Removed %d email history rows older than %d days", total, days)
	}
}

// cleanupScrapeLogs removes finished scrape runs older than 30 days.
func (cw *CleanupWorker) cleanupScrapeLogs(ctx context.Context) {
	total := cw.batchDelete(ctx, "scraping_logs", `
		DELETE FROM scraping_logs
		WHERE id IN (
			SELECT id FROM scraping_logs
			WHERE status IN ('completed', 'failed')
			  AND started_at < NOW() - INTERVAL '30 days'
			LIMIT $1
		)
	`)
	if total > 0 {
		log.Printf("[Cleanup] Removed %d finished scrape runs", total)
	}
}

// cleanupFinishedJobs removes completed scheduler jobs older than 7
// days. Failed jobs stay for 30 days so operators can inspect them.
func (cw *CleanupWorker) cleanupFinishedJobs(ctx context.Context) {
	total := cw.batchDelete(ctx, "scheduler_jobs", `
		DELETE FROM scheduler_jobs
		WHERE id IN (
			SELECT id FROM scheduler_jobs
			WHERE status = 'completed'
			  AND finished_at < NOW() - INTERVAL '7 days'
			LIMIT $1
		)
	`)
	if total > 0 {
		log.Printf("[Cleanup] Removed %d completed scheduler jobs", total)
	}

	total = cw.batchDelete(ctx, "scheduler_jobs", `
		DELETE FROM scheduler_jobs
		WHERE id IN (
			SELECT id FROM scheduler_jobs
			WHERE status = 'failed'
			  AND finished_at < NOW() - INTERVAL '30 days'
			LIMIT $1
		)
	`)
	if total > 0 {
		log.Printf("[Cleanup] Removed %d failed scheduler jobs", total)
	}
}

// batchDelete runs the given DELETE statement in a loop, passing
// cleanupBatchSize as $1, until zero rows are affected. Returns the
// cumulative number of deleted rows.
func (cw *CleanupWorker) batchDelete(ctx context.Context, table, query string) int64 {
	var totalDeleted int64

	for {
		if ctx.Err() != nil {
			return totalDeleted
		}

		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		res, err := cw.db.ExecContext(queryCtx, query, cleanupBatchSize)
		cancel()
		if err != nil {
			log.Printf("[Cleanup] Delete from %s failed: %v", table, err)
			return totalDeleted
		}

		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return totalDeleted
		}
		totalDeleted += n
	}
}
